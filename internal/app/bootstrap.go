package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/mudscript/internal/command"
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/history"
	"github.com/dshills/mudscript/internal/plugin"
	"github.com/dshills/mudscript/internal/plugin/watcher"
)

// bootstrap builds the components in dependency order and registers the
// always-on subscriptions before any module can subscribe.
func (r *Runtime) bootstrap() error {
	// 1. Event bus
	r.bus = event.NewBus(event.WithLogger(r.log.With().Str("component", "bus").Logger()))

	// 2. Script-facing host
	r.host = &scriptHost{Host: r.base, emit: r.Emit}

	// 3. Commands
	r.commands = command.NewRegistry()
	r.dispatcher = command.NewDispatcher(r.commands, r.base,
		command.WithPrefix(r.Config().Commands.Prefix),
		command.WithLogger(r.log.With().Str("component", "commands").Logger()),
	)

	// 4. Module manager
	r.manager = plugin.NewManager(r.bus,
		plugin.WithLogger(r.log.With().Str("component", "modules").Logger()),
		plugin.WithHost(r.host),
		plugin.WithCommands(r.commands),
		plugin.WithEmitter(r),
	)
	r.manager.Subscribe(r.handleModuleEvent)

	// 5. Core subscriptions
	if err := r.subscribeCore(); err != nil {
		return &InitError{Component: "core subscriptions", Err: err}
	}

	// 6. Built-in modules, then Go modules from options
	r.history = history.NewModule(r.host,
		history.WithCapacity(r.Config().History.Capacity),
		history.WithSkipScripted(r.Config().History.SkipScripted),
		history.WithKeys(func(mud string) history.Keys {
			prev, next := r.Config().HistoryKeys(mud)
			return history.Keys{Prev: prev, Next: next}
		}),
	)
	for _, mod := range append([]plugin.Module{&builtinModule{r: r}, r.history}, r.extra...) {
		if err := r.manager.Register(mod); err != nil {
			return &InitError{Component: "module " + string(mod.ID()), Err: err}
		}
	}

	// 7. Script loader
	dirs, err := scriptDirs(r.Config().Scripts.Dirs)
	if err != nil {
		return &InitError{Component: "script loader", Err: err}
	}
	r.loader = plugin.NewLoader(dirs...)

	// 8. Metrics
	r.metrics = NewMetrics(r.bus, r.manager,
		WithLoopStats(r.LoopStats),
		WithWatcherStats(func() watcher.Stats {
			if w := r.watcher.Load(); w != nil {
				return w.Stats()
			}
			return watcher.Stats{}
		}),
	)
	return nil
}

// scriptDirs expands a leading ~ and makes every directory absolute, so
// paths reported by the watcher compare equal to module paths.
func scriptDirs(dirs []string) ([]string, error) {
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if rest, ok := strings.CutPrefix(dir, "~"); ok && (rest == "" || rest[0] == '/' || rest[0] == filepath.Separator) {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("expand %s: %w", dir, err)
			}
			dir = filepath.Join(home, rest)
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

// discover finds script modules and registers the ones the manager does not
// know yet. It returns the newly registered ids.
func (r *Runtime) discover() ([]event.ModuleID, error) {
	found, err := r.loader.Discover()

	r.scriptsMu.Lock()
	defer r.scriptsMu.Unlock()

	clear(r.broken)
	var added []event.ModuleID
	for _, d := range found {
		if d.Error != nil {
			r.broken[d.Name] = d.Error
			r.log.Warn().Err(d.Error).Str("module", d.Name).Str("path", d.Path).Msg("module skipped")
			continue
		}
		if r.Config().ModuleDisabled(d.Name) || d.Manifest.Disabled {
			r.log.Debug().Str("module", d.Name).Msg("module disabled")
			continue
		}

		id := d.Manifest.ID()
		if _, known := r.scripts[id]; known {
			continue
		}
		mod := plugin.NewLuaModule(d.Manifest, r.Config().Scripts.Timeout.Std())
		if err := r.manager.Register(mod); err != nil {
			r.broken[d.Name] = err
			r.log.Warn().Err(err).Str("module", d.Name).Msg("module not registered")
			continue
		}
		r.scripts[id] = mod
		added = append(added, id)
	}
	return added, err
}

// BrokenModules returns modules found on disk that could not be registered,
// with the reason.
func (r *Runtime) BrokenModules() map[string]error {
	r.scriptsMu.RLock()
	defer r.scriptsMu.RUnlock()

	out := make(map[string]error, len(r.broken))
	for name, err := range r.broken {
		out[name] = err
	}
	return out
}

func (r *Runtime) script(id event.ModuleID) *plugin.LuaModule {
	r.scriptsMu.RLock()
	defer r.scriptsMu.RUnlock()
	return r.scripts[id]
}

// RequestReload queues a reload. A non-empty id reloads that module; an
// empty id rescans the script directories and reloads every module.
func (r *Runtime) RequestReload(id event.ModuleID) {
	r.enqueue(func(ctx context.Context) {
		r.reload(ctx, id)
	})
}

// reload runs on the loop, between dispatch passes.
func (r *Runtime) reload(ctx context.Context, id event.ModuleID) {
	r.reloads.Add(1)

	if id == "" {
		// New modules load as part of the full reload.
		if _, err := r.discover(); err != nil {
			r.log.Warn().Err(err).Msg("script discovery")
		}
		for _, mod := range r.manager.Modules() {
			if s := r.script(mod.ID); s != nil {
				r.refreshScript(ctx, s)
			}
		}
		if err := r.manager.ReloadAll(ctx); err != nil {
			r.log.Warn().Err(err).Msg("reload finished with errors")
		}
		return
	}

	if _, ok := r.manager.Module(id); !ok {
		r.loadNew(ctx, id)
		return
	}

	if mod := r.script(id); mod != nil && !r.refreshScript(ctx, mod) {
		return
	}

	var failed []event.ModuleID
	if err := r.manager.Reload(ctx, id); err != nil {
		failed = append(failed, id)
	}
	r.publish(ctx, event.New(event.KindModulesReloaded, event.ReloadPayload{
		Modules: []event.ModuleID{id},
		Failed:  failed,
	}))
}

// refreshScript re-reads a script module's manifest from disk. A module
// that is gone or disabled is unloaded, and false is returned.
func (r *Runtime) refreshScript(ctx context.Context, mod *plugin.LuaModule) bool {
	id := mod.ID()
	d, err := r.loader.Find(string(id))
	switch {
	case errors.Is(err, plugin.ErrModuleNotFound):
		r.unloadScript(ctx, id, "module removed")
		return false
	case err != nil:
		r.log.Warn().Err(err).Str("module", string(id)).Msg("rescan")
		return true
	case d.Error != nil:
		// Keep the old manifest; the load reports what is wrong.
		r.log.Warn().Err(d.Error).Str("module", string(id)).Msg("manifest")
		return true
	case d.Manifest.Disabled || r.Config().ModuleDisabled(string(id)):
		r.unloadScript(ctx, id, "module disabled")
		return false
	}
	if err := mod.SetManifest(d.Manifest); err != nil {
		r.log.Warn().Err(err).Str("module", string(id)).Msg("manifest")
	}
	return true
}

func (r *Runtime) unloadScript(ctx context.Context, id event.ModuleID, reason string) {
	if err := r.manager.Unload(ctx, id); err != nil {
		r.log.Warn().Err(err).Str("module", string(id)).Msg("unload")
	}
	r.scriptsMu.Lock()
	delete(r.scripts, id)
	r.scriptsMu.Unlock()
	r.log.Info().Str("module", string(id)).Msg(reason)
}

// loadNew discovers and loads a module the manager does not know yet. The
// reload sets it up for every live session.
func (r *Runtime) loadNew(ctx context.Context, id event.ModuleID) {
	added, err := r.discover()
	if err != nil {
		r.log.Warn().Err(err).Msg("script discovery")
	}
	if !slices.Contains(added, id) {
		r.log.Warn().Str("module", string(id)).Msg("reload of unknown module")
		return
	}

	var failed []event.ModuleID
	for _, n := range added {
		if err := r.manager.Reload(ctx, n); err != nil {
			failed = append(failed, n)
		}
	}
	r.publish(ctx, event.New(event.KindModulesReloaded, event.ReloadPayload{Modules: added, Failed: failed}))
}

// startWatcher watches the script directories and turns debounced changes
// into reload requests.
func (r *Runtime) startWatcher() error {
	w, err := watcher.New(r, r.onScriptChange,
		watcher.WithDebounce(r.Config().Scripts.Debounce.Std()),
		watcher.WithLogger(r.log.With().Str("component", "watcher").Logger()),
	)
	if err != nil {
		return NewComponentError("watcher", "start", err)
	}

	watched := 0
	for _, dir := range r.loader.Paths() {
		err := w.Watch(dir)
		switch {
		case errors.Is(err, watcher.ErrPathNotExist):
			r.log.Debug().Str("dir", dir).Msg("script directory missing, not watched")
		case err != nil:
			r.log.Warn().Err(err).Str("dir", dir).Msg("watch script directory")
		default:
			watched++
		}
	}
	if watched == 0 {
		w.Close()
		return NewComponentError("watcher", "watch", watcher.ErrPathNotExist)
	}
	r.watcher.Store(w)
	return nil
}

// onScriptChange runs on the watcher's goroutine.
func (r *Runtime) onScriptChange(ch watcher.Change) {
	r.log.Info().
		Str("module", string(ch.Module)).
		Str("op", ch.Op.String()).
		Strs("paths", ch.Paths).
		Msg("scripts changed")
	if ch.Module == "" {
		r.RequestReload("")
		return
	}
	r.RequestReload(ch.Module)
}

// startMetrics serves /metrics on the configured address.
func (r *Runtime) startMetrics() error {
	ln, err := net.Listen("tcp", r.Config().Metrics.Addr)
	if err != nil {
		return NewComponentError("metrics", "listen", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(NewMetricsRegistry(r.metrics)))
	r.metricsSrv = &http.Server{Handler: mux}

	go func() {
		if err := r.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error().Err(err).Msg("metrics server")
		}
	}()
	r.log.Info().Str("addr", ln.Addr().String()).Msg("metrics endpoint listening")
	return nil
}
