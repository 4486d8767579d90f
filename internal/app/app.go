// Package app wires the scripting runtime together: the event bus, the
// module manager, the command dispatcher, input history and the script
// watcher, all driven from a single dispatch loop.
package app

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/mudscript/internal/command"
	"github.com/dshills/mudscript/internal/config"
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/event/dispatch"
	"github.com/dshills/mudscript/internal/history"
	"github.com/dshills/mudscript/internal/host"
	"github.com/dshills/mudscript/internal/plugin"
	"github.com/dshills/mudscript/internal/plugin/watcher"
	"github.com/dshills/mudscript/internal/session"
)

// shutdownTimeout bounds the cleanup after the loop stops.
const shutdownTimeout = 5 * time.Second

// SessionHost is a host the runtime can open and close sessions on.
type SessionHost interface {
	host.Host
	Open(info session.Info) session.Info
	Close(id session.ID) bool
	SetStatus(id session.ID, status session.Status) error
}

// Runtime owns every component of the scripting runtime. Events, commands
// and reloads all run on one loop goroutine, in the order they were queued.
type Runtime struct {
	cfg  atomic.Pointer[config.Config]
	log  zerolog.Logger
	base SessionHost
	host *scriptHost

	bus        *event.Bus
	commands   *command.Registry
	dispatcher *command.Dispatcher
	manager    *plugin.Manager
	history    *history.Module
	loader     *plugin.Loader
	metrics    *Metrics
	extra      []plugin.Module

	// Set once in Run.
	watcher    atomic.Pointer[watcher.Watcher]
	metricsSrv *http.Server

	scriptsMu sync.RWMutex
	scripts   map[event.ModuleID]*plugin.LuaModule
	broken    map[string]error

	queue    *queue
	executor *dispatch.Executor
	tasks    atomic.Uint64
	reloads  atomic.Uint64

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runtime) {
		r.log = l
	}
}

// WithHost sets the session host. The default is an in-memory host.
func WithHost(h SessionHost) Option {
	return func(r *Runtime) {
		if h != nil {
			r.base = h
		}
	}
}

// WithModules registers Go modules after the built-in ones and before any
// discovered script.
func WithModules(mods ...plugin.Module) Option {
	return func(r *Runtime) {
		r.extra = append(r.extra, mods...)
	}
}

// New builds a runtime from cfg. Modules are registered but not loaded;
// Run loads them. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &Runtime{
		log:      zerolog.Nop(),
		base:     host.NewMemory(),
		scripts:  make(map[event.ModuleID]*plugin.LuaModule),
		broken:   make(map[string]error),
		queue:    newQueue(),
		executor: dispatch.NewExecutor(),
		done:     make(chan struct{}),
	}
	r.cfg.Store(cfg)
	for _, opt := range opts {
		opt(r)
	}

	if err := r.bootstrap(); err != nil {
		return nil, err
	}
	if _, err := r.discover(); err != nil {
		r.log.Warn().Err(err).Msg("script discovery")
	}
	return r, nil
}

// Run loads every module, starts the script watcher and the metrics
// endpoint when configured, and runs the dispatch loop until ctx ends or
// Shutdown is called. Cleanup happens before Run returns.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	if err := r.manager.LoadAll(ctx); err != nil {
		r.log.Warn().Err(err).Msg("some modules failed to load")
	}

	if r.Config().Metrics.Addr != "" {
		if err := r.startMetrics(); err != nil {
			r.shutdown()
			return &InitError{Component: "metrics", Err: err}
		}
	}
	if r.Config().Scripts.Watch {
		if err := r.startWatcher(); err != nil {
			r.log.Warn().Err(err).Msg("script watcher disabled")
		}
	}

	r.log.Info().Int("modules", len(r.manager.Modules())).Msg("runtime started")
	r.loop(ctx)
	r.shutdown()
	return nil
}

// Shutdown stops the dispatch loop. Run returns once cleanup is done.
func (r *Runtime) Shutdown() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

// shutdown releases everything Run started, modules last in reverse
// registration order.
func (r *Runtime) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if w := r.watcher.Load(); w != nil {
		if err := w.Close(); err != nil {
			r.log.Warn().Err(err).Msg("close script watcher")
		}
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil {
			r.log.Warn().Err(err).Msg("stop metrics server")
		}
	}

	if n := r.queue.close(); n > 0 {
		r.log.Debug().Int("dropped", n).Msg("discarded queued work")
	}

	mods := r.manager.Modules()
	for i := len(mods) - 1; i >= 0; i-- {
		if err := r.manager.Unload(ctx, mods[i].ID); err != nil {
			r.log.Warn().Err(err).Str("module", string(mods[i].ID)).Msg("unload")
		}
	}
	r.log.Info().Msg("runtime stopped")
}

// IsRunning reports whether Run is active.
func (r *Runtime) IsRunning() bool {
	return r.running.Load()
}

// Config returns the current configuration.
func (r *Runtime) Config() *config.Config {
	return r.cfg.Load()
}

// Bus returns the event bus.
func (r *Runtime) Bus() *event.Bus {
	return r.bus
}

// Manager returns the module manager.
func (r *Runtime) Manager() *plugin.Manager {
	return r.manager
}

// Commands returns the command registry.
func (r *Runtime) Commands() *command.Registry {
	return r.commands
}

// History returns the input history module.
func (r *Runtime) History() *history.Module {
	return r.history
}

// Host returns the session host.
func (r *Runtime) Host() SessionHost {
	return r.base
}

// Metrics returns the Prometheus collector.
func (r *Runtime) Metrics() *Metrics {
	return r.metrics
}
