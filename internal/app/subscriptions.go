package app

import (
	"context"
	"fmt"

	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/plugin"
	"github.com/dshills/mudscript/internal/session"
)

// subscribeCore registers the runtime's own subscriptions, owned by the core
// module. They are registered first and never retracted by a reload.
func (r *Runtime) subscribeCore() error {
	core := r.bus.Registrar(event.CoreModule)

	// Session setup: new sessions run every module's hooks, resumed
	// sessions the hooks of the module named in the payload.
	if _, err := core.On(event.KindNewSession, event.KindResumeSession).DoFunc(r.handleSetup); err != nil {
		return err
	}

	// Slash commands on submitted input.
	if err := r.dispatcher.Attach(core); err != nil {
		return err
	}

	if _, err := core.On(event.KindModulesReloaded).DoFunc(r.handleModulesReloaded); err != nil {
		return err
	}
	return nil
}

// handleSetup drives the setup hooks. Hook failures are logged and counted
// by the manager, so they are not reported to the bus a second time.
func (r *Runtime) handleSetup(ctx context.Context, ev event.Event) error {
	p, ok := ev.Payload.(event.SessionPayload)
	if !ok {
		return nil
	}
	_ = r.manager.SetupSession(ctx, p.Info, p.Module)
	return nil
}

func (r *Runtime) handleModulesReloaded(ctx context.Context, ev event.Event) error {
	p, ok := ev.Payload.(event.ReloadPayload)
	if !ok {
		return nil
	}
	modules := make([]string, len(p.Modules))
	for i, id := range p.Modules {
		modules[i] = string(id)
	}
	failed := make([]string, len(p.Failed))
	for i, id := range p.Failed {
		failed[i] = string(id)
	}

	l := r.log.Info()
	if len(failed) > 0 {
		l = r.log.Warn().Strs("failed", failed)
	}
	l.Strs("modules", modules).Msg("modules reloaded")
	return nil
}

// handleModuleEvent reports load failures to every open session. Other
// transitions are only logged.
func (r *Runtime) handleModuleEvent(ev plugin.ManagerEvent) {
	if ev.Type != plugin.EventModuleError {
		r.log.Debug().Str("module", string(ev.Module)).Stringer("event", ev.Type).Msg("module transition")
		return
	}
	out := session.Output{
		Kind: session.OutputDebug,
		Text: fmt.Sprintf("Module %s failed to load: %v", ev.Module, ev.Error),
	}
	for _, id := range r.base.Sessions() {
		if err := r.base.AddOutput(id, out); err != nil {
			r.log.Warn().Err(err).Uint32("session", uint32(id)).Msg("report module error")
		}
	}
}
