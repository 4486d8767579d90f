package plugin

import (
	"context"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/dshills/mudscript/internal/command"
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/host"
	"github.com/dshills/mudscript/internal/plugin/api"
	"github.com/dshills/mudscript/internal/session"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidID reports whether id can name a module: lower-case letters, digits,
// hyphen and underscore, starting with a letter or digit.
func ValidID(id event.ModuleID) bool {
	return idPattern.MatchString(string(id))
}

// Module is a unit of script code the manager can load, retract and load
// again. Load is called once per (re)load with a fresh Env; everything it
// registers through the Env is attributed to the module.
type Module interface {
	ID() event.ModuleID
	Load(ctx context.Context, env *Env) error
	Close() error
}

// FuncModule adapts plain functions to Module.
type FuncModule struct {
	Name      event.ModuleID
	LoadFunc  func(ctx context.Context, env *Env) error
	CloseFunc func() error
}

// ID implements Module.
func (f *FuncModule) ID() event.ModuleID {
	return f.Name
}

// Load implements Module.
func (f *FuncModule) Load(ctx context.Context, env *Env) error {
	if f.LoadFunc == nil {
		return nil
	}
	return f.LoadFunc(ctx, env)
}

// Close implements Module.
func (f *FuncModule) Close() error {
	if f.CloseFunc == nil {
		return nil
	}
	return f.CloseFunc()
}

// Env is what a module sees of the runtime during one load. An Env from an
// earlier load is stale: hooks added through it are ignored.
type Env struct {
	manager    *Manager
	id         event.ModuleID
	generation uint64
	registrar  event.Registrar
	log        zerolog.Logger
}

// Module returns the id of the module being loaded.
func (e *Env) Module() event.ModuleID {
	return e.id
}

// Registrar returns the module's event registrar.
func (e *Env) Registrar() event.Registrar {
	return e.registrar
}

// Host returns the session host. It may be nil in tests.
func (e *Env) Host() host.Host {
	return e.manager.host
}

// Emitter returns the queue for events published from handlers.
func (e *Env) Emitter() api.Emitter {
	return e.manager.emitter
}

// Logger returns a logger tagged with the module id.
func (e *Env) Logger() zerolog.Logger {
	return e.log
}

// OnSetup adds a hook run for every new or resumed session.
func (e *Env) OnSetup(fn api.SetupFunc) {
	if fn == nil {
		return
	}
	e.manager.addHook(e, func(en *entry) {
		en.setup = append(en.setup, fn)
	})
}

// BeforeReload adds a hook run after the module's registrations are
// retracted and before it is loaded again.
func (e *Env) BeforeReload(fn api.ReloadFunc) {
	if fn == nil {
		return
	}
	e.manager.addHook(e, func(en *entry) {
		en.beforeReload = append(en.beforeReload, fn)
	})
}

// RegisterCommand registers a command for a session, owned by the module.
func (e *Env) RegisterCommand(id session.ID, cmd command.Command) error {
	if e.manager.commands == nil {
		return ErrNoCommands
	}
	cmd.Owner = e.id
	return e.manager.commands.Register(id, cmd)
}

// APIContext builds the context for the Lua API, bound to this Env.
func (e *Env) APIContext(caller api.Caller) *api.Context {
	ctx := &api.Context{
		Registrar: e.registrar,
		Hooks:     e,
		Emitter:   e.manager.emitter,
		Caller:    caller,
		Logger:    e.log,
	}
	if e.manager.host != nil {
		ctx.Host = e.manager.host
	}
	if e.manager.commands != nil {
		ctx.Commands = e
	}
	return ctx
}
