package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudscript/internal/command"
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/host"
	"github.com/dshills/mudscript/internal/session"
)

// TableName is the global and require name of the script API.
const TableName = "mud"

// ErrNoCaller is returned when a context cannot call back into Lua.
var ErrNoCaller = errors.New("api context has no caller")

// Module contributes functions to the mud table.
type Module interface {
	// Name returns the module name, used for diagnostics.
	Name() string

	// Register adds the module's functions to the mud table.
	Register(L *lua.LState, mud *lua.LTable) error
}

// SetupFunc runs when a session is created or resumed.
type SetupFunc func(ctx context.Context, info session.Info) error

// ReloadFunc runs before a module is reloaded.
type ReloadFunc func(ctx context.Context) error

// HookProvider stores lifecycle hooks for the owning module.
type HookProvider interface {
	OnSetup(fn SetupFunc)
	BeforeReload(fn ReloadFunc)
}

// CommandProvider registers session commands for the owning module.
type CommandProvider interface {
	RegisterCommand(id session.ID, cmd command.Command) error
}

// Emitter queues an event for dispatch after the current one.
type Emitter interface {
	Emit(ev event.Event)
}

// Caller invokes Lua functions with the state's lock and deadline.
type Caller interface {
	CallFunction(ctx context.Context, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error)
}

// Context provides the runtime services API modules are built on. Every
// registration goes through Registrar, so ownership is fixed by whoever
// built the context.
type Context struct {
	Registrar event.Registrar
	Host      host.Host
	Hooks     HookProvider
	Commands  CommandProvider
	Emitter   Emitter
	Caller    Caller
	Logger    zerolog.Logger
}

// call invokes fn through the Caller.
func (c *Context) call(ctx context.Context, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	if c.Caller == nil {
		return nil, ErrNoCaller
	}
	return c.Caller.CallFunction(ctx, fn, args...)
}

// Registry holds API modules in registration order.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
}

// NewRegistry creates a new API registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a module to the registry.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.modules {
		if m.Name() == mod.Name() {
			return fmt.Errorf("module %q already registered", mod.Name())
		}
	}
	r.modules = append(r.modules, mod)
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modules {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// List returns all registered module names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.modules))
	for i, m := range r.modules {
		names[i] = m.Name()
	}
	return names
}

// InjectAll builds the mud table from every module and installs it as a
// global and as a preloaded module, so both mud.x and require("mud") work.
func (r *Registry) InjectAll(L *lua.LState) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mud := L.NewTable()
	for _, mod := range r.modules {
		if err := mod.Register(L, mud); err != nil {
			return fmt.Errorf("failed to register module %q: %w", mod.Name(), err)
		}
	}

	L.SetGlobal(TableName, mud)
	L.PreloadModule(TableName, func(L *lua.LState) int {
		L.Push(mud)
		return 1
	})
	return nil
}

// DefaultRegistry creates a registry with all standard modules.
func DefaultRegistry(ctx *Context) (*Registry, error) {
	if ctx.Caller == nil {
		return nil, ErrNoCaller
	}

	r := NewRegistry()
	modules := []Module{
		NewEventModule(ctx),
		NewSessionModule(ctx),
		NewLifecycleModule(ctx),
		NewCommandModule(ctx),
	}
	for _, mod := range modules {
		if err := r.Register(mod); err != nil {
			return nil, fmt.Errorf("failed to register module %q: %w", mod.Name(), err)
		}
	}
	return r, nil
}
