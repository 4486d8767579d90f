package api

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudscript/internal/session"
)

// LifecycleModule implements on_setup, before_reload, module and log.
type LifecycleModule struct {
	ctx *Context
	L   *lua.LState
}

// NewLifecycleModule creates a new lifecycle module.
func NewLifecycleModule(ctx *Context) *LifecycleModule {
	return &LifecycleModule{ctx: ctx}
}

// Name returns the module name.
func (m *LifecycleModule) Name() string {
	return "lifecycle"
}

// Register adds the lifecycle functions to the mud table.
func (m *LifecycleModule) Register(L *lua.LState, mud *lua.LTable) error {
	m.L = L
	L.SetFuncs(mud, map[string]lua.LGFunction{
		"on_setup":      m.onSetup,
		"before_reload": m.beforeReload,
		"module":        m.module,
		"log":           m.log,
	})
	return nil
}

// on_setup(fn) runs fn(info) for every new or resumed session.
func (m *LifecycleModule) onSetup(L *lua.LState) int {
	fn := L.CheckFunction(1)
	if m.ctx.Hooks == nil {
		L.RaiseError("setup hooks are not available in this context")
		return 0
	}
	m.ctx.Hooks.OnSetup(func(ctx context.Context, info session.Info) error {
		_, err := m.ctx.call(ctx, fn, InfoTable(m.L, info))
		return err
	})
	return 0
}

// before_reload(fn) runs fn() after the module's registrations are retracted
// and before its code runs again.
func (m *LifecycleModule) beforeReload(L *lua.LState) int {
	fn := L.CheckFunction(1)
	if m.ctx.Hooks == nil {
		L.RaiseError("reload hooks are not available in this context")
		return 0
	}
	m.ctx.Hooks.BeforeReload(func(ctx context.Context) error {
		_, err := m.ctx.call(ctx, fn)
		return err
	})
	return 0
}

// module() returns the id of the running module.
func (m *LifecycleModule) module(L *lua.LState) int {
	L.Push(lua.LString(m.ctx.Registrar.Owner()))
	return 1
}

// log([level], msg, ...) writes to the runtime log.
func (m *LifecycleModule) log(L *lua.LState) int {
	n := L.GetTop()
	if n == 0 {
		return 0
	}

	level := zerolog.InfoLevel
	start := 1
	if n > 1 {
		if lvl, err := zerolog.ParseLevel(L.CheckString(1)); err == nil && lvl != zerolog.NoLevel {
			level = lvl
			start = 2
		}
	}

	parts := make([]string, 0, n-start+1)
	for i := start; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	m.ctx.Logger.WithLevel(level).
		Str("module", string(m.ctx.Registrar.Owner())).
		Msg(strings.Join(parts, " "))
	return 0
}
