package api

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudscript/internal/event"
	plua "github.com/dshills/mudscript/internal/plugin/lua"
)

// EventModule implements mud.on, its combinator helpers, mud.off and
// mud.emit.
type EventModule struct {
	ctx *Context
	L   *lua.LState

	// handles are the subscriptions made through this module, by id.
	handles map[string]event.Handle
}

// NewEventModule creates a new event module.
func NewEventModule(ctx *Context) *EventModule {
	return &EventModule{
		ctx:     ctx,
		handles: make(map[string]event.Handle),
	}
}

// Name returns the module name.
func (m *EventModule) Name() string {
	return "event"
}

// Register adds the event functions to the mud table.
func (m *EventModule) Register(L *lua.LState, mud *lua.LTable) error {
	m.L = L
	L.SetFuncs(mud, map[string]lua.LGFunction{
		"on":              m.on,
		"on_connected":    m.onConnected,
		"on_disconnected": m.onDisconnected,
		"on_session":      m.onSession,
		"on_mud":          m.onMUD,
		"on_gmcp":         m.onGMCP,
		"on_custom":       m.onCustom,
		"off":             m.off,
		"emit":            m.emit,
	})
	return nil
}

// handler adapts a Lua function to an event handler.
func (m *EventModule) handler(fn *lua.LFunction) event.HandlerFunc {
	return func(ctx context.Context, ev event.Event) error {
		_, err := m.ctx.call(ctx, fn, EventTable(m.L, ev))
		return err
	}
}

// track records handles and pushes the id of the first, raising err if set.
func (m *EventModule) track(L *lua.LState, handles []event.Handle, err error) int {
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	for _, h := range handles {
		m.handles[h.ID()] = h
	}
	if len(handles) == 0 {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(handles[0].ID()))
	return 1
}

// on(kind, [filter], fn) subscribes fn to kind.
func (m *EventModule) on(L *lua.LState) int {
	kind := event.Kind(L.CheckString(1))

	var filter event.Filter
	fnArg := 2
	if tbl, ok := L.Get(2).(*lua.LTable); ok {
		f, err := FilterFromTable(L, tbl)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		filter = f
		fnArg = 3
	}
	fn := L.CheckFunction(fnArg)

	h, err := m.ctx.Registrar.Subscribe(kind, filter, m.handler(fn))
	if err != nil {
		return m.track(L, nil, err)
	}
	return m.track(L, []event.Handle{h}, nil)
}

// on_connected(fn)
func (m *EventModule) onConnected(L *lua.LState) int {
	fn := L.CheckFunction(1)
	handles, err := event.OnConnected(m.ctx.Registrar, m.handler(fn))
	return m.track(L, handles, err)
}

// on_disconnected(fn)
func (m *EventModule) onDisconnected(L *lua.LState) int {
	fn := L.CheckFunction(1)
	handles, err := event.OnDisconnected(m.ctx.Registrar, m.handler(fn))
	return m.track(L, handles, err)
}

// on_session(fn) runs fn for new sessions and sessions resumed after a reload.
func (m *EventModule) onSession(L *lua.LState) int {
	fn := L.CheckFunction(1)
	handles, err := event.OnNewSessionOrResume(m.ctx.Registrar, m.handler(fn))
	return m.track(L, handles, err)
}

// on_mud(name, kind, fn). The kind "connected" is shorthand for a
// connection status change to connected.
func (m *EventModule) onMUD(L *lua.LState) int {
	name := L.CheckString(1)
	kind := L.CheckString(2)
	fn := L.CheckFunction(3)

	if kind == "connected" {
		handles, err := event.OnMUDConnected(m.ctx.Registrar, m.ctx.Host, name, m.handler(fn))
		return m.track(L, handles, err)
	}
	handles, err := event.OnMUD(m.ctx.Registrar, m.ctx.Host, name, event.Kind(kind), m.handler(fn))
	return m.track(L, handles, err)
}

// on_gmcp(package, fn)
func (m *EventModule) onGMCP(L *lua.LState) int {
	pkg := L.CheckString(1)
	fn := L.CheckFunction(2)
	handles, err := event.OnGMCP(m.ctx.Registrar, pkg, m.handler(fn))
	return m.track(L, handles, err)
}

// on_custom(type, fn)
func (m *EventModule) onCustom(L *lua.LState) int {
	typ := L.CheckString(1)
	fn := L.CheckFunction(2)
	handles, err := event.OnCustom(m.ctx.Registrar, typ, m.handler(fn))
	return m.track(L, handles, err)
}

// off(id) removes a subscription made by this module. Returns true if it
// existed.
func (m *EventModule) off(L *lua.LState) int {
	id := L.CheckString(1)
	h, ok := m.handles[id]
	if !ok {
		L.Push(lua.LFalse)
		return 1
	}
	delete(m.handles, id)
	err := m.ctx.Registrar.Bus().Unsubscribe(h)
	L.Push(lua.LBool(err == nil))
	return 1
}

// emit(type, [data], [session]) queues a custom event.
func (m *EventModule) emit(L *lua.LState) int {
	typ := L.CheckString(1)
	if m.ctx.Emitter == nil {
		L.RaiseError("events cannot be emitted from this context")
		return 0
	}

	payload := event.CustomPayload{Type: typ}
	if tbl, ok := L.Get(2).(*lua.LTable); ok {
		data, ok := plua.NewBridge(L).ToGoValue(tbl).(map[string]any)
		if !ok {
			L.ArgError(2, "data must be a table of named fields")
			return 0
		}
		payload.Data = data
	}

	var ev event.Event
	if L.Get(3) != lua.LNil {
		ev = event.ForSession(event.KindCustom, checkSession(L, 3), payload)
	} else {
		ev = event.New(event.KindCustom, payload)
	}
	m.ctx.Emitter.Emit(ev)
	return 0
}
