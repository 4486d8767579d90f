package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudscript/internal/session"
)

// SessionModule implements the functions that act on sessions through the
// host.
type SessionModule struct {
	ctx *Context
}

// NewSessionModule creates a new session module.
func NewSessionModule(ctx *Context) *SessionModule {
	return &SessionModule{ctx: ctx}
}

// Name returns the module name.
func (m *SessionModule) Name() string {
	return "session"
}

// Register adds the session functions to the mud table.
func (m *SessionModule) Register(L *lua.LState, mud *lua.LTable) error {
	L.SetFuncs(mud, map[string]lua.LGFunction{
		"send":         m.send,
		"output":       m.output,
		"session_info": m.sessionInfo,
		"sessions":     m.sessions,
		"input":        m.input,
	})
	return nil
}

func (m *SessionModule) checkHost(L *lua.LState) bool {
	if m.ctx.Host == nil {
		L.RaiseError("no session host available")
		return false
	}
	return true
}

// send(session, text)
func (m *SessionModule) send(L *lua.LState) int {
	id := checkSession(L, 1)
	text := L.CheckString(2)
	if !m.checkHost(L) {
		return 0
	}
	if err := m.ctx.Host.SendLine(id, text); err != nil {
		L.RaiseError("send: %s", err.Error())
	}
	return 0
}

// output(session, text)
func (m *SessionModule) output(L *lua.LState) int {
	id := checkSession(L, 1)
	text := L.CheckString(2)
	if !m.checkHost(L) {
		return 0
	}
	out := session.Output{Kind: session.OutputText, Text: text}
	if err := m.ctx.Host.AddOutput(id, out); err != nil {
		L.RaiseError("output: %s", err.Error())
	}
	return 0
}

// session_info(session) returns a table, or nil for an unknown session.
func (m *SessionModule) sessionInfo(L *lua.LState) int {
	id := checkSession(L, 1)
	if !m.checkHost(L) {
		return 0
	}
	info, ok := m.ctx.Host.SessionInfo(id)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(InfoTable(L, info))
	return 1
}

// sessions() returns the live session ids.
func (m *SessionModule) sessions(L *lua.LState) int {
	if !m.checkHost(L) {
		return 0
	}
	ids := m.ctx.Host.Sessions()
	t := L.CreateTable(len(ids), 0)
	for _, id := range ids {
		t.Append(lua.LNumber(id))
	}
	L.Push(t)
	return 1
}

// input(session) returns the uncommitted input text.
func (m *SessionModule) input(L *lua.LState) int {
	id := checkSession(L, 1)
	if !m.checkHost(L) {
		return 0
	}
	L.Push(lua.LString(m.ctx.Host.CurrentInputValue(id).Sent))
	return 1
}
