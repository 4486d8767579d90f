package api

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudscript/internal/event"
	plua "github.com/dshills/mudscript/internal/plugin/lua"
	"github.com/dshills/mudscript/internal/session"
)

// EventTable converts an event to the table handed to Lua handlers. Every
// table has kind and, for session events, session; the rest depends on the
// payload.
func EventTable(L *lua.LState, ev event.Event) *lua.LTable {
	b := plua.NewBridge(L)
	t := L.NewTable()
	t.RawSetString("kind", lua.LString(ev.Kind))
	if id, ok := ev.SessionID(); ok {
		t.RawSetString("session", lua.LNumber(id))
	}

	switch p := ev.Payload.(type) {
	case event.SessionPayload:
		t.RawSetString("info", InfoTable(L, p.Info))
		if p.Module != "" {
			t.RawSetString("module", lua.LString(p.Module))
		}
	case event.ConnectionPayload:
		t.RawSetString("status", lua.LString(p.Status))
		t.RawSetString("info", InfoTable(L, p.Info))
	case event.LinePayload:
		t.RawSetString("text", lua.LString(p.Text))
		t.RawSetString("prompt", lua.LBool(p.Prompt))
		t.RawSetString("gag", lua.LBool(p.Gag))
	case event.PromptPayload:
		t.RawSetString("from", lua.LString(p.From))
		t.RawSetString("to", lua.LString(p.To))
	case event.InputPayload:
		t.RawSetString("line", LineTable(L, p.Line))
	case event.KeyPayload:
		t.RawSetString("code", lua.LString(p.Code))
	case event.ShortcutPayload:
		t.RawSetString("name", lua.LString(p.Name))
	case event.OptionPayload:
		t.RawSetString("option", lua.LNumber(p.Option))
		t.RawSetString("enabled", lua.LBool(p.Enabled))
	case event.GMCPPayload:
		t.RawSetString("package", lua.LString(p.Package))
		t.RawSetString("json", lua.LString(p.JSON))
		t.RawSetString("data", b.ToLuaValue(p.Value().Value()))
	case event.CustomPayload:
		t.RawSetString("type", lua.LString(p.Type))
		t.RawSetString("data", b.ToLuaValue(p.Data))
	case event.ReloadPayload:
		t.RawSetString("modules", b.ToLuaValue(moduleNames(p.Modules)))
		t.RawSetString("failed", b.ToLuaValue(moduleNames(p.Failed)))
	}
	return t
}

// InfoTable converts session details.
func InfoTable(L *lua.LState, info session.Info) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LNumber(info.ID))
	t.RawSetString("mud", lua.LString(info.MUD))
	t.RawSetString("character", lua.LString(info.Character))
	t.RawSetString("host", lua.LString(info.Host))
	t.RawSetString("port", lua.LNumber(info.Port))
	t.RawSetString("tls", lua.LBool(info.TLS))
	return t
}

// LineTable converts an input line. display holds the text the user would
// recognise.
func LineTable(L *lua.LState, line session.InputLine) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("sent", lua.LString(line.Sent))
	if line.Original != nil {
		t.RawSetString("original", lua.LString(*line.Original))
	}
	t.RawSetString("scripted", lua.LBool(line.Scripted))
	t.RawSetString("echo_suppressed", lua.LBool(line.EchoSuppressed))
	t.RawSetString("display", lua.LString(line.String()))
	return t
}

// FilterFromTable converts a Lua table of field = value pairs. Values the
// bus cannot compare are passed through so Subscribe reports them.
func FilterFromTable(L *lua.LState, t *lua.LTable) (event.Filter, error) {
	if t == nil {
		return nil, nil
	}
	b := plua.NewBridge(L)
	f := event.Filter{}
	var err error
	t.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			if err == nil {
				err = fmt.Errorf("%w: field names must be strings, got %s", event.ErrMalformedFilter, k.Type())
			}
			return
		}
		f[string(key)] = b.ToGoValue(v)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// checkSession reads a session id argument.
func checkSession(L *lua.LState, n int) session.ID {
	v := L.CheckInt64(n)
	if v < 0 || v > int64(^uint32(0)) {
		L.ArgError(n, "invalid session id")
	}
	return session.ID(v)
}

func moduleNames(ids []event.ModuleID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
