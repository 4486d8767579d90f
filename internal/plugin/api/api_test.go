package api

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudscript/internal/command"
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/host"
	plua "github.com/dshills/mudscript/internal/plugin/lua"
	"github.com/dshills/mudscript/internal/session"
)

type hooks struct {
	setup  []SetupFunc
	reload []ReloadFunc
}

func (h *hooks) OnSetup(fn SetupFunc)       { h.setup = append(h.setup, fn) }
func (h *hooks) BeforeReload(fn ReloadFunc) { h.reload = append(h.reload, fn) }

type commands struct {
	owner event.ModuleID
	reg   *command.Registry
}

func (c *commands) RegisterCommand(id session.ID, cmd command.Command) error {
	cmd.Owner = c.owner
	return c.reg.Register(id, cmd)
}

type emitter struct {
	events []event.Event
}

func (e *emitter) Emit(ev event.Event) { e.events = append(e.events, ev) }

type env struct {
	t        *testing.T
	bus      *event.Bus
	mem      *host.Memory
	hooks    *hooks
	commands *command.Registry
	emitter  *emitter
	logs     *strings.Builder
	state    *plua.State
	dune     session.Info
	arda     session.Info
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		t:        t,
		bus:      event.NewBus(),
		mem:      host.NewMemory(),
		hooks:    &hooks{},
		commands: command.NewRegistry(),
		emitter:  &emitter{},
		logs:     &strings.Builder{},
	}
	e.dune = e.mem.Open(session.Info{MUD: "dune", Character: "paul"})
	e.arda = e.mem.Open(session.Info{MUD: "arda"})

	state, err := plua.NewState()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { state.Close() })
	e.state = state

	ctx := &Context{
		Registrar: e.bus.Registrar("test"),
		Host:      e.mem,
		Hooks:     e.hooks,
		Commands:  &commands{owner: "test", reg: e.commands},
		Emitter:   e.emitter,
		Caller:    state,
		Logger:    zerolog.New(e.logs),
	}
	reg, err := DefaultRegistry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.InjectAll(state.LuaState()); err != nil {
		t.Fatal(err)
	}
	return e
}

func (e *env) run(code string) error {
	return e.state.DoString(context.Background(), code)
}

func (e *env) mustRun(code string) {
	e.t.Helper()
	if err := e.run(code); err != nil {
		e.t.Fatalf("DoString() error = %v", err)
	}
}

func (e *env) publish(ev event.Event) {
	e.t.Helper()
	if err := e.bus.Publish(context.Background(), ev); err != nil {
		e.t.Fatalf("Publish() error = %v", err)
	}
}

func (e *env) output(id session.ID) []string {
	var out []string
	for _, o := range e.mem.Output(id) {
		out = append(out, o.Text)
	}
	return out
}

func TestDefaultRegistry(t *testing.T) {
	if _, err := DefaultRegistry(&Context{}); !errors.Is(err, ErrNoCaller) {
		t.Errorf("DefaultRegistry() without caller error = %v", err)
	}

	e := newEnv(t)
	e.mustRun(`
local m = require("mud")
assert(m == mud)
assert(type(mud.on) == "function")
assert(type(mud.command) == "function")
assert(mud.module() == "test")
`)
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry()
	ctx := &Context{}
	if err := r.Register(NewSessionModule(ctx)); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(NewSessionModule(ctx)); err == nil {
		t.Error("Register() duplicate error = nil")
	}
	if _, ok := r.Get("session"); !ok {
		t.Error("Get(session) not found")
	}
	if got := r.List(); !reflect.DeepEqual(got, []string{"session"}) {
		t.Errorf("List() = %v", got)
	}
}

func TestEventModule_OnWithFilter(t *testing.T) {
	e := newEnv(t)
	e.mustRun(`
mud.on("line_received", {text = "You are hungry."}, function(ev)
  mud.output(ev.session, "eat " .. ev.kind)
end)
`)
	e.publish(event.ForSession(event.KindLineReceived, e.dune.ID, event.LinePayload{Text: "nope"}))
	e.publish(event.ForSession(event.KindLineReceived, e.dune.ID, event.LinePayload{Text: "You are hungry."}))

	if got := e.output(e.dune.ID); !reflect.DeepEqual(got, []string{"eat line_received"}) {
		t.Errorf("output = %v", got)
	}
	if n := e.bus.Registry().CountByOwner("test"); n != 1 {
		t.Errorf("subscriptions = %d, want 1", n)
	}
}

func TestEventModule_Errors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"unknown kind", `mud.on("bogus", function() end)`, "unknown event kind"},
		{"non-function handler", `mud.on("line_received", 5)`, "function expected"},
		{"bad filter key", `mud.on("line_received", {"x"}, function() end)`, "malformed filter"},
		{"bad session", `mud.send(-1, "x")`, "invalid session id"},
		{"data not named", `mud.emit("x", {1, 2})`, "named fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			err := e.run(tt.code)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
			if n := e.bus.Registry().CountByOwner("test"); n != 0 {
				t.Errorf("subscriptions = %d, want 0", n)
			}
		})
	}
}

func TestEventModule_Off(t *testing.T) {
	e := newEnv(t)
	e.mustRun(`
id = mud.on("line_received", function(ev) mud.output(ev.session, "x") end)
assert(type(id) == "string")
assert(mud.off(id) == true)
assert(mud.off(id) == false)
assert(mud.off("missing") == false)
`)
	e.publish(event.ForSession(event.KindLineReceived, e.dune.ID, event.LinePayload{Text: "a"}))
	if got := e.output(e.dune.ID); len(got) != 0 {
		t.Errorf("output after off = %v", got)
	}
}

func TestEventModule_OnMUD(t *testing.T) {
	e := newEnv(t)
	e.mustRun(`
mud.on_mud("dune", "line_received", function(ev) mud.output(ev.session, "dune line") end)
mud.on_mud("dune", "connected", function(ev) mud.output(ev.session, "welcome " .. ev.info.character) end)
`)
	for _, s := range []session.Info{e.dune, e.arda} {
		e.publish(event.ForSession(event.KindLineReceived, s.ID, event.LinePayload{Text: "a"}))
		e.publish(event.ForSession(event.KindConnectionStatus, s.ID, event.ConnectionPayload{Status: session.StatusConnected, Info: s}))
		e.publish(event.ForSession(event.KindConnectionStatus, s.ID, event.ConnectionPayload{Status: session.StatusDisconnected, Info: s}))
	}

	if got := e.output(e.dune.ID); !reflect.DeepEqual(got, []string{"dune line", "welcome paul"}) {
		t.Errorf("dune output = %v", got)
	}
	if got := e.output(e.arda.ID); len(got) != 0 {
		t.Errorf("arda output = %v", got)
	}
}

func TestEventModule_GMCPAndSession(t *testing.T) {
	e := newEnv(t)
	e.mustRun(`
mud.on_gmcp("Char.Vitals", function(ev)
  mud.output(ev.session, "hp=" .. ev.data.hp .. " " .. ev.package)
end)
mud.on_session(function(ev)
  mud.output(ev.session, ev.kind .. ":" .. (ev.module or "all"))
end)
`)
	e.publish(event.ForSession(event.KindGMCPMessage, e.dune.ID, event.GMCPPayload{Package: "Char.Vitals", JSON: `{"hp":42}`}))
	e.publish(event.ForSession(event.KindGMCPMessage, e.dune.ID, event.GMCPPayload{Package: "Room.Info", JSON: `{}`}))
	e.publish(event.ForSession(event.KindNewSession, e.dune.ID, event.SessionPayload{Info: e.dune}))
	e.publish(event.ForSession(event.KindResumeSession, e.dune.ID, event.SessionPayload{Info: e.dune, Module: "test"}))
	e.publish(event.ForSession(event.KindResumeSession, e.dune.ID, event.SessionPayload{Info: e.dune, Module: "other"}))

	want := []string{"hp=42 Char.Vitals", "new_session:all", "resume_session:test"}
	if got := e.output(e.dune.ID); !reflect.DeepEqual(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
}

func TestEventModule_Emit(t *testing.T) {
	e := newEnv(t)
	e.mustRun(`
mud.emit("tick")
mud.emit("loot", {item = "sword", count = 2}, 1)
`)
	if len(e.emitter.events) != 2 {
		t.Fatalf("emitted %d events, want 2", len(e.emitter.events))
	}
	if _, ok := e.emitter.events[0].SessionID(); ok {
		t.Error("tick is session scoped")
	}
	loot := e.emitter.events[1]
	id, _ := loot.SessionID()
	p := loot.Payload.(event.CustomPayload)
	if id != e.dune.ID || p.Type != "loot" || p.Data["item"] != "sword" || p.Data["count"] != int64(2) {
		t.Errorf("loot = %v %+v", loot, p)
	}
}

func TestSessionModule(t *testing.T) {
	e := newEnv(t)
	if err := e.mem.SetInputValue(e.dune.ID, session.NewInputLine("kill orc")); err != nil {
		t.Fatal(err)
	}
	e.mustRun(`
mud.send(1, "look")
local info = mud.session_info(1)
assert(info.mud == "dune" and info.character == "paul" and info.id == 1)
assert(mud.session_info(99) == nil)
local ids = mud.sessions()
assert(#ids == 2 and ids[1] == 1 and ids[2] == 2)
assert(mud.input(1) == "kill orc")
`)
	if got := e.mem.Sent(e.dune.ID); !reflect.DeepEqual(got, []string{"look"}) {
		t.Errorf("Sent() = %v", got)
	}
	if err := e.run(`mud.send(99, "x")`); err == nil {
		t.Error("send to unknown session error = nil")
	}
}

func TestLifecycleModule(t *testing.T) {
	e := newEnv(t)
	e.mustRun(`
mud.on_setup(function(info) mud.output(info.id, "setup " .. info.mud) end)
mud.before_reload(function() mud.emit("bye") end)
mud.log("warn", "low", "hp")
mud.log("plain message")
`)
	if len(e.hooks.setup) != 1 || len(e.hooks.reload) != 1 {
		t.Fatalf("hooks = %d setup, %d reload", len(e.hooks.setup), len(e.hooks.reload))
	}
	ctx := context.Background()
	if err := e.hooks.setup[0](ctx, e.dune); err != nil {
		t.Fatal(err)
	}
	if err := e.hooks.reload[0](ctx); err != nil {
		t.Fatal(err)
	}
	if got := e.output(e.dune.ID); !reflect.DeepEqual(got, []string{"setup dune"}) {
		t.Errorf("output = %v", got)
	}
	if len(e.emitter.events) != 1 {
		t.Errorf("emitted %d events, want 1", len(e.emitter.events))
	}

	logs := e.logs.String()
	for _, want := range []string{`"level":"warn"`, `"message":"low hp"`, `"message":"plain message"`, `"module":"test"`} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %s:\n%s", want, logs)
		}
	}
}

func TestCommandModule(t *testing.T) {
	e := newEnv(t)
	e.mustRun(`
mud.command(1, "loot", function(session, args) return "looted " .. args end, {"l", "lt"})
mud.command(1, "quiet", function() end, {description = "does nothing", aliases = {"q"}})
`)
	ctx := context.Background()

	cmd, ok := e.commands.Lookup(e.dune.ID, "lt")
	if !ok || cmd.Name != "loot" || cmd.Owner != "test" {
		t.Fatalf("Lookup(lt) = %+v, %v", cmd, ok)
	}
	if err := cmd.Handler(ctx, e.dune.ID, "corpse"); err != nil {
		t.Fatal(err)
	}
	quiet, ok := e.commands.Lookup(e.dune.ID, "q")
	if !ok || quiet.Description != "does nothing" {
		t.Fatalf("Lookup(q) = %+v, %v", quiet, ok)
	}
	if err := quiet.Handler(ctx, e.dune.ID, ""); err != nil {
		t.Fatal(err)
	}

	want := []session.Output{session.CommandResult("looted corpse")}
	if got := e.mem.Output(e.dune.ID); !reflect.DeepEqual(got, want) {
		t.Errorf("Output() = %v, want %v", got, want)
	}
	if err := e.run(`mud.command(1, "", function() end)`); err == nil {
		t.Error("command with empty name error = nil")
	}
}

func TestEventTable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	original := "kill orc"
	line := session.InputLine{Sent: "k orc", Original: &original, Scripted: true}
	tbl := EventTable(L, event.ForSession(event.KindInputLineSent, 3, event.InputPayload{Line: line}))

	if tbl.RawGetString("kind").String() != "input_line_sent" || tbl.RawGetString("session") != lua.LNumber(3) {
		t.Errorf("kind/session = %v/%v", tbl.RawGetString("kind"), tbl.RawGetString("session"))
	}
	lt := tbl.RawGetString("line").(*lua.LTable)
	if lt.RawGetString("sent").String() != "k orc" || lt.RawGetString("original").String() != "kill orc" || lt.RawGetString("scripted") != lua.LTrue {
		t.Errorf("line table mismatch")
	}

	reload := EventTable(L, event.New(event.KindModulesReloaded, event.ReloadPayload{
		Modules: []event.ModuleID{"a", "b"},
		Failed:  []event.ModuleID{"b"},
	}))
	failed := reload.RawGetString("failed").(*lua.LTable)
	if failed.Len() != 1 || failed.RawGetInt(1).String() != "b" {
		t.Errorf("failed = %v", failed)
	}
	if reload.RawGetString("session") != lua.LNil {
		t.Error("process-wide event has a session")
	}
}
