package event

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/mudscript/internal/session"
)

type lookup map[session.ID]session.Info

func (l lookup) SessionInfo(id session.ID) (session.Info, bool) {
	info, ok := l[id]
	return info, ok
}

func connectedEvent(id session.ID, mud string) Event {
	return ForSession(KindConnectionStatus, id, ConnectionPayload{
		Status: session.StatusConnected,
		Info:   session.Info{ID: id, MUD: mud},
	})
}

func TestRegistrar_OwnerThroughNestedHelpers(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	sessions := lookup{1: {ID: 1, MUD: "Dune"}, 2: {ID: 2, MUD: "Aardwolf"}}

	r := bus.Registrar("autoloot")
	handles, err := OnMUDConnected(r, sessions, "dune", rec.handler("dune-connected"))
	if err != nil {
		t.Fatalf("OnMUDConnected() failed: %v", err)
	}
	for _, h := range handles {
		if h.Owner() != "autoloot" {
			t.Errorf("handle owner = %q, want autoloot", h.Owner())
		}
	}
	bus.Registrar("other").Subscribe(KindConnectionStatus, nil, rec.handler("other"))

	ctx := context.Background()
	bus.Publish(ctx, connectedEvent(2, "Aardwolf"))
	bus.Publish(ctx, connectedEvent(1, "Dune"))
	bus.Publish(ctx, ForSession(KindConnectionStatus, 1, ConnectionPayload{Status: session.StatusDisconnected}))

	want := []string{"other", "dune-connected", "other", "other"}
	if got := rec.got(); !equalStrings(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}

	if n := bus.RetractByOwner("autoloot"); n != 1 {
		t.Errorf("RetractByOwner(autoloot) = %d, want 1", n)
	}

	rec.reset()
	bus.Publish(ctx, connectedEvent(1, "Dune"))
	if got := rec.got(); !equalStrings(got, []string{"other"}) {
		t.Errorf("calls after retract = %v, want [other]", got)
	}
}

func TestSpec_ValueSemantics(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	base := bus.Registrar("keys").On(KindKeyPressed)
	for _, code := range []string{"f1", "f2", "f3"} {
		if _, err := base.Where("code", code).Do(rec.handler(code)); err != nil {
			t.Fatalf("Do() failed: %v", err)
		}
	}

	ctx := context.Background()
	for _, code := range []string{"f3", "f1", "f9", "f2"} {
		bus.Publish(ctx, keyEvent(code))
	}

	want := []string{"f3", "f1", "f2"}
	if got := rec.got(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestSpec_WhenDoesNotAlias(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	never := func(Event) bool { return false }
	always := func(Event) bool { return true }

	base := bus.Registrar("m").On(KindKeyPressed).When(always)
	a := base.When(never)
	b := base.When(always)

	a.Do(rec.handler("a"))
	b.Do(rec.handler("b"))

	bus.Publish(context.Background(), keyEvent("x"))
	if got := rec.got(); !equalStrings(got, []string{"b"}) {
		t.Errorf("calls = %v, want [b]", got)
	}
}

func TestSpec_MultipleKinds(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	handles, err := OnNewSessionOrResume(bus.Registrar("ui"), rec.handler("setup"))
	if err != nil {
		t.Fatalf("OnNewSessionOrResume() failed: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("len(handles) = %d, want 2", len(handles))
	}

	ctx := context.Background()
	bus.Publish(ctx, ForSession(KindNewSession, 1, SessionPayload{}))
	bus.Publish(ctx, ForSession(KindResumeSession, 1, SessionPayload{}))

	if got := rec.got(); !equalStrings(got, []string{"setup", "setup"}) {
		t.Errorf("calls = %v", got)
	}
}

func TestOnNewSessionOrResume_ScopedToModule(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want int
	}{
		{"new session", ForSession(KindNewSession, 1, SessionPayload{Module: "other"}), 1},
		{"resume all", ForSession(KindResumeSession, 1, SessionPayload{}), 1},
		{"resume own", ForSession(KindResumeSession, 1, SessionPayload{Module: "ui"}), 1},
		{"resume other", ForSession(KindResumeSession, 1, SessionPayload{Module: "other"}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewBus()
			rec := &recorder{}
			if _, err := OnNewSessionOrResume(bus.Registrar("ui"), rec.handler("setup")); err != nil {
				t.Fatalf("OnNewSessionOrResume() failed: %v", err)
			}
			bus.Publish(context.Background(), tt.ev)
			if got := len(rec.got()); got != tt.want {
				t.Errorf("calls = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSpec_DoRollsBack(t *testing.T) {
	bus := NewBus()
	spec := bus.Registrar("m").On(KindKeyPressed, Kind("bogus"))

	_, err := spec.DoFunc(func(ctx context.Context, ev Event) error { return nil })
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Do() error = %v, want ErrUnknownKind", err)
	}
	if n := bus.Registry().Count(); n != 0 {
		t.Errorf("Count() = %d, want 0 after rollback", n)
	}

	if _, err := bus.Registrar("m").On().Do(HandlerFunc(func(ctx context.Context, ev Event) error { return nil })); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Do() with no kinds error = %v, want ErrUnknownKind", err)
	}
	if _, err := bus.Registrar("m").On(KindKeyPressed).When(func(Event) bool { return true }).Do(nil); !errors.Is(err, ErrInvalidHandler) {
		t.Errorf("Do(nil) error = %v, want ErrInvalidHandler", err)
	}
}

func TestCombinators(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	r := bus.Registrar("plug")
	sessions := lookup{1: {ID: 1, MUD: "dune"}}

	OnConnected(r, rec.handler("connected"))
	OnDisconnected(r, rec.handler("disconnected"))
	OnGMCP(r, "Char.Vitals", rec.handler("vitals"))
	OnCustom(r, "loot", rec.handler("loot"))
	OnMUD(r, sessions, "dune", KindLineReceived, rec.handler("dune-line"))

	ctx := context.Background()
	bus.Publish(ctx, connectedEvent(1, "dune"))
	bus.Publish(ctx, ForSession(KindConnectionStatus, 1, ConnectionPayload{Status: session.StatusDisconnected}))
	bus.Publish(ctx, ForSession(KindGMCPMessage, 1, GMCPPayload{Package: "Room.Info", JSON: "{}"}))
	bus.Publish(ctx, ForSession(KindGMCPMessage, 1, GMCPPayload{Package: "Char.Vitals", JSON: "{}"}))
	bus.Publish(ctx, New(KindCustom, CustomPayload{Type: "loot"}))
	bus.Publish(ctx, ForSession(KindLineReceived, 2, LinePayload{Text: "x"}))
	bus.Publish(ctx, ForSession(KindLineReceived, 1, LinePayload{Text: "x"}))
	bus.Publish(ctx, New(KindLineReceived, LinePayload{Text: "x"}))

	want := []string{"connected", "disconnected", "vitals", "loot", "dune-line"}
	if got := rec.got(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	if n := bus.RetractByOwner("plug"); n != 5 {
		t.Errorf("RetractByOwner() = %d, want 5", n)
	}
}
