package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dshills/mudscript/internal/session"
)

// recorder collects handler invocations in call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) handler(name string) HandlerFunc {
	return func(ctx context.Context, ev Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		return nil
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func keyEvent(code string) Event {
	return ForSession(KindKeyPressed, 1, KeyPayload{Code: code})
}

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	h, err := bus.SubscribeFunc(KindKeyPressed, "mod", nil, func(ctx context.Context, ev Event) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	if h.ID() == "" {
		t.Error("expected non-empty subscription ID")
	}
	if h.Kind() != KindKeyPressed {
		t.Errorf("Kind() = %q, want %q", h.Kind(), KindKeyPressed)
	}
	if h.Owner() != "mod" {
		t.Errorf("Owner() = %q, want %q", h.Owner(), "mod")
	}
	if !h.Active() {
		t.Error("expected handle to be active")
	}
	if n := bus.Registry().Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestBus_Subscribe_Rejected(t *testing.T) {
	bus := NewBus()
	ok := HandlerFunc(func(ctx context.Context, ev Event) error { return nil })

	tests := []struct {
		name    string
		kind    Kind
		owner   ModuleID
		filter  Filter
		handler Handler
		want    error
	}{
		{"nil handler", KindKeyPressed, "mod", nil, nil, ErrInvalidHandler},
		{"nil func", KindKeyPressed, "mod", nil, HandlerFunc(nil), ErrInvalidHandler},
		{"unknown kind", Kind("bogus"), "mod", nil, ok, ErrUnknownKind},
		{"missing owner", KindKeyPressed, "", nil, ok, ErrMissingOwner},
		{"empty field", KindKeyPressed, "mod", Filter{"": "x"}, ok, ErrMalformedFilter},
		{"slice value", KindKeyPressed, "mod", Filter{"code": []string{"f5"}}, ok, ErrMalformedFilter},
		{"nil value", KindKeyPressed, "mod", Filter{"code": nil}, ok, ErrMalformedFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bus.Subscribe(tt.kind, tt.owner, tt.filter, tt.handler)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Subscribe() error = %v, want %v", err, tt.want)
			}
			var regErr *RegistrationError
			if !errors.As(err, &regErr) {
				t.Fatalf("expected *RegistrationError, got %T", err)
			}
		})
	}

	if n := bus.Registry().Count(); n != 0 {
		t.Errorf("rejected registrations left %d subscriptions", n)
	}
}

func TestBus_Publish_RegistrationOrder(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	// Filters must not affect relative order.
	bus.Subscribe(KindKeyPressed, "c", nil, rec.handler("c1"))
	bus.Subscribe(KindKeyPressed, "a", Filter{"code": "f5"}, rec.handler("a1"))
	bus.Subscribe(KindKeyPressed, "b", nil, rec.handler("b1"))
	bus.Subscribe(KindKeyPressed, "a", Filter{"session": 1}, rec.handler("a2"))
	bus.Subscribe(KindLineReceived, "a", nil, rec.handler("line"))

	if err := bus.Publish(context.Background(), keyEvent("f5")); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	want := []string{"c1", "a1", "b1", "a2"}
	if got := rec.got(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestBus_Publish_FilterMismatchIsSilent(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	bus.Subscribe(KindKeyPressed, "ownerA", Filter{}, rec.handler("h1"))
	bus.Subscribe(KindKeyPressed, "ownerB", Filter{"code": "f5"}, rec.handler("h2"))

	if err := bus.Publish(context.Background(), keyEvent("f6")); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	if got := rec.got(); !equalStrings(got, []string{"h1"}) {
		t.Errorf("calls = %v, want [h1]", got)
	}
	stats := bus.Stats()
	if stats.EventsFiltered != 1 {
		t.Errorf("EventsFiltered = %d, want 1", stats.EventsFiltered)
	}
	if stats.EventsDelivered != 1 {
		t.Errorf("EventsDelivered = %d, want 1", stats.EventsDelivered)
	}
}

func TestBus_Publish_UnknownKind(t *testing.T) {
	bus := NewBus()
	err := bus.Publish(context.Background(), New(Kind("bogus"), nil))
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Publish() error = %v, want ErrUnknownKind", err)
	}
}

func TestBus_RetractByOwner(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	bus.Subscribe(KindKeyPressed, "a", nil, rec.handler("a1"))
	bus.Subscribe(KindKeyPressed, "m", nil, rec.handler("m1"))
	bus.Subscribe(KindKeyPressed, "b", nil, rec.handler("b1"))
	bus.Subscribe(KindLineReceived, "m", nil, rec.handler("m2"))
	bus.Subscribe(KindKeyPressed, "m", nil, rec.handler("m3"))
	bus.Subscribe(KindKeyPressed, "c", nil, rec.handler("c1"))

	if n := bus.RetractByOwner("m"); n != 3 {
		t.Errorf("RetractByOwner() = %d, want 3", n)
	}

	ctx := context.Background()
	bus.Publish(ctx, keyEvent("x"))
	bus.Publish(ctx, ForSession(KindLineReceived, 1, LinePayload{Text: "hi"}))

	want := []string{"a1", "b1", "c1"}
	if got := rec.got(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if n := bus.Registry().CountByOwner("m"); n != 0 {
		t.Errorf("CountByOwner(m) = %d, want 0", n)
	}

	// Idempotent.
	if n := bus.RetractByOwner("m"); n != 0 {
		t.Errorf("second RetractByOwner() = %d, want 0", n)
	}
	if n := bus.RetractByOwner("nobody"); n != 0 {
		t.Errorf("RetractByOwner(nobody) = %d, want 0", n)
	}
}

func TestBus_RetractDuringPublish(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	bus.SubscribeFunc(KindKeyPressed, "a", nil, func(ctx context.Context, ev Event) error {
		rec.handler("a")(ctx, ev)
		bus.RetractByOwner("m")
		return nil
	})
	h, _ := bus.Subscribe(KindKeyPressed, "m", nil, rec.handler("m"))
	bus.Subscribe(KindKeyPressed, "b", nil, rec.handler("b"))

	bus.Publish(context.Background(), keyEvent("x"))

	want := []string{"a", "b"}
	if got := rec.got(); !equalStrings(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if h.Active() {
		t.Error("expected retracted handle to be inactive")
	}
}

func TestBus_SubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	bus.SubscribeFunc(KindKeyPressed, "a", nil, func(ctx context.Context, ev Event) error {
		rec.handler("a")(ctx, ev)
		_, err := bus.Subscribe(KindKeyPressed, "late", nil, rec.handler("late"))
		return err
	})

	ctx := context.Background()
	bus.Publish(ctx, keyEvent("x"))
	if got := rec.got(); !equalStrings(got, []string{"a"}) {
		t.Errorf("first pass calls = %v, want [a]", got)
	}

	rec.reset()
	bus.RetractByOwner("a")
	bus.Publish(ctx, keyEvent("x"))
	if got := rec.got(); !equalStrings(got, []string{"late"}) {
		t.Errorf("second pass calls = %v, want [late]", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	h, _ := bus.Subscribe(KindKeyPressed, "a", nil, rec.handler("a"))
	bus.Subscribe(KindKeyPressed, "b", nil, rec.handler("b"))

	if err := bus.Unsubscribe(h); err != nil {
		t.Fatalf("Unsubscribe() failed: %v", err)
	}
	if err := bus.Unsubscribe(h); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("second Unsubscribe() error = %v, want ErrSubscriptionNotFound", err)
	}
	if err := bus.Unsubscribe(Handle{}); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("Unsubscribe(zero) error = %v, want ErrSubscriptionNotFound", err)
	}

	bus.Publish(context.Background(), keyEvent("x"))
	if got := rec.got(); !equalStrings(got, []string{"b"}) {
		t.Errorf("calls = %v, want [b]", got)
	}
}

func TestBus_HandlerErrorIsolation(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	boom := errors.New("boom")

	bus.Subscribe(KindKeyPressed, "a", nil, rec.handler("a"))
	bus.SubscribeFunc(KindKeyPressed, "bad", nil, func(ctx context.Context, ev Event) error {
		return boom
	})
	bus.SubscribeFunc(KindKeyPressed, "panicky", nil, func(ctx context.Context, ev Event) error {
		panic("kaboom")
	})
	bus.Subscribe(KindKeyPressed, "b", nil, rec.handler("b"))

	err := bus.Publish(context.Background(), keyEvent("x"))
	if err == nil {
		t.Fatal("expected dispatch errors")
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected error to wrap boom, got %v", err)
	}
	if !errors.Is(err, ErrHandlerPanic) {
		t.Errorf("expected error to match ErrHandlerPanic, got %v", err)
	}

	var dispErr *DispatchError
	if !errors.As(err, &dispErr) {
		t.Fatalf("expected *DispatchError, got %T", err)
	}
	if dispErr.Owner != "bad" || dispErr.Kind != KindKeyPressed {
		t.Errorf("DispatchError = %+v", dispErr)
	}

	if got := rec.got(); !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("calls = %v, want [a b]", got)
	}

	stats := bus.Stats()
	if stats.HandlerErrors != 1 {
		t.Errorf("HandlerErrors = %d, want 1", stats.HandlerErrors)
	}
	if stats.HandlerPanics != 1 {
		t.Errorf("HandlerPanics = %d, want 1", stats.HandlerPanics)
	}
	if stats.EventsDelivered != 4 {
		t.Errorf("EventsDelivered = %d, want 4", stats.EventsDelivered)
	}
}

func TestBus_Publish_CancelledContext(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe(KindKeyPressed, "a", nil, rec.handler("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Publish(ctx, keyEvent("x"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() error = %v, want context.Canceled", err)
	}
	if len(rec.got()) != 0 {
		t.Errorf("handler ran on cancelled context")
	}
}

func TestBus_FilterCopied(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	f := Filter{"code": "f5"}
	bus.Subscribe(KindKeyPressed, "a", f, rec.handler("a"))
	f["code"] = "f6"

	bus.Publish(context.Background(), keyEvent("f5"))
	if got := rec.got(); !equalStrings(got, []string{"a"}) {
		t.Errorf("calls = %v, want [a]", got)
	}
}

func TestBus_ConcurrentSubscribeAndRetract(t *testing.T) {
	bus := NewBus()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := ModuleID("m" + session.ID(i).String())
			for j := 0; j < 50; j++ {
				bus.SubscribeFunc(KindLineReceived, owner, nil, func(ctx context.Context, ev Event) error {
					return nil
				})
			}
			bus.Publish(context.Background(), New(KindLineReceived, LinePayload{Text: "x"}))
			bus.RetractByOwner(owner)
		}(i)
	}
	wg.Wait()

	if n := bus.Registry().Count(); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}
