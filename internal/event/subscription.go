package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ModuleID identifies the script module that owns a registration. It is used
// only for bulk retraction.
type ModuleID string

// CoreModule owns the runtime's own always-on subscriptions.
const CoreModule ModuleID = "core"

// Handler processes an event.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

func validHandler(h Handler) bool {
	if h == nil {
		return false
	}
	if f, ok := h.(HandlerFunc); ok && f == nil {
		return false
	}
	return true
}

// subscription is one registered (kind, owner, filter, handler) tuple.
// All fields except cancelled are fixed at construction.
type subscription struct {
	id        string
	kind      Kind
	owner     ModuleID
	filter    Filter
	handler   Handler
	created   time.Time
	cancelled atomic.Bool
}

func newSubscription(kind Kind, owner ModuleID, filter Filter, handler Handler) *subscription {
	return &subscription{
		id:      uuid.NewString(),
		kind:    kind,
		owner:   owner,
		filter:  filter.Clone(),
		handler: handler,
		created: time.Now(),
	}
}

func (s *subscription) cancel() {
	s.cancelled.Store(true)
}

func (s *subscription) isCancelled() bool {
	return s.cancelled.Load()
}

func (s *subscription) handle() Handle {
	return Handle{sub: s}
}

// Handle refers to a registered subscription.
type Handle struct {
	sub *subscription
}

// ID returns the unique subscription identifier.
func (h Handle) ID() string {
	if h.sub == nil {
		return ""
	}
	return h.sub.id
}

// Kind returns the subscribed event kind.
func (h Handle) Kind() Kind {
	if h.sub == nil {
		return ""
	}
	return h.sub.kind
}

// Owner returns the owning module.
func (h Handle) Owner() ModuleID {
	if h.sub == nil {
		return ""
	}
	return h.sub.owner
}

// Active reports whether the subscription is still registered.
func (h Handle) Active() bool {
	return h.sub != nil && !h.sub.isCancelled()
}
