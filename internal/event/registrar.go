package event

import (
	"context"
	"fmt"
	"slices"
)

// Registrar registers subscriptions on behalf of one module. It is a small
// value: copying it keeps the same owner, and nothing built on top of it can
// change the owner.
type Registrar struct {
	bus   *Bus
	owner ModuleID
}

// Owner returns the module registrations are attributed to.
func (r Registrar) Owner() ModuleID {
	return r.owner
}

// Bus returns the underlying bus.
func (r Registrar) Bus() *Bus {
	return r.bus
}

// Subscribe registers handler for kind under the registrar's owner.
func (r Registrar) Subscribe(kind Kind, filter Filter, handler Handler) (Handle, error) {
	return r.bus.Subscribe(kind, r.owner, filter, handler)
}

// SubscribeFunc is Subscribe for a plain function.
func (r Registrar) SubscribeFunc(kind Kind, filter Filter, fn HandlerFunc) (Handle, error) {
	return r.bus.Subscribe(kind, r.owner, filter, fn)
}

// On starts a subscription spec for one or more kinds.
func (r Registrar) On(kinds ...Kind) Spec {
	return Spec{
		reg:   r,
		kinds: slices.Clone(kinds),
	}
}

// Predicate is an extra condition evaluated before a handler runs.
type Predicate func(Event) bool

// Spec describes a subscription before it is registered. Every method
// returns a new Spec; the receiver is never modified, so a partially built
// Spec can be shared and extended in loops without aliasing.
type Spec struct {
	reg    Registrar
	kinds  []Kind
	filter Filter
	preds  []Predicate
}

// Where adds a field requirement.
func (s Spec) Where(field string, value any) Spec {
	s.filter = s.filter.Where(field, value)
	return s
}

// Match adds every entry of f as a field requirement.
func (s Spec) Match(f Filter) Spec {
	for k, v := range f {
		s = s.Where(k, v)
	}
	return s
}

// When adds a predicate. Predicates run after the filter, in the order added.
func (s Spec) When(p Predicate) Spec {
	next := make([]Predicate, len(s.preds), len(s.preds)+1)
	copy(next, s.preds)
	s.preds = append(next, p)
	return s
}

// Owner returns the module the spec will register under.
func (s Spec) Owner() ModuleID {
	return s.reg.owner
}

// Do registers handler for every kind of the spec. If any registration
// fails, the ones already made are removed and the error is returned.
func (s Spec) Do(handler Handler) ([]Handle, error) {
	if len(s.kinds) == 0 {
		return nil, &RegistrationError{Owner: s.reg.owner, Err: fmt.Errorf("%w: no kinds given", ErrUnknownKind)}
	}
	if validHandler(handler) && len(s.preds) > 0 {
		handler = guarded(handler, slices.Clone(s.preds))
	}

	handles := make([]Handle, 0, len(s.kinds))
	for _, kind := range s.kinds {
		h, err := s.reg.Subscribe(kind, s.filter, handler)
		if err != nil {
			for _, done := range handles {
				_ = s.reg.bus.Unsubscribe(done)
			}
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// DoFunc is Do for a plain function.
func (s Spec) DoFunc(fn HandlerFunc) ([]Handle, error) {
	return s.Do(fn)
}

func guarded(h Handler, preds []Predicate) Handler {
	return HandlerFunc(func(ctx context.Context, ev Event) error {
		for _, p := range preds {
			if !p(ev) {
				return nil
			}
		}
		return h.Handle(ctx, ev)
	})
}
