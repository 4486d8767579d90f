package event

import "sync"

// Registry holds subscriptions per kind in registration order. Each mutation
// replaces the affected slice, so a snapshot handed to Publish is never
// modified underneath it.
type Registry struct {
	mu   sync.Mutex
	subs map[Kind][]*subscription
	byID map[string]*subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[Kind][]*subscription),
		byID: make(map[string]*subscription),
	}
}

func (r *Registry) add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.subs[sub.kind]
	next := make([]*subscription, len(old), len(old)+1)
	copy(next, old)
	r.subs[sub.kind] = append(next, sub)
	r.byID[sub.id] = sub
}

func (r *Registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[id]
	if !ok {
		return false
	}
	sub.cancel()
	delete(r.byID, id)

	r.subs[sub.kind] = without(r.subs[sub.kind], func(s *subscription) bool {
		return s == sub
	})
	if len(r.subs[sub.kind]) == 0 {
		delete(r.subs, sub.kind)
	}
	return true
}

// removeOwner cancels and removes every subscription owned by owner and
// returns how many were removed.
func (r *Registry) removeOwner(owner ModuleID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for kind, subs := range r.subs {
		n := 0
		for _, s := range subs {
			if s.owner == owner {
				n++
			}
		}
		if n == 0 {
			continue
		}

		r.subs[kind] = without(subs, func(s *subscription) bool {
			if s.owner != owner {
				return false
			}
			s.cancel()
			delete(r.byID, s.id)
			return true
		})
		if len(r.subs[kind]) == 0 {
			delete(r.subs, kind)
		}
		removed += n
	}
	return removed
}

// snapshot returns the subscriptions for kind. The returned slice must not
// be modified.
func (r *Registry) snapshot(kind Kind) []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[kind]
}

// Count returns the total number of subscriptions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// CountByKind returns the number of subscriptions for kind.
func (r *Registry) CountByKind(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[kind])
}

// CountByOwner returns the number of subscriptions owned by owner.
func (r *Registry) CountByOwner(owner ModuleID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.byID {
		if s.owner == owner {
			n++
		}
	}
	return n
}

// Owners returns the owners of the subscriptions for kind in dispatch order.
func (r *Registry) Owners(kind Kind) []ModuleID {
	subs := r.snapshot(kind)
	out := make([]ModuleID, len(subs))
	for i, s := range subs {
		out[i] = s.owner
	}
	return out
}

// without returns a new slice holding the elements for which drop is false.
func without(subs []*subscription, drop func(*subscription) bool) []*subscription {
	out := make([]*subscription, 0, len(subs))
	for _, s := range subs {
		if !drop(s) {
			out = append(out, s)
		}
	}
	return out
}
