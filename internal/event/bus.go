package event

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/mudscript/internal/event/dispatch"
)

// Bus dispatches events to subscriptions in registration order.
//
// Publish runs every matching handler in the caller's goroutine. The bus holds
// no lock while a handler runs, so handlers may subscribe, unsubscribe or
// retract; changes take effect for later events, except that a retracted
// subscription is never invoked again, even by the pass already in progress.
type Bus struct {
	registry *Registry
	seq      *dispatch.Sequencer
	log      zerolog.Logger

	// Stats
	published     atomic.Uint64
	delivered     atomic.Uint64
	filtered      atomic.Uint64
	handlerErrors atomic.Uint64
	handlerPanics atomic.Uint64
	retracted     atomic.Uint64
}

// NewBus creates a bus with the given options.
func NewBus(opts ...BusOption) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	registry := config.registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Bus{
		registry: registry,
		seq:      dispatch.NewSequencer(dispatch.WithTimeout(config.handlerTimeout)),
		log:      config.logger,
	}
}

// Registry returns the bus's subscription registry.
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Subscribe appends a subscription for kind. The filter is copied, so later
// changes to the caller's map have no effect.
func (b *Bus) Subscribe(kind Kind, owner ModuleID, filter Filter, handler Handler) (Handle, error) {
	regErr := func(err error) (Handle, error) {
		return Handle{}, &RegistrationError{Kind: kind, Owner: owner, Err: err}
	}

	if !kind.Valid() {
		return regErr(fmt.Errorf("%w: %q", ErrUnknownKind, kind))
	}
	if owner == "" {
		return regErr(ErrMissingOwner)
	}
	if !validHandler(handler) {
		return regErr(ErrInvalidHandler)
	}
	if err := filter.Validate(); err != nil {
		return regErr(err)
	}

	sub := newSubscription(kind, owner, filter, handler)
	b.registry.add(sub)

	b.log.Debug().
		Str("kind", string(kind)).
		Str("owner", string(owner)).
		Str("subscription", sub.id).
		Msg("subscribed")

	return sub.handle(), nil
}

// SubscribeFunc is Subscribe for a plain function.
func (b *Bus) SubscribeFunc(kind Kind, owner ModuleID, filter Filter, fn HandlerFunc) (Handle, error) {
	return b.Subscribe(kind, owner, filter, fn)
}

// Unsubscribe removes a single subscription.
func (b *Bus) Unsubscribe(h Handle) error {
	if h.sub == nil || !b.registry.remove(h.sub.id) {
		return ErrSubscriptionNotFound
	}
	return nil
}

// RetractByOwner removes every subscription owned by owner across all kinds
// and returns how many were removed. The relative order of the remaining
// subscriptions is unchanged. Retracting an owner with no subscriptions is a
// no-op.
func (b *Bus) RetractByOwner(owner ModuleID) int {
	n := b.registry.removeOwner(owner)
	b.retracted.Add(uint64(n))

	if n > 0 {
		b.log.Debug().
			Str("owner", string(owner)).
			Int("count", n).
			Msg("retracted subscriptions")
	}
	return n
}

// Registrar returns a registrar that attributes registrations to owner.
func (b *Bus) Registrar(owner ModuleID) Registrar {
	return Registrar{bus: b, owner: owner}
}

// Publish delivers ev to every matching subscription for its kind, in
// registration order. Handler errors and panics are logged and collected;
// they never stop the remaining handlers. The returned error joins the
// DispatchErrors of the pass, or carries the context error when the context
// ended before every handler ran.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("publish: %w: %q", ErrUnknownKind, ev.Kind)
	}
	b.published.Add(1)

	var errs []error
	for _, sub := range b.registry.snapshot(ev.Kind) {
		if sub.isCancelled() {
			continue
		}
		if !sub.filter.Matches(ev) {
			b.filtered.Add(1)
			continue
		}

		handler := sub.handler
		result := b.seq.Do(ctx, func(ctx context.Context) error {
			return handler.Handle(ctx, ev)
		})
		if result.Skipped {
			errs = append(errs, fmt.Errorf("publish %s: %w", ev.Kind, result.Err))
			break
		}

		b.delivered.Add(1)
		if err := b.failure(sub, ev, result); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// failure converts a failed result into a logged DispatchError.
func (b *Bus) failure(sub *subscription, ev Event, result dispatch.Result) error {
	var cause error
	switch {
	case result.Panicked:
		b.handlerPanics.Add(1)
		cause = &PanicError{Value: result.PanicValue, Stack: string(result.PanicStack)}
		b.log.Error().
			Str("kind", string(ev.Kind)).
			Str("owner", string(sub.owner)).
			Str("subscription", sub.id).
			Interface("panic", result.PanicValue).
			Msg("event handler panicked")
	case result.Err != nil:
		b.handlerErrors.Add(1)
		cause = result.Err
		b.log.Error().
			Err(result.Err).
			Str("kind", string(ev.Kind)).
			Str("owner", string(sub.owner)).
			Str("subscription", sub.id).
			Msg("event handler failed")
	default:
		return nil
	}

	return &DispatchError{
		SubscriptionID: sub.id,
		Owner:          sub.owner,
		Kind:           ev.Kind,
		Err:            cause,
	}
}

// Stats returns running totals.
func (b *Bus) Stats() Stats {
	return Stats{
		EventsPublished:     b.published.Load(),
		EventsDelivered:     b.delivered.Load(),
		EventsFiltered:      b.filtered.Load(),
		HandlerErrors:       b.handlerErrors.Load(),
		HandlerPanics:       b.handlerPanics.Load(),
		Retracted:           b.retracted.Load(),
		ActiveSubscriptions: b.registry.Count(),
		Handlers:            b.seq.Stats(),
	}
}

// Stats contains bus totals.
type Stats struct {
	// EventsPublished counts Publish calls with a valid kind.
	EventsPublished uint64

	// EventsDelivered counts handler invocations.
	EventsDelivered uint64

	// EventsFiltered counts subscriptions skipped by their filter.
	EventsFiltered uint64

	// HandlerErrors counts handlers that returned an error.
	HandlerErrors uint64

	// HandlerPanics counts handlers that panicked.
	HandlerPanics uint64

	// Retracted counts subscriptions removed by RetractByOwner.
	Retracted uint64

	// ActiveSubscriptions is the current number of subscriptions.
	ActiveSubscriptions int

	// Handlers holds timing totals for handler calls.
	Handlers dispatch.Stats
}
