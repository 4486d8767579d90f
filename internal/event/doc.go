// Package event implements the ordered, owner-attributed event registry that
// script modules use to react to session activity.
//
// # Ordering
//
// Subscriptions for a Kind are kept in registration order and Publish invokes
// matching handlers in exactly that order. Modules are loaded in a
// deterministic order and may rely on it, for example when several modules
// extend the same layout in turn.
//
// # Filters
//
// A Filter maps event field names to required values. An event matches when
// every filter entry equals the corresponding field (see Event.Field). An empty
// filter matches everything. Mismatches are silent.
//
// # Ownership
//
// Every subscription carries the ModuleID of the module that created it.
// RetractByOwner removes all of a module's subscriptions in one pass, which is
// how hot reload clears a module before re-running it. Owners are bound once in
// a Registrar; helpers such as OnConnected or OnMUD take the Registrar they are
// given and never substitute their own identity, so attribution survives any
// depth of wrapping:
//
//	r := bus.Registrar("autoloot")
//	event.OnMUDConnected(r, sessions, "dune", func(ctx context.Context, ev event.Event) error {
//	    // ...
//	    return nil
//	})
//	bus.RetractByOwner("autoloot") // removes the wrapped handler too
//
// # Failures
//
// Handler errors and panics are caught per handler, logged, counted and
// returned as DispatchErrors; they never stop the remaining handlers.
package event
