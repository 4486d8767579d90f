package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the event bus.
var (
	// ErrInvalidHandler is returned when a nil handler is registered.
	ErrInvalidHandler = errors.New("handler is not callable")

	// ErrMalformedFilter is returned when a filter has an empty field name or
	// a value that cannot be compared.
	ErrMalformedFilter = errors.New("malformed filter")

	// ErrUnknownKind is returned for event kinds the host does not define.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrMissingOwner is returned when a subscription has no owning module.
	ErrMissingOwner = errors.New("subscription owner is required")

	// ErrSubscriptionNotFound is returned when unsubscribing a subscription
	// that is no longer registered.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrHandlerPanic is matched by PanicError.
	ErrHandlerPanic = errors.New("handler panicked")
)

// RegistrationError reports a rejected Subscribe call. It is returned to the
// registering module and affects only that registration.
type RegistrationError struct {
	Kind  Kind
	Owner ModuleID
	Err   error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s handler for module %q: %v", e.Kind, e.Owner, e.Err)
}

// Unwrap returns the underlying error.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// DispatchError wraps an error returned by a handler during Publish.
type DispatchError struct {
	// SubscriptionID is the ID of the subscription whose handler failed.
	SubscriptionID string

	// Owner is the module that owns the subscription.
	Owner ModuleID

	// Kind is the kind of the event being dispatched.
	Kind Kind

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s handler %s of module %q: %v", e.Kind, e.SubscriptionID, e.Owner, e.Err)
}

// Unwrap returns the underlying error.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic value as an error.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
