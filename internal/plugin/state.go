package plugin

// State represents the lifecycle state of a module.
type State int

// Module states.
const (
	// StateUnloaded - registered but its code has not run, or it was
	// retracted for a reload.
	StateUnloaded State = iota

	// StateLoaded - its code ran successfully and its registrations are live.
	StateLoaded

	// StateError - its last load failed; it holds no registrations.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsUsable returns true if the module's registrations are live.
func (s State) IsUsable() bool {
	return s == StateLoaded
}
