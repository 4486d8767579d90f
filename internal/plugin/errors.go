package plugin

import (
	"errors"
	"fmt"

	"github.com/dshills/mudscript/internal/event"
)

// Module system errors.
var (
	// ErrModuleNotFound is returned for an id the manager does not know.
	ErrModuleNotFound = errors.New("module not found")

	// ErrAlreadyRegistered is returned when registering a duplicate id.
	ErrAlreadyRegistered = errors.New("module is already registered")

	// ErrAlreadyLoaded is returned when loading a module that is loaded.
	ErrAlreadyLoaded = errors.New("module is already loaded")

	// ErrNilModule is returned when registering a nil module.
	ErrNilModule = errors.New("module is nil")

	// ErrInvalidID is returned for a module id that is empty or malformed.
	ErrInvalidID = errors.New("invalid module id")

	// ErrReservedID is returned for ids the runtime keeps for itself.
	ErrReservedID = errors.New("module id is reserved")

	// ErrNoEntryPoint is returned when a module directory has no main file.
	ErrNoEntryPoint = errors.New("module has no entry point (init.lua)")

	// ErrNilManifest is returned when a nil manifest is provided.
	ErrNilManifest = errors.New("manifest is nil")

	// ErrNoCommands is returned when registering a command without a
	// command registry.
	ErrNoCommands = errors.New("no command registry configured")

	// ErrInvalidManifest is returned when manifest validation fails.
	ErrInvalidManifest = errors.New("invalid module manifest")
)

// LoadError reports a module whose code failed to run. The module holds no
// registrations afterwards.
type LoadError struct {
	Module event.ModuleID
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %s: %v", e.Module, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
