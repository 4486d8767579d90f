// Package host defines the session-engine operations the scripting runtime
// depends on, and a headless in-memory implementation.
package host

import (
	"errors"

	"github.com/dshills/mudscript/internal/session"
)

// ErrUnknownSession is returned for operations on a session the host does
// not know.
var ErrUnknownSession = errors.New("unknown session")

// Host is the session engine as seen by the scripting runtime.
type Host interface {
	// SessionInfo returns details for a live session.
	SessionInfo(id session.ID) (session.Info, bool)

	// Sessions returns the ids of all live sessions in creation order.
	Sessions() []session.ID

	// SendLine sends text to the MUD of a session.
	SendLine(id session.ID, text string) error

	// SetInputValue replaces the contents of a session's input area.
	SetInputValue(id session.ID, line session.InputLine) error

	// ClearInput empties a session's input area.
	ClearInput(id session.ID) error

	// IsPasswordMode reports whether the input area is masking its contents.
	IsPasswordMode(id session.ID) bool

	// CurrentInputValue returns the uncommitted contents of the input area.
	CurrentInputValue(id session.ID) session.InputLine

	// AddOutput appends an item to a session's output buffer.
	AddOutput(id session.ID, out session.Output) error
}
