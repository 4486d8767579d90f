// Package session defines the identifiers and value types shared by the
// scripting runtime and the host session engine.
package session

import (
	"strconv"
	"strings"
)

// ID identifies a MUD session. IDs are assigned by the host and never reused
// while the process is running.
type ID uint32

// String returns the decimal form of the id.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Status is the connection status of a session.
type Status string

// Connection statuses reported by the host.
const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Info describes a session as known to the host.
type Info struct {
	ID        ID
	MUD       string
	Character string
	Host      string
	Port      int
	TLS       bool
}

// InputLine is a line of input submitted to a session. Values are treated as
// immutable once they have been appended to a history.
type InputLine struct {
	// Sent is the text that was sent to the MUD after any expansion.
	Sent string

	// Original is the pre-expansion text, when it differs from Sent.
	Original *string

	// Scripted is true when the line was produced by automation.
	Scripted bool

	// EchoSuppressed is true when the line was entered with echo disabled.
	EchoSuppressed bool
}

// NewInputLine returns a plain, user-typed line.
func NewInputLine(sent string) InputLine {
	return InputLine{Sent: sent}
}

// WithOriginal returns a copy of the line carrying the pre-expansion text.
func (l InputLine) WithOriginal(original string) InputLine {
	l.Original = &original
	return l
}

// HasOriginal reports whether the line carries a non-nil original form.
func (l InputLine) HasOriginal() bool {
	return l.Original != nil
}

// Blank reports whether both the sent and the original text are blank.
func (l InputLine) Blank() bool {
	if strings.TrimSpace(l.Sent) != "" {
		return false
	}
	return l.Original == nil || strings.TrimSpace(*l.Original) == ""
}

// ForDisplay returns the line as it should be shown in the input area. When an
// original form exists the line is reframed as a fresh, unexpanded entry so the
// user sees what they typed rather than what was sent.
func (l InputLine) ForDisplay() InputLine {
	if l.Original == nil {
		return l
	}
	return InputLine{
		Sent:           *l.Original,
		EchoSuppressed: l.EchoSuppressed,
	}
}

// String returns the text a user would recognise for the line.
func (l InputLine) String() string {
	if l.Original != nil {
		return *l.Original
	}
	return l.Sent
}

// OutputKind classifies text added to a session's output buffer.
type OutputKind int

// Output kinds understood by the host.
const (
	OutputText OutputKind = iota
	OutputCommandResult
	OutputFailedCommandResult
	OutputDebug
)

// String returns a short name for the kind.
func (k OutputKind) String() string {
	switch k {
	case OutputText:
		return "text"
	case OutputCommandResult:
		return "command"
	case OutputFailedCommandResult:
		return "failed"
	case OutputDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Output is a single item for a session's output buffer.
type Output struct {
	Kind OutputKind
	Text string
}

// CommandResult builds a successful command result output.
func CommandResult(text string) Output {
	return Output{Kind: OutputCommandResult, Text: text}
}

// FailedCommandResult builds a failed command result output.
func FailedCommandResult(text string) Output {
	return Output{Kind: OutputFailedCommandResult, Text: text}
}
