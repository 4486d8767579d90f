// Package history implements per-session input history with a scrollback
// cursor, and the module that drives it from session events.
package history

import "github.com/dshills/mudscript/internal/session"

// DefaultCapacity is the number of lines kept when no capacity is given.
const DefaultCapacity = 1000

// Outcome is the result of a forward move.
type Outcome int

const (
	// OutcomeNone means nothing changed; the history was not scrolling.
	OutcomeNone Outcome = iota

	// OutcomeLine means a history line should be displayed.
	OutcomeLine

	// OutcomeRestore means scrolling ended and the captured partial input
	// should be displayed again.
	OutcomeRestore
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeLine:
		return "line"
	case OutcomeRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Step is the result of Next.
type Step struct {
	Outcome Outcome
	Line    session.InputLine
}

// History is a bounded list of sent lines and a cursor over them. The zero
// cursor state is Idle; a backward move enters Scrolling.
//
// History is not safe for concurrent use. It is owned by one session and
// mutated only from the dispatch loop.
type History struct {
	lines    []session.InputLine
	capacity int

	cursor    int
	scrolling bool

	partial    session.InputLine
	hasPartial bool
}

// New creates an empty history. A capacity below one uses DefaultCapacity.
func New(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// Len returns the number of stored lines.
func (h *History) Len() int {
	return len(h.lines)
}

// Capacity returns the maximum number of stored lines.
func (h *History) Capacity() int {
	return h.capacity
}

// Lines returns a copy of the stored lines, oldest first.
func (h *History) Lines() []session.InputLine {
	out := make([]session.InputLine, len(h.lines))
	copy(out, h.lines)
	return out
}

// Cursor returns the cursor position and whether the history is scrolling.
func (h *History) Cursor() (int, bool) {
	return h.cursor, h.scrolling
}

// Scrolling reports whether a scroll is in progress.
func (h *History) Scrolling() bool {
	return h.scrolling
}

// Partial returns the input captured when scrolling began.
func (h *History) Partial() (session.InputLine, bool) {
	return h.partial, h.hasPartial
}

// Reset returns the history to Idle and discards any partial input.
func (h *History) Reset() {
	h.scrolling = false
	h.cursor = 0
	h.partial = session.InputLine{}
	h.hasPartial = false
}

// Append records a sent line. Blank lines are ignored. A line typed by the
// user ends any scroll in progress; a scripted line leaves it alone.
func (h *History) Append(line session.InputLine) bool {
	if line.Blank() {
		return false
	}
	if h.scrolling && !line.Scripted {
		h.Reset()
	}

	h.lines = append(h.lines, line)
	for len(h.lines) > h.capacity {
		h.lines = h.lines[1:]
		if h.scrolling && h.cursor > 0 {
			h.cursor--
		}
	}
	return true
}

// Prev moves backward and returns the first line that is not skipped. When
// leaving Idle, current is kept as the partial input. When no earlier line
// qualifies, ok is false and the cursor stays at the oldest position.
func (h *History) Prev(current session.InputLine, skipScripted bool) (session.InputLine, bool) {
	if len(h.lines) == 0 {
		return session.InputLine{}, false
	}

	if !h.scrolling {
		h.scrolling = true
		h.cursor = len(h.lines)
		h.partial = current
		h.hasPartial = true
	}

	for h.cursor > 0 {
		h.cursor--
		line := h.lines[h.cursor]
		if skip(line, skipScripted) {
			continue
		}
		return line, true
	}
	return session.InputLine{}, false
}

// Next moves forward. It returns OutcomeNone while Idle. When no later line
// qualifies the history returns to Idle and hands back the partial input
// with OutcomeRestore; the partial is discarded.
func (h *History) Next(skipScripted bool) Step {
	if !h.scrolling {
		return Step{Outcome: OutcomeNone}
	}

	for h.cursor < len(h.lines)-1 {
		h.cursor++
		line := h.lines[h.cursor]
		if skip(line, skipScripted) {
			continue
		}
		return Step{Outcome: OutcomeLine, Line: line}
	}

	partial := h.partial
	h.Reset()
	return Step{Outcome: OutcomeRestore, Line: partial}
}

func skip(line session.InputLine, skipScripted bool) bool {
	if line.Scripted && skipScripted {
		return true
	}
	return line.Sent == "" && line.Original == nil
}
