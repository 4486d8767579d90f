package history

import (
	"fmt"

	"github.com/dshills/mudscript/internal/host"
	"github.com/dshills/mudscript/internal/session"
)

// Direction is a navigation request.
type Direction int

const (
	// Previous moves toward older lines.
	Previous Direction = iota

	// Following moves toward newer lines.
	Following
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Previous {
		return "prev"
	}
	return "next"
}

// Navigator applies history moves to a session's input area.
type Navigator struct {
	host         host.Host
	id           session.ID
	history      *History
	skipScripted bool
}

// NewNavigator creates a navigator for one session.
func NewNavigator(h host.Host, id session.ID, history *History, skipScripted bool) *Navigator {
	return &Navigator{
		host:         h,
		id:           id,
		history:      history,
		skipScripted: skipScripted,
	}
}

// History returns the navigated history.
func (n *Navigator) History() *History {
	return n.history
}

// Navigate moves in dir and updates the input area. It does nothing while
// the input area is masked, so the history and its partial input are left
// untouched. It reports whether the input area changed.
func (n *Navigator) Navigate(dir Direction) (bool, error) {
	if n.host.IsPasswordMode(n.id) {
		return false, nil
	}

	switch dir {
	case Previous:
		line, ok := n.history.Prev(n.host.CurrentInputValue(n.id), n.skipScripted)
		if !ok {
			return false, nil
		}
		return true, n.show(line.ForDisplay())

	case Following:
		step := n.history.Next(n.skipScripted)
		switch step.Outcome {
		case OutcomeLine:
			return true, n.show(step.Line.ForDisplay())
		case OutcomeRestore:
			if step.Line.Blank() {
				return true, n.host.ClearInput(n.id)
			}
			return true, n.show(step.Line)
		}
		return false, nil
	}

	return false, fmt.Errorf("unknown direction %d", dir)
}

func (n *Navigator) show(line session.InputLine) error {
	if err := n.host.SetInputValue(n.id, line); err != nil {
		return fmt.Errorf("set input for session %d: %w", n.id, err)
	}
	return nil
}
