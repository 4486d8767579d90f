package host

import (
	"fmt"
	"sync"

	"github.com/dshills/mudscript/internal/session"
)

// Memory is a Host that keeps all session state in memory. The CLI uses it
// as a headless host and tests use it to observe effects.
type Memory struct {
	mu       sync.Mutex
	nextID   session.ID
	order    []session.ID
	sessions map[session.ID]*memSession

	// OnSend, when set, is called for every line sent to a MUD.
	OnSend func(id session.ID, text string)

	// OnOutput, when set, is called for every output item.
	OnOutput func(id session.ID, out session.Output)
}

type memSession struct {
	info     session.Info
	status   session.Status
	input    session.InputLine
	password bool
	sent     []string
	output   []session.Output
}

// NewMemory creates an empty in-memory host.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[session.ID]*memSession),
	}
}

// Open creates a session. The id field of info is assigned by the host.
func (m *Memory) Open(info session.Info) session.Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	info.ID = m.nextID
	m.sessions[info.ID] = &memSession{info: info, status: session.StatusDisconnected}
	m.order = append(m.order, info.ID)
	return info
}

// Close forgets a session.
func (m *Memory) Close(id session.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// SetStatus records the connection status of a session.
func (m *Memory) SetStatus(id session.ID, status session.Status) error {
	return m.with(id, func(s *memSession) error {
		s.status = status
		return nil
	})
}

// Status returns the connection status of a session.
func (m *Memory) Status(id session.ID) session.Status {
	var status session.Status
	_ = m.with(id, func(s *memSession) error {
		status = s.status
		return nil
	})
	return status
}

// SetPasswordMode toggles masked input for a session.
func (m *Memory) SetPasswordMode(id session.ID, on bool) error {
	return m.with(id, func(s *memSession) error {
		s.password = on
		return nil
	})
}

// SessionInfo implements Host.
func (m *Memory) SessionInfo(id session.ID) (session.Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return session.Info{}, false
	}
	return s.info, true
}

// Sessions implements Host.
func (m *Memory) Sessions() []session.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]session.ID, len(m.order))
	copy(out, m.order)
	return out
}

// SendLine implements Host.
func (m *Memory) SendLine(id session.ID, text string) error {
	err := m.with(id, func(s *memSession) error {
		s.sent = append(s.sent, text)
		return nil
	})
	if err == nil && m.OnSend != nil {
		m.OnSend(id, text)
	}
	return err
}

// SetInputValue implements Host.
func (m *Memory) SetInputValue(id session.ID, line session.InputLine) error {
	return m.with(id, func(s *memSession) error {
		s.input = line
		return nil
	})
}

// ClearInput implements Host.
func (m *Memory) ClearInput(id session.ID) error {
	return m.with(id, func(s *memSession) error {
		s.input = session.InputLine{}
		return nil
	})
}

// IsPasswordMode implements Host.
func (m *Memory) IsPasswordMode(id session.ID) bool {
	var on bool
	_ = m.with(id, func(s *memSession) error {
		on = s.password
		return nil
	})
	return on
}

// CurrentInputValue implements Host.
func (m *Memory) CurrentInputValue(id session.ID) session.InputLine {
	var line session.InputLine
	_ = m.with(id, func(s *memSession) error {
		line = s.input
		return nil
	})
	return line
}

// AddOutput implements Host.
func (m *Memory) AddOutput(id session.ID, out session.Output) error {
	err := m.with(id, func(s *memSession) error {
		s.output = append(s.output, out)
		return nil
	})
	if err == nil && m.OnOutput != nil {
		m.OnOutput(id, out)
	}
	return err
}

// Sent returns the lines sent to a session's MUD.
func (m *Memory) Sent(id session.ID) []string {
	var out []string
	_ = m.with(id, func(s *memSession) error {
		out = append(out, s.sent...)
		return nil
	})
	return out
}

// Output returns a session's output buffer.
func (m *Memory) Output(id session.ID) []session.Output {
	var out []session.Output
	_ = m.with(id, func(s *memSession) error {
		out = append(out, s.output...)
		return nil
	})
	return out
}

func (m *Memory) with(id session.ID, fn func(*memSession) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %d: %w", id, ErrUnknownSession)
	}
	return fn(s)
}

var _ Host = (*Memory)(nil)
