package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/mudscript/internal/command"
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/host"
	"github.com/dshills/mudscript/internal/input/key"
	"github.com/dshills/mudscript/internal/plugin"
	"github.com/dshills/mudscript/internal/session"
)

// ModuleID is the id the history module registers under.
const ModuleID event.ModuleID = "history"

// Shortcut names that navigate the history.
const (
	ShortcutPrev = "history_prev"
	ShortcutNext = "history_next"
)

// Keys names the keys that navigate the history.
type Keys struct {
	Prev string
	Next string
}

// DefaultKeys are used when no per-MUD override is configured.
var DefaultKeys = Keys{Prev: "up", Next: "down"}

// KeyResolver returns the history keys for a MUD.
type KeyResolver func(mud string) Keys

// Option configures a Module.
type Option func(*Module)

// WithCapacity sets the number of lines kept per session.
func WithCapacity(n int) Option {
	return func(m *Module) {
		m.capacity = n
	}
}

// WithSkipScripted makes navigation skip lines sent by scripts.
func WithSkipScripted(skip bool) Option {
	return func(m *Module) {
		m.skipScripted = skip
	}
}

// WithKeys sets the per-MUD key resolver.
func WithKeys(r KeyResolver) Option {
	return func(m *Module) {
		if r != nil {
			m.keys = r
		}
	}
}

// Module keeps one history per session and drives it from session events.
// Histories survive a reload of the module; they are dropped when the
// session closes.
type Module struct {
	host         host.Host
	capacity     int
	skipScripted bool
	keys         KeyResolver

	mu       sync.Mutex
	sessions map[session.ID]*sessionHistory
}

type sessionHistory struct {
	nav  *Navigator
	prev key.Code
	next key.Code
}

// NewModule creates the history module.
func NewModule(h host.Host, opts ...Option) *Module {
	m := &Module{
		host:     h,
		capacity: DefaultCapacity,
		keys:     func(string) Keys { return DefaultKeys },
		sessions: make(map[session.ID]*sessionHistory),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID implements plugin.Module.
func (m *Module) ID() event.ModuleID {
	return ModuleID
}

// Load implements plugin.Module.
func (m *Module) Load(ctx context.Context, env *plugin.Env) error {
	r := env.Registrar()

	env.OnSetup(func(ctx context.Context, info session.Info) error {
		if err := m.Setup(info); err != nil {
			return err
		}
		return env.RegisterCommand(info.ID, command.Command{
			Name:        "history",
			Description: "Show recent input",
			Handler:     m.showCommand,
		})
	})

	subs := []struct {
		kind event.Kind
		fn   event.HandlerFunc
	}{
		{event.KindInputLineSent, m.onInput},
		{event.KindKeyPressed, m.onKey},
		{event.KindShortcutInvoked, m.onShortcut},
		{event.KindSessionClosed, m.onClosed},
	}
	for _, s := range subs {
		if _, err := r.SubscribeFunc(s.kind, nil, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// Close implements plugin.Module. Histories are kept.
func (m *Module) Close() error {
	return nil
}

// Setup prepares a session's history and resolves its keys. An existing
// history is kept.
func (m *Module) Setup(info session.Info) error {
	keys := m.keys(info.MUD)
	prev, err := key.Parse(keys.Prev)
	if err != nil {
		return fmt.Errorf("history prev key for %s: %w", info.MUD, err)
	}
	next, err := key.Parse(keys.Next)
	if err != nil {
		return fmt.Errorf("history next key for %s: %w", info.MUD, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[info.ID]
	if !ok {
		s = &sessionHistory{nav: NewNavigator(m.host, info.ID, New(m.capacity), m.skipScripted)}
		m.sessions[info.ID] = s
	}
	s.prev, s.next = prev, next
	return nil
}

// History returns a session's history.
func (m *Module) History(id session.ID) (*History, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return s.nav.History(), true
}

// Navigate moves a session's history.
func (m *Module) Navigate(id session.ID, dir Direction) (bool, error) {
	s := m.session(id)
	if s == nil {
		return false, nil
	}
	return s.nav.Navigate(dir)
}

func (m *Module) session(id session.ID) *sessionHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *Module) onInput(ctx context.Context, ev event.Event) error {
	id, ok := ev.SessionID()
	p, isInput := ev.Payload.(event.InputPayload)
	if !ok || !isInput {
		return nil
	}
	if s := m.session(id); s != nil {
		s.nav.History().Append(p.Line)
	}
	return nil
}

func (m *Module) onKey(ctx context.Context, ev event.Event) error {
	id, ok := ev.SessionID()
	p, isKey := ev.Payload.(event.KeyPayload)
	if !ok || !isKey {
		return nil
	}
	s := m.session(id)
	if s == nil {
		return nil
	}
	code, err := key.Parse(p.Code)
	if err != nil {
		return nil
	}

	switch code {
	case s.prev:
		_, err = s.nav.Navigate(Previous)
	case s.next:
		_, err = s.nav.Navigate(Following)
	}
	return err
}

func (m *Module) onShortcut(ctx context.Context, ev event.Event) error {
	id, ok := ev.SessionID()
	p, isShortcut := ev.Payload.(event.ShortcutPayload)
	if !ok || !isShortcut {
		return nil
	}

	var err error
	switch p.Name {
	case ShortcutPrev:
		_, err = m.Navigate(id, Previous)
	case ShortcutNext:
		_, err = m.Navigate(id, Following)
	}
	return err
}

func (m *Module) onClosed(ctx context.Context, ev event.Event) error {
	if id, ok := ev.SessionID(); ok {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
	}
	return nil
}

// showCommand lists the most recent lines, newest last. An integer argument
// limits the count.
func (m *Module) showCommand(ctx context.Context, id session.ID, args string) error {
	s := m.session(id)
	if s == nil {
		return m.host.AddOutput(id, session.FailedCommandResult("No history for this session"))
	}

	lines := s.nav.History().Lines()
	limit := 20
	if args = strings.TrimSpace(args); args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			return m.host.AddOutput(id, session.FailedCommandResult(fmt.Sprintf("Invalid count %q", args)))
		}
		limit = n
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		text := line.String()
		if line.EchoSuppressed {
			text = "(hidden)"
		}
		fmt.Fprintf(&b, "%4d  %s", i+1, text)
	}
	if b.Len() == 0 {
		b.WriteString("History is empty")
	}
	return m.host.AddOutput(id, session.CommandResult(b.String()))
}
