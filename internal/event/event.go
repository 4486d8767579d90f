package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/mudscript/internal/session"
)

// Payload is the kind-specific part of an event. Field exposes named values
// for filter matching.
type Payload interface {
	Field(name string) (any, bool)
}

// Event is a single occurrence dispatched through the bus.
type Event struct {
	// Kind selects the subscription list the event is delivered to.
	Kind Kind

	// Session is the session the event pertains to, or nil for
	// process-wide events.
	Session *session.ID

	// Payload carries kind-specific data. It may be nil.
	Payload Payload

	// Time is when the event was created.
	Time time.Time
}

// New creates a process-wide event.
func New(kind Kind, payload Payload) Event {
	return Event{
		Kind:    kind,
		Payload: payload,
		Time:    time.Now(),
	}
}

// ForSession creates an event that pertains to a session.
func ForSession(kind Kind, id session.ID, payload Payload) Event {
	ev := New(kind, payload)
	ev.Session = &id
	return ev
}

// SessionID returns the session the event pertains to.
func (e Event) SessionID() (session.ID, bool) {
	if e.Session == nil {
		return 0, false
	}
	return *e.Session, true
}

// Field returns a named value of the event. "kind" and "session" are
// available on every event; other names are resolved by the payload.
func (e Event) Field(name string) (any, bool) {
	switch name {
	case "kind":
		return string(e.Kind), true
	case "session":
		if e.Session == nil {
			return nil, false
		}
		return *e.Session, true
	}
	if e.Payload == nil {
		return nil, false
	}
	return e.Payload.Field(name)
}

// String returns a short description for logging.
func (e Event) String() string {
	if e.Session != nil {
		return fmt.Sprintf("%s(session=%d)", e.Kind, *e.Session)
	}
	return string(e.Kind)
}

// SessionPayload accompanies NewSession, ResumeSession and SessionClosed.
type SessionPayload struct {
	Info session.Info

	// Module limits a ResumeSession to the setup hooks of one module.
	// Empty means every module.
	Module ModuleID
}

// Field implements Payload.
func (p SessionPayload) Field(name string) (any, bool) {
	switch name {
	case "mud":
		return p.Info.MUD, true
	case "character":
		return p.Info.Character, true
	case "module":
		return string(p.Module), true
	}
	return nil, false
}

// ConnectionPayload accompanies ConnectionStatus events.
type ConnectionPayload struct {
	Status session.Status
	Info   session.Info
}

// Field implements Payload.
func (p ConnectionPayload) Field(name string) (any, bool) {
	switch name {
	case "status":
		return string(p.Status), true
	case "mud":
		return p.Info.MUD, true
	}
	return nil, false
}

// LinePayload accompanies LineReceived events.
type LinePayload struct {
	Text   string
	Prompt bool
	Gag    bool
}

// Field implements Payload.
func (p LinePayload) Field(name string) (any, bool) {
	switch name {
	case "text":
		return p.Text, true
	case "prompt":
		return p.Prompt, true
	case "gag":
		return p.Gag, true
	}
	return nil, false
}

// PromptPayload accompanies PromptChanged events.
type PromptPayload struct {
	From string
	To   string
}

// Field implements Payload.
func (p PromptPayload) Field(name string) (any, bool) {
	switch name {
	case "from":
		return p.From, true
	case "to":
		return p.To, true
	}
	return nil, false
}

// InputPayload accompanies InputLineSent events.
type InputPayload struct {
	Line session.InputLine
}

// Field implements Payload.
func (p InputPayload) Field(name string) (any, bool) {
	switch name {
	case "sent":
		return p.Line.Sent, true
	case "original":
		if p.Line.Original == nil {
			return nil, false
		}
		return *p.Line.Original, true
	case "scripted":
		return p.Line.Scripted, true
	case "echo_suppressed":
		return p.Line.EchoSuppressed, true
	}
	return nil, false
}

// KeyPayload accompanies KeyPressed events. Code is a normalised key name
// such as "up", "f5" or "ctrl+p".
type KeyPayload struct {
	Code string
}

// Field implements Payload.
func (p KeyPayload) Field(name string) (any, bool) {
	if name == "code" {
		return p.Code, true
	}
	return nil, false
}

// ShortcutPayload accompanies ShortcutInvoked events.
type ShortcutPayload struct {
	Name string
}

// Field implements Payload.
func (p ShortcutPayload) Field(name string) (any, bool) {
	if name == "name" {
		return p.Name, true
	}
	return nil, false
}

// OptionPayload accompanies OptionNegotiated events.
type OptionPayload struct {
	Option  uint8
	Enabled bool
}

// Field implements Payload.
func (p OptionPayload) Field(name string) (any, bool) {
	switch name {
	case "option":
		return p.Option, true
	case "enabled":
		return p.Enabled, true
	}
	return nil, false
}

// GMCPPayload accompanies GMCPMessage events. Values inside the JSON body are
// reachable as fields named "json.<path>" using gjson path syntax.
type GMCPPayload struct {
	Package string
	JSON    string
}

// Field implements Payload.
func (p GMCPPayload) Field(name string) (any, bool) {
	switch name {
	case "package":
		return p.Package, true
	case "json":
		return p.JSON, true
	}
	if path, ok := strings.CutPrefix(name, "json."); ok {
		res := gjson.Get(p.JSON, path)
		if !res.Exists() {
			return nil, false
		}
		return res.Value(), true
	}
	return nil, false
}

// Value parses the JSON body.
func (p GMCPPayload) Value() gjson.Result {
	return gjson.Parse(p.JSON)
}

// CustomPayload accompanies Custom events published by scripts. Entries of
// Data are reachable as fields named "data.<key>".
type CustomPayload struct {
	Type string
	Data map[string]any
}

// Field implements Payload.
func (p CustomPayload) Field(name string) (any, bool) {
	if name == "type" {
		return p.Type, true
	}
	if key, ok := strings.CutPrefix(name, "data."); ok {
		v, ok := p.Data[key]
		return v, ok
	}
	return nil, false
}

// ReloadPayload accompanies ModulesReloaded events.
type ReloadPayload struct {
	Modules []ModuleID
	Failed  []ModuleID
}

// Field implements Payload.
func (p ReloadPayload) Field(name string) (any, bool) {
	return nil, false
}
