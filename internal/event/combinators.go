package event

import (
	"strings"

	"github.com/dshills/mudscript/internal/session"
)

// SessionLookup resolves session details for predicates such as ForMUD.
type SessionLookup interface {
	SessionInfo(id session.ID) (session.Info, bool)
}

// Connected narrows s to successful connections.
func Connected(s Spec) Spec {
	return s.Where("status", string(session.StatusConnected))
}

// Disconnected narrows s to lost connections.
func Disconnected(s Spec) Spec {
	return s.Where("status", string(session.StatusDisconnected))
}

// ForMUD returns a predicate that holds for events of sessions connected to
// the named MUD. Names compare case-insensitively.
func ForMUD(lookup SessionLookup, mud string) Predicate {
	return func(ev Event) bool {
		id, ok := ev.SessionID()
		if !ok {
			return false
		}
		info, ok := lookup.SessionInfo(id)
		return ok && strings.EqualFold(info.MUD, mud)
	}
}

// OnConnected runs h when a session finishes connecting.
func OnConnected(r Registrar, h HandlerFunc) ([]Handle, error) {
	return Connected(r.On(KindConnectionStatus)).Do(h)
}

// OnDisconnected runs h when a session loses its connection.
func OnDisconnected(r Registrar, h HandlerFunc) ([]Handle, error) {
	return Disconnected(r.On(KindConnectionStatus)).Do(h)
}

// ResumedFor returns a predicate that holds for every event except a
// ResumeSession aimed at a module other than owner.
func ResumedFor(owner ModuleID) Predicate {
	return func(ev Event) bool {
		if ev.Kind != KindResumeSession {
			return true
		}
		p, ok := ev.Payload.(SessionPayload)
		return !ok || p.Module == "" || p.Module == owner
	}
}

// OnNewSessionOrResume runs h for new sessions and for sessions resumed
// after a reload of the registrar's module, or of every module.
func OnNewSessionOrResume(r Registrar, h HandlerFunc) ([]Handle, error) {
	return r.On(KindNewSession, KindResumeSession).When(ResumedFor(r.Owner())).Do(h)
}

// OnGMCP runs h for GMCP messages of the given package.
func OnGMCP(r Registrar, pkg string, h HandlerFunc) ([]Handle, error) {
	return r.On(KindGMCPMessage).Where("package", pkg).Do(h)
}

// OnCustom runs h for custom events of the given type.
func OnCustom(r Registrar, typ string, h HandlerFunc) ([]Handle, error) {
	return r.On(KindCustom).Where("type", typ).Do(h)
}

// OnMUD runs h for events of kind that belong to sessions of the named MUD.
func OnMUD(r Registrar, lookup SessionLookup, mud string, kind Kind, h HandlerFunc) ([]Handle, error) {
	return r.On(kind).When(ForMUD(lookup, mud)).Do(h)
}

// OnMUDConnected runs h when a session of the named MUD finishes connecting.
func OnMUDConnected(r Registrar, lookup SessionLookup, mud string, h HandlerFunc) ([]Handle, error) {
	return Connected(r.On(KindConnectionStatus)).When(ForMUD(lookup, mud)).Do(h)
}
