package app

import (
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/host"
	"github.com/dshills/mudscript/internal/plugin/watcher"
	"github.com/dshills/mudscript/internal/session"
)

// scriptHost is the host as modules see it. Lines a module sends are
// announced as scripted InputLineSent events, queued behind the current
// dispatch.
type scriptHost struct {
	host.Host
	emit func(event.Event)
}

// SendLine sends text and queues the matching InputLineSent event.
func (h *scriptHost) SendLine(id session.ID, text string) error {
	if err := h.Host.SendLine(id, text); err != nil {
		return err
	}
	line := session.InputLine{Sent: text, Scripted: true}
	h.emit(event.ForSession(event.KindInputLineSent, id, event.InputPayload{Line: line}))
	return nil
}

// ModuleFor implements watcher.Resolver over the loaded script modules.
func (r *Runtime) ModuleFor(path string) (event.ModuleID, bool) {
	r.scriptsMu.RLock()
	defer r.scriptsMu.RUnlock()

	for id, mod := range r.scripts {
		if mod.Manifest().Owns(path) {
			return id, true
		}
	}
	return "", false
}

var _ watcher.Resolver = (*Runtime)(nil)
