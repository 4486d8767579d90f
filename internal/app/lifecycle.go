package app

import (
	"context"
	"fmt"

	"github.com/dshills/mudscript/internal/command"
	"github.com/dshills/mudscript/internal/config"
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/history"
	"github.com/dshills/mudscript/internal/input/key"
	"github.com/dshills/mudscript/internal/session"
)

// The methods below are what a session engine calls into. Each one queues
// its work, so they are safe from any goroutine and keep their relative
// order.

// OpenSession creates a session on the host and announces it. The returned
// info carries the id the host assigned.
func (r *Runtime) OpenSession(info session.Info) session.Info {
	info = r.base.Open(info)
	r.Emit(event.ForSession(event.KindNewSession, info.ID, event.SessionPayload{Info: info}))
	return info
}

// CloseSession announces the end of a session, then removes it from the
// host.
func (r *Runtime) CloseSession(id session.ID) error {
	info, err := r.sessionInfo(id)
	if err != nil {
		return err
	}
	r.enqueue(func(ctx context.Context) {
		r.publish(ctx, event.ForSession(event.KindSessionClosed, id, event.SessionPayload{Info: info}))
		r.base.Close(id)
	})
	return nil
}

// SetStatus records a connection status change and announces it.
func (r *Runtime) SetStatus(id session.ID, status session.Status) error {
	if err := r.base.SetStatus(id, status); err != nil {
		return err
	}
	info, err := r.sessionInfo(id)
	if err != nil {
		return err
	}
	r.Emit(event.ForSession(event.KindConnectionStatus, id, event.ConnectionPayload{Status: status, Info: info}))
	return nil
}

// Submit handles a line the user entered. Command lines stay local; other
// lines are sent to the MUD. Either way the input area is cleared and
// InputLineSent is published.
func (r *Runtime) Submit(id session.ID, line session.InputLine) error {
	if _, err := r.sessionInfo(id); err != nil {
		return err
	}
	r.enqueue(func(ctx context.Context) {
		if r.base.IsPasswordMode(id) {
			line.EchoSuppressed = true
		}
		if _, isCommand := command.Parse(line.Sent, r.dispatcher.Prefix()); !isCommand {
			if err := r.base.SendLine(id, line.Sent); err != nil {
				r.log.Warn().Err(err).Uint32("session", uint32(id)).Msg("send line")
				return
			}
		}
		if err := r.base.ClearInput(id); err != nil {
			r.log.Debug().Err(err).Uint32("session", uint32(id)).Msg("clear input")
		}
		r.publish(ctx, event.ForSession(event.KindInputLineSent, id, event.InputPayload{Line: line}))
	})
	return nil
}

// SubmitInput submits the current contents of the input area.
func (r *Runtime) SubmitInput(id session.ID) error {
	return r.Submit(id, r.base.CurrentInputValue(id))
}

// PressKey announces a key press in the input area. spec is a key name
// such as "up" or "ctrl+p"; it is normalised before publishing.
func (r *Runtime) PressKey(id session.ID, spec string) error {
	code, err := key.Parse(spec)
	if err != nil {
		return err
	}
	if _, err := r.sessionInfo(id); err != nil {
		return err
	}
	r.Emit(event.ForSession(event.KindKeyPressed, id, event.KeyPayload{Code: code.String()}))
	return nil
}

// InvokeShortcut announces a bound shortcut, such as history navigation.
func (r *Runtime) InvokeShortcut(id session.ID, name string) error {
	if _, err := r.sessionInfo(id); err != nil {
		return err
	}
	r.Emit(event.ForSession(event.KindShortcutInvoked, id, event.ShortcutPayload{Name: name}))
	return nil
}

// ReceiveLine announces a line received from the MUD.
func (r *Runtime) ReceiveLine(id session.ID, line event.LinePayload) error {
	if _, err := r.sessionInfo(id); err != nil {
		return err
	}
	if !line.Gag {
		if err := r.base.AddOutput(id, session.Output{Kind: session.OutputText, Text: line.Text}); err != nil {
			return err
		}
	}
	r.Emit(event.ForSession(event.KindLineReceived, id, line))
	return nil
}

// ReceiveGMCP announces a GMCP message. body is the raw JSON.
func (r *Runtime) ReceiveGMCP(id session.ID, pkg, body string) error {
	if _, err := r.sessionInfo(id); err != nil {
		return err
	}
	r.Emit(event.ForSession(event.KindGMCPMessage, id, event.GMCPPayload{Package: pkg, JSON: body}))
	return nil
}

// ApplyConfig swaps in a new configuration and publishes ConfigReloaded.
// History keys are re-resolved for every live session. The command prefix
// and the script directories keep the values the runtime was built with.
func (r *Runtime) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("apply config: %w", config.ErrValidationFailed)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.enqueue(func(ctx context.Context) {
		r.cfg.Store(cfg)
		r.publish(ctx, event.New(event.KindConfigReloaded, nil))
		for _, id := range r.base.Sessions() {
			if info, ok := r.base.SessionInfo(id); ok {
				r.publish(ctx, event.ForSession(event.KindResumeSession, id, event.SessionPayload{Info: info, Module: history.ModuleID}))
			}
		}
	})
	return nil
}

func (r *Runtime) sessionInfo(id session.ID) (session.Info, error) {
	info, ok := r.base.SessionInfo(id)
	if !ok {
		return session.Info{}, fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	return info, nil
}
