package command

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/host"
	"github.com/dshills/mudscript/internal/session"
)

// Dispatcher turns InputLineSent events that carry a command line into
// command invocations.
type Dispatcher struct {
	registry *Registry
	host     host.Host
	prefix   string
	log      zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPrefix sets the command prefix. An empty prefix keeps the default.
func WithPrefix(prefix string) Option {
	return func(d *Dispatcher) {
		if prefix != "" {
			d.prefix = prefix
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// NewDispatcher creates a dispatcher over registry that reports results
// through h.
func NewDispatcher(registry *Registry, h host.Host, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		host:     h,
		prefix:   DefaultPrefix,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Prefix returns the command prefix.
func (d *Dispatcher) Prefix() string {
	return d.prefix
}

// Registry returns the command registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Attach subscribes the dispatcher to input lines and session closure
// through r.
func (d *Dispatcher) Attach(r event.Registrar) error {
	if _, err := r.On(event.KindInputLineSent).DoFunc(d.handleInput); err != nil {
		return fmt.Errorf("attach command dispatcher: %w", err)
	}
	if _, err := r.On(event.KindSessionClosed).DoFunc(d.handleClosed); err != nil {
		return fmt.Errorf("attach command dispatcher: %w", err)
	}
	return nil
}

func (d *Dispatcher) handleInput(ctx context.Context, ev event.Event) error {
	id, ok := ev.SessionID()
	if !ok {
		return nil
	}
	payload, ok := ev.Payload.(event.InputPayload)
	if !ok {
		return nil
	}
	_, err := d.Dispatch(ctx, id, payload.Line.Sent)
	return err
}

func (d *Dispatcher) handleClosed(ctx context.Context, ev event.Event) error {
	if id, ok := ev.SessionID(); ok {
		d.registry.Drop(id)
	}
	return nil
}

// Dispatch runs the command named by text, if text is a command line. It
// reports whether text was a command line. Unknown commands and handler
// failures are reported to the session as failed command results.
func (d *Dispatcher) Dispatch(ctx context.Context, id session.ID, text string) (bool, error) {
	line, ok := Parse(text, d.prefix)
	if !ok {
		return false, nil
	}

	cmd, ok := d.registry.Lookup(id, line.Name)
	if !ok {
		d.log.Debug().Str("command", line.Name).Uint32("session", uint32(id)).Msg("unknown command")
		msg := fmt.Sprintf("Unknown command %q", line.Name)
		if near, ok := d.registry.Suggest(id, line.Name); ok {
			msg += fmt.Sprintf(", did you mean %s%s?", d.prefix, near)
		}
		return true, d.host.AddOutput(id, session.FailedCommandResult(msg))
	}

	d.log.Debug().
		Str("command", cmd.Name).
		Str("owner", string(cmd.Owner)).
		Uint32("session", uint32(id)).
		Msg("running command")

	if err := cmd.Handler(ctx, id, line.Remainder); err != nil {
		d.log.Warn().Err(err).Str("command", cmd.Name).Msg("command failed")
		return true, d.host.AddOutput(id, session.FailedCommandResult(fmt.Sprintf("%s: %v", cmd.Name, err)))
	}
	return true, nil
}
