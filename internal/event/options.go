package event

import (
	"time"

	"github.com/rs/zerolog"
)

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	// logger receives handler failures.
	logger zerolog.Logger

	// handlerTimeout bounds the context handed to each handler. Zero means
	// no deadline.
	handlerTimeout time.Duration

	// registry is shared with the bus. A fresh one is created when nil.
	registry *Registry
}

func defaultBusConfig() busConfig {
	return busConfig{
		logger: zerolog.Nop(),
	}
}

// WithLogger sets the logger for handler failures.
func WithLogger(l zerolog.Logger) BusOption {
	return func(c *busConfig) {
		c.logger = l
	}
}

// WithHandlerTimeout sets the deadline applied to each handler's context.
func WithHandlerTimeout(d time.Duration) BusOption {
	return func(c *busConfig) {
		if d >= 0 {
			c.handlerTimeout = d
		}
	}
}

// WithRegistry makes the bus use an existing registry.
func WithRegistry(r *Registry) BusOption {
	return func(c *busConfig) {
		if r != nil {
			c.registry = r
		}
	}
}
