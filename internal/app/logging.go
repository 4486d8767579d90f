package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/mudscript/internal/config"
)

// NewLogger builds the runtime logger from the logging settings. A nil w
// writes to stderr. An empty level means info.
func NewLogger(cfg config.Logging, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	switch cfg.Format {
	case "", config.LogConsole:
		_, isFile := w.(*os.File)
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.TimeOnly,
			NoColor:    !isFile,
		}
	case config.LogJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: want %s or %s", cfg.Format, config.LogConsole, config.LogJSON)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
