package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dshills/mudscript/internal/input/key"
)

// Log formats.
const (
	LogConsole = "console"
	LogJSON    = "json"
)

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Scripts.Dirs) == 0 {
		add("scripts.dirs must not be empty")
	}
	if c.Scripts.Debounce < 0 {
		add("scripts.debounce must not be negative")
	}
	if c.Scripts.Timeout < 0 {
		add("scripts.timeout must not be negative")
	}

	if c.History.Capacity < 1 {
		add("history.capacity must be at least 1, got %d", c.History.Capacity)
	}
	checkKey := func(name, spec string) {
		if _, err := key.Parse(spec); err != nil {
			add("%s: %v", name, err)
		}
	}
	checkKey("history.prev_key", c.History.PrevKey)
	checkKey("history.next_key", c.History.NextKey)

	if c.Commands.Prefix == "" {
		add("commands.prefix must not be empty")
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level: %v", err)
	}
	if c.Logging.Format != LogConsole && c.Logging.Format != LogJSON {
		add("logging.format must be %q or %q, got %q", LogConsole, LogJSON, c.Logging.Format)
	}

	seen := make(map[string]bool)
	for i, m := range c.MUDs {
		if m.Name == "" {
			add("muds[%d].name is required", i)
			continue
		}
		if seen[m.Name] {
			add("muds[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if m.Port < 0 || m.Port > 65535 {
			add("muds[%d].port out of range: %d", i, m.Port)
		}
		if v, ok := m.Extra[ExtraHistoryPrev]; ok {
			checkKey(fmt.Sprintf("muds[%d].extra.%s", i, ExtraHistoryPrev), v)
		}
		if v, ok := m.Extra[ExtraHistoryNext]; ok {
			checkKey(fmt.Sprintf("muds[%d].extra.%s", i, ExtraHistoryNext), v)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
