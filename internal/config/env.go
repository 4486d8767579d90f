package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MUDSCRIPT_"

// envSetters maps environment variables, without the prefix, to settings.
var envSetters = map[string]func(c *Config, v string) error{
	"SCRIPTS_DIRS": func(c *Config, v string) error {
		c.Scripts.Dirs = filepath.SplitList(v)
		return nil
	},
	"SCRIPTS_WATCH": func(c *Config, v string) error {
		return setBool(&c.Scripts.Watch, v)
	},
	"SCRIPTS_DEBOUNCE": func(c *Config, v string) error {
		return setDuration(&c.Scripts.Debounce, v)
	},
	"SCRIPTS_TIMEOUT": func(c *Config, v string) error {
		return setDuration(&c.Scripts.Timeout, v)
	},
	"HISTORY_CAPACITY": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.History.Capacity = n
		return nil
	},
	"HISTORY_SKIP_SCRIPTED": func(c *Config, v string) error {
		return setBool(&c.History.SkipScripted, v)
	},
	"COMMANDS_PREFIX": func(c *Config, v string) error {
		c.Commands.Prefix = v
		return nil
	},
	"LOG_LEVEL": func(c *Config, v string) error {
		c.Logging.Level = strings.ToLower(v)
		return nil
	},
	"LOG_FORMAT": func(c *Config, v string) error {
		c.Logging.Format = strings.ToLower(v)
		return nil
	},
	"METRICS_ADDR": func(c *Config, v string) error {
		c.Metrics.Addr = v
		return nil
	},
}

// ApplyEnv overrides settings from MUDSCRIPT_* variables found by lookup and
// validates the result. A nil lookup uses os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for name, set := range envSetters {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		if err := set(c, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
	}
	return c.Validate()
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setDuration(dst *Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = Duration(d)
	return nil
}
