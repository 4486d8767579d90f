// Package config loads the runtime configuration from a TOML, YAML or JSON
// file, with environment overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file format.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor returns the format implied by a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Duration is a time.Duration written as a string such as "200ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the runtime configuration.
type Config struct {
	Scripts  Scripts  `toml:"scripts" yaml:"scripts" json:"scripts"`
	History  History  `toml:"history" yaml:"history" json:"history"`
	Commands Commands `toml:"commands" yaml:"commands" json:"commands"`
	Logging  Logging  `toml:"logging" yaml:"logging" json:"logging"`
	Metrics  Metrics  `toml:"metrics" yaml:"metrics" json:"metrics"`
	MUDs     []MUD    `toml:"muds" yaml:"muds" json:"muds"`
}

// Scripts configures module discovery and reloading.
type Scripts struct {
	// Dirs are searched in order; the first module of a name wins.
	Dirs     []string `toml:"dirs" yaml:"dirs" json:"dirs"`
	Watch    bool     `toml:"watch" yaml:"watch" json:"watch"`
	Debounce Duration `toml:"debounce" yaml:"debounce" json:"debounce"`

	// Timeout bounds each call into a script.
	Timeout  Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
	Disabled []string `toml:"disabled" yaml:"disabled" json:"disabled"`
}

// History configures input history.
type History struct {
	Capacity     int    `toml:"capacity" yaml:"capacity" json:"capacity"`
	SkipScripted bool   `toml:"skip_scripted" yaml:"skip_scripted" json:"skip_scripted"`
	PrevKey      string `toml:"prev_key" yaml:"prev_key" json:"prev_key"`
	NextKey      string `toml:"next_key" yaml:"next_key" json:"next_key"`
}

// Commands configures slash commands.
type Commands struct {
	Prefix string `toml:"prefix" yaml:"prefix" json:"prefix"`
}

// Logging configures the logger.
type Logging struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `toml:"addr" yaml:"addr" json:"addr"`
}

// MUD describes a game server. Extra holds settings scripts and modules
// read by name, such as history_prev.
type MUD struct {
	Name      string            `toml:"name" yaml:"name" json:"name"`
	Host      string            `toml:"host" yaml:"host" json:"host"`
	Port      int               `toml:"port" yaml:"port" json:"port"`
	TLS       bool              `toml:"tls" yaml:"tls" json:"tls"`
	Character string            `toml:"character" yaml:"character" json:"character"`
	Extra     map[string]string `toml:"extra" yaml:"extra" json:"extra"`
}

// Extra setting names understood by the runtime.
const (
	ExtraHistoryPrev = "history_prev"
	ExtraHistoryNext = "history_next"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Scripts: Scripts{
			Dirs:     []string{"scripts"},
			Watch:    true,
			Debounce: Duration(200 * time.Millisecond),
			Timeout:  Duration(5 * time.Second),
		},
		History: History{
			Capacity:     1000,
			SkipScripted: true,
			PrevKey:      "up",
			NextKey:      "down",
		},
		Commands: Commands{Prefix: "/"},
		Logging:  Logging{Level: "info", Format: "console"},
	}
}

// Load reads a configuration file over the defaults and validates it.
func Load(path string) (*Config, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := Parse(format, data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result.
func Parse(format Format, data []byte) (*Config, error) {
	cfg := Default()

	// Unknown keys are rejected in every format.
	var err error
	r := bytes.NewReader(data)
	switch format {
	case FormatTOML:
		err = toml.NewDecoder(r).DisallowUnknownFields().Decode(cfg)
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(cfg)
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{Path: "<" + string(format) + ">", Message: err.Error(), Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MUD returns the named MUD.
func (c *Config) MUD(name string) (MUD, bool) {
	for _, m := range c.MUDs {
		if m.Name == name {
			return m, true
		}
	}
	return MUD{}, false
}

// Extra returns a per-MUD setting.
func (c *Config) Extra(mud, key string) (string, bool) {
	m, ok := c.MUD(mud)
	if !ok {
		return "", false
	}
	v, ok := m.Extra[key]
	return v, ok
}

// HistoryKeys returns the history navigation keys for a MUD, falling back
// to the global keys.
func (c *Config) HistoryKeys(mud string) (prev, next string) {
	prev, next = c.History.PrevKey, c.History.NextKey
	if v, ok := c.Extra(mud, ExtraHistoryPrev); ok {
		prev = v
	}
	if v, ok := c.Extra(mud, ExtraHistoryNext); ok {
		next = v
	}
	return prev, next
}

// ModuleDisabled reports whether a module is switched off.
func (c *Config) ModuleDisabled(name string) bool {
	for _, d := range c.Scripts.Disabled {
		if d == name {
			return true
		}
	}
	return false
}
