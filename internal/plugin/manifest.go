package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/mudscript/internal/event"
	plua "github.com/dshills/mudscript/internal/plugin/lua"
)

// ManifestFile is the name of a module directory's manifest.
const ManifestFile = "module.yaml"

// DefaultMain is the entry point of a directory module without a manifest.
const DefaultMain = "init.lua"

// Manifest describes a script module.
type Manifest struct {
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Description  string            `yaml:"description"`
	Author       string            `yaml:"author"`
	Main         string            `yaml:"main"`
	Disabled     bool              `yaml:"disabled"`
	Timeout      time.Duration     `yaml:"timeout"`
	Capabilities []plua.Capability `yaml:"capabilities"`

	// path is the module directory.
	path string

	// single is true for a bare name.lua module.
	single bool
}

// Validation errors.
var (
	ErrMissingName       = errors.New("manifest: name is required")
	ErrInvalidName       = errors.New("manifest: name must be lower-case alphanumeric with hyphens or underscores")
	ErrInvalidVersion    = errors.New("manifest: version must be valid semver")
	ErrInvalidMain       = errors.New("manifest: main must be a .lua file inside the module")
	ErrInvalidCapability = errors.New("manifest: invalid capability")
	ErrInvalidTimeout    = errors.New("manifest: timeout must not be negative")
)

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest loads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	m.path = filepath.Dir(path)
	if m.Name == "" {
		m.Name = filepath.Base(m.path)
	}
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestFromDir loads module.yaml from a module directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFile))
}

// NewManifestMinimal creates a manifest for a module without one. main is
// relative to dir.
func NewManifestMinimal(name, dir, main string) *Manifest {
	m := &Manifest{
		Name: name,
		Main: main,
		path: dir,
	}
	m.applyDefaults()
	return m
}

// newSingleFileManifest creates the manifest of a bare name.lua module.
func newSingleFileManifest(luaPath string) *Manifest {
	name := strings.TrimSuffix(filepath.Base(luaPath), ".lua")
	m := NewManifestMinimal(name, filepath.Dir(luaPath), filepath.Base(luaPath))
	m.single = true
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = DefaultMain
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m == nil {
		return ErrNilManifest
	}
	if m.Name == "" {
		return ErrMissingName
	}
	if !ValidID(event.ModuleID(m.Name)) || m.Name == string(event.CoreModule) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}
	if m.Version != "" && !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	if filepath.Ext(m.Main) != ".lua" || filepath.IsAbs(m.Main) || !filepath.IsLocal(m.Main) {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}
	for _, c := range m.Capabilities {
		if !c.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidCapability, c)
		}
	}
	if m.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, m.Timeout)
	}
	return nil
}

// ID returns the module id named by the manifest.
func (m *Manifest) ID() event.ModuleID {
	return event.ModuleID(m.Name)
}

// Path returns the module directory.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the main Lua file.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// SingleFile reports whether the module is a bare name.lua file.
func (m *Manifest) SingleFile() bool {
	return m.single
}

// Owns reports whether a change to path affects this module.
func (m *Manifest) Owns(path string) bool {
	path = filepath.Clean(path)
	if m.single {
		return path == filepath.Clean(m.MainPath())
	}
	rel, err := filepath.Rel(m.path, path)
	return err == nil && filepath.IsLocal(rel)
}

// HasCapability returns true if the module requests the capability.
func (m *Manifest) HasCapability(c plua.Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}
