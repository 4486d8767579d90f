package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader discovers script modules on the filesystem.
type Loader struct {
	// Search paths, checked in order. The first module of a name wins.
	paths []string
}

// Discovered describes a module found on disk. Manifest is nil when Error is
// set.
type Discovered struct {
	Name     string
	Path     string
	Manifest *Manifest
	Error    error
}

// NewLoader creates a loader over the given search paths.
func NewLoader(paths ...string) *Loader {
	return &Loader{paths: paths}
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	return l.paths
}

// Discover finds all modules in the search paths, sorted by name. A
// directory is a module when it has a module.yaml or an init.lua; a bare
// name.lua file is a module on its own. Missing search paths are skipped.
func (l *Loader) Discover() ([]*Discovered, error) {
	found := make(map[string]*Discovered)
	var errs []error

	for _, base := range l.paths {
		if err := l.discoverInPath(base, found); err != nil {
			errs = append(errs, err)
		}
	}

	out := make([]*Discovered, 0, len(found))
	for _, d := range found {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, errors.Join(errs...)
}

func (l *Loader) discoverInPath(base string, found map[string]*Discovered) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read module path %s: %w", base, err)
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		var d *Discovered
		path := filepath.Join(base, entry.Name())
		switch {
		case entry.IsDir():
			d = inspect(entry.Name(), path)
		case filepath.Ext(entry.Name()) == ".lua":
			m := newSingleFileManifest(path)
			d = &Discovered{Name: m.Name, Path: path, Manifest: m}
			if err := m.Validate(); err != nil {
				d.Manifest, d.Error = nil, err
			}
		default:
			continue
		}

		if d == nil {
			continue
		}
		if _, exists := found[d.Name]; !exists {
			found[d.Name] = d
		}
	}
	return nil
}

// inspect examines a directory. It returns nil for directories that are not
// modules at all.
func inspect(name, dir string) *Discovered {
	d := &Discovered{Name: name, Path: dir}

	manifestPath := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		m, err := LoadManifest(manifestPath)
		if err != nil {
			d.Error = err
			return d
		}
		if _, err := os.Stat(m.MainPath()); err != nil {
			d.Error = fmt.Errorf("%w: %s", ErrNoEntryPoint, m.Main)
			return d
		}
		d.Name = m.Name
		d.Manifest = m
		return d
	}

	if _, err := os.Stat(filepath.Join(dir, DefaultMain)); err == nil {
		m := NewManifestMinimal(name, dir, DefaultMain)
		if err := m.Validate(); err != nil {
			d.Error = err
			return d
		}
		d.Manifest = m
		return d
	}
	return nil
}

// Find returns the discovered module with the given name.
func (l *Loader) Find(name string) (*Discovered, error) {
	all, err := l.Discover()
	for _, d := range all {
		if d.Name == name {
			return d, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}
