package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/plugin/api"
	plua "github.com/dshills/mudscript/internal/plugin/lua"
)

// LuaModule is a script module backed by a Lua file. Every load runs the
// script on a fresh state, so a reload starts from clean globals.
type LuaModule struct {
	id      event.ModuleID
	timeout time.Duration

	mu       sync.Mutex
	manifest *Manifest
	state    *plua.State
}

// NewLuaModule creates a module for manifest. timeout applies when the
// manifest sets none.
func NewLuaModule(manifest *Manifest, timeout time.Duration) *LuaModule {
	return &LuaModule{
		id:       manifest.ID(),
		manifest: manifest,
		timeout:  timeout,
	}
}

// ID implements Module.
func (m *LuaModule) ID() event.ModuleID {
	return m.id
}

// Manifest returns the module's manifest.
func (m *LuaModule) Manifest() *Manifest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manifest
}

// SetManifest replaces the manifest used from the next load on. The module
// id cannot change.
func (m *LuaModule) SetManifest(manifest *Manifest) error {
	if manifest == nil {
		return ErrNilManifest
	}
	if manifest.ID() != m.id {
		return fmt.Errorf("%w: manifest names %s, module is %s", ErrInvalidManifest, manifest.ID(), m.id)
	}
	m.mu.Lock()
	m.manifest = manifest
	m.mu.Unlock()
	return nil
}

// Load implements Module. It builds the sandboxed state, installs the mud
// API bound to env and runs the main file.
func (m *LuaModule) Load(ctx context.Context, env *Env) error {
	manifest := m.Manifest()
	timeout := manifest.Timeout
	if timeout == 0 {
		timeout = m.timeout
	}

	log := env.Logger()
	state, err := plua.NewState(
		plua.WithExecutionTimeout(timeout),
		plua.WithModuleDir(manifest.Path()),
		plua.WithCapabilities(manifest.Capabilities...),
		plua.WithPrinter(func(msg string) {
			log.Info().Msg(msg)
		}),
	)
	if err != nil {
		return fmt.Errorf("create lua state: %w", err)
	}

	reg, err := api.DefaultRegistry(env.APIContext(state))
	if err != nil {
		state.Close()
		return err
	}
	if err := reg.InjectAll(state.LuaState()); err != nil {
		state.Close()
		return err
	}

	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	if err := state.DoFile(ctx, manifest.MainPath()); err != nil {
		return fmt.Errorf("run %s: %w", manifest.Main, err)
	}
	return nil
}

// Close implements Module. It is safe to call more than once.
func (m *LuaModule) Close() error {
	m.mu.Lock()
	state := m.state
	m.state = nil
	m.mu.Unlock()

	if state == nil {
		return nil
	}
	return state.Close()
}
