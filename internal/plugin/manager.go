package plugin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/mudscript/internal/command"
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/event/dispatch"
	"github.com/dshills/mudscript/internal/host"
	"github.com/dshills/mudscript/internal/plugin/api"
	"github.com/dshills/mudscript/internal/session"
)

// Retractor removes everything a module registered with some registry.
type Retractor interface {
	RetractByOwner(owner event.ModuleID) int
}

// Manager loads modules, drives their session setup hooks and reloads them
// in place. It is meant to be driven from the runtime's dispatch loop; the
// query methods are safe from any goroutine.
type Manager struct {
	bus        *event.Bus
	host       host.Host
	commands   *command.Registry
	emitter    api.Emitter
	retractors []Retractor
	log        zerolog.Logger
	executor   *dispatch.Executor

	mu           sync.RWMutex
	modules      map[event.ModuleID]*entry
	loadOrder    []event.ModuleID
	handlers     []listener
	nextListener uint64

	reloads      atomic.Uint64
	loadFailures atomic.Uint64
	setupErrors  atomic.Uint64
	retracted    atomic.Uint64
}

// entry is the manager's record of one module.
type entry struct {
	module       Module
	state        State
	err          error
	generation   uint64
	setup        []api.SetupFunc
	beforeReload []api.ReloadFunc
	loadedAt     time.Time
	reloads      int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = l
	}
}

// WithHost sets the session host used to resume sessions after a reload.
func WithHost(h host.Host) ManagerOption {
	return func(m *Manager) {
		m.host = h
	}
}

// WithCommands sets the command registry modules register into. It is
// retracted after the bus.
func WithCommands(r *command.Registry) ManagerOption {
	return func(m *Manager) {
		if r == nil {
			return
		}
		m.commands = r
		m.retractors = append(m.retractors, r)
	}
}

// WithRetractor adds a registry to retract on reload, after the bus.
func WithRetractor(r Retractor) ManagerOption {
	return func(m *Manager) {
		m.retractors = append(m.retractors, r)
	}
}

// WithEmitter sets the queue handed to modules for publishing events.
func WithEmitter(e api.Emitter) ManagerOption {
	return func(m *Manager) {
		m.emitter = e
	}
}

// NewManager creates a manager whose modules register on bus.
func NewManager(bus *event.Bus, opts ...ManagerOption) *Manager {
	m := &Manager{
		bus:        bus,
		log:        zerolog.Nop(),
		retractors: []Retractor{bus},
		modules:    make(map[event.ModuleID]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.executor = dispatch.NewExecutor()
	return m
}

// Register adds a module without loading it. Modules are loaded, set up and
// reloaded in registration order.
func (m *Manager) Register(mod Module) error {
	if mod == nil {
		return ErrNilModule
	}
	id := mod.ID()
	if id == event.CoreModule {
		return fmt.Errorf("%w: %s", ErrReservedID, id)
	}
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.modules[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}
	m.modules[id] = &entry{module: mod}
	m.loadOrder = append(m.loadOrder, id)
	return nil
}

// Add registers and loads a module.
func (m *Manager) Add(ctx context.Context, mod Module) error {
	if err := m.Register(mod); err != nil {
		return err
	}
	return m.Load(ctx, mod.ID())
}

// Load runs a registered module's code.
func (m *Manager) Load(ctx context.Context, id event.ModuleID) error {
	m.mu.RLock()
	e, ok := m.modules[id]
	loaded := ok && e.state == StateLoaded
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	if loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, id)
	}
	return m.load(ctx, id, e)
}

// LoadAll loads every registered module that is not loaded. A failing module
// does not stop the others.
func (m *Manager) LoadAll(ctx context.Context) error {
	var errs []error
	for _, id := range m.order() {
		m.mu.RLock()
		e := m.modules[id]
		skip := e == nil || e.state == StateLoaded
		m.mu.RUnlock()
		if skip {
			continue
		}
		if err := m.load(ctx, id, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// load runs the module's Load with a fresh Env. On failure everything the
// partial run registered is retracted.
func (m *Manager) load(ctx context.Context, id event.ModuleID, e *entry) error {
	m.mu.Lock()
	e.generation++
	e.setup = nil
	e.beforeReload = nil
	env := &Env{
		manager:    m,
		id:         id,
		generation: e.generation,
		registrar:  m.bus.Registrar(id),
		log:        m.log.With().Str("module", string(id)).Logger(),
	}
	mod := e.module
	m.mu.Unlock()

	err := m.run(ctx, func(ctx context.Context) error {
		return mod.Load(ctx, env)
	})
	if err != nil {
		m.retract(id)
		if cerr := mod.Close(); cerr != nil {
			m.log.Warn().Err(cerr).Str("module", string(id)).Msg("close after failed load")
		}

		m.mu.Lock()
		e.generation++
		e.setup = nil
		e.beforeReload = nil
		e.state = StateError
		e.err = err
		m.mu.Unlock()

		m.loadFailures.Add(1)
		m.log.Error().Err(err).Str("module", string(id)).Msg("module load failed")
		lerr := &LoadError{Module: id, Err: err}
		m.emitEvent(ManagerEvent{Type: EventModuleError, Module: id, Error: lerr})
		return lerr
	}

	m.mu.Lock()
	e.state = StateLoaded
	e.err = nil
	e.loadedAt = time.Now()
	m.mu.Unlock()

	m.log.Debug().Str("module", string(id)).Msg("module loaded")
	m.emitEvent(ManagerEvent{Type: EventModuleLoaded, Module: id})
	return nil
}

// PrepareReload retracts every registration of the module, then runs its
// before-reload hooks and closes it. Hook failures are logged.
func (m *Manager) PrepareReload(ctx context.Context, id event.ModuleID) error {
	m.mu.RLock()
	e, ok := m.modules[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}

	n := m.retract(id)

	m.mu.Lock()
	hooks := e.beforeReload
	mod := e.module
	e.generation++
	e.setup = nil
	e.beforeReload = nil
	e.state = StateUnloaded
	m.mu.Unlock()

	for _, hook := range hooks {
		if err := m.run(ctx, dispatch.Call(hook)); err != nil {
			m.log.Error().Err(err).Str("module", string(id)).Msg("before-reload hook failed")
		}
	}
	if err := mod.Close(); err != nil {
		m.log.Warn().Err(err).Str("module", string(id)).Msg("close before reload")
	}

	m.log.Debug().Str("module", string(id)).Int("retracted", n).Msg("module retracted for reload")
	return nil
}

// CompleteReload loads the module again and, on success, publishes a
// ResumeSession event scoped to it for every live session.
func (m *Manager) CompleteReload(ctx context.Context, id event.ModuleID) error {
	m.mu.RLock()
	e, ok := m.modules[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}

	if err := m.load(ctx, id, e); err != nil {
		return err
	}

	m.mu.Lock()
	e.reloads++
	m.mu.Unlock()
	m.reloads.Add(1)
	m.emitEvent(ManagerEvent{Type: EventModuleReloaded, Module: id})

	m.resumeSessions(ctx, id)
	return nil
}

// Reload retracts and reloads a module.
func (m *Manager) Reload(ctx context.Context, id event.ModuleID) error {
	if err := m.PrepareReload(ctx, id); err != nil {
		return err
	}
	return m.CompleteReload(ctx, id)
}

// ReloadAll reloads every module in registration order and publishes
// ModulesReloaded with the outcome.
func (m *Manager) ReloadAll(ctx context.Context) error {
	ids := m.order()
	var failed []event.ModuleID
	var errs []error
	for _, id := range ids {
		if err := m.Reload(ctx, id); err != nil {
			failed = append(failed, id)
			errs = append(errs, err)
		}
	}

	ev := event.New(event.KindModulesReloaded, event.ReloadPayload{Modules: ids, Failed: failed})
	if err := m.bus.Publish(ctx, ev); err != nil {
		m.log.Warn().Err(err).Msg("modules reloaded handlers failed")
	}
	return errors.Join(errs...)
}

// Unload retracts a module and forgets it.
func (m *Manager) Unload(ctx context.Context, id event.ModuleID) error {
	if err := m.PrepareReload(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.modules, id)
	for i, n := range m.loadOrder {
		if n == id {
			m.loadOrder = append(m.loadOrder[:i:i], m.loadOrder[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.emitEvent(ManagerEvent{Type: EventModuleUnloaded, Module: id})
	return nil
}

// SetupSession runs the setup hooks of loaded modules for a session, in
// module registration order and, within a module, hook registration order.
// A non-empty only limits the run to that module. A failing hook is logged
// and the rest still run; the failures are returned joined.
func (m *Manager) SetupSession(ctx context.Context, info session.Info, only event.ModuleID) error {
	type pending struct {
		id    event.ModuleID
		hooks []api.SetupFunc
	}

	m.mu.RLock()
	var work []pending
	for _, id := range m.loadOrder {
		if only != "" && id != only {
			continue
		}
		e := m.modules[id]
		if e.state != StateLoaded || len(e.setup) == 0 {
			continue
		}
		work = append(work, pending{id: id, hooks: append([]api.SetupFunc(nil), e.setup...)})
	}
	m.mu.RUnlock()

	var errs []error
	for _, p := range work {
		for _, hook := range p.hooks {
			err := m.run(ctx, func(ctx context.Context) error {
				return hook(ctx, info)
			})
			if err != nil {
				m.setupErrors.Add(1)
				m.log.Error().Err(err).
					Str("module", string(p.id)).
					Uint32("session", uint32(info.ID)).
					Msg("session setup hook failed")
				errs = append(errs, fmt.Errorf("setup %s: %w", p.id, err))
			}
		}
	}
	return errors.Join(errs...)
}

// resumeSessions publishes ResumeSession{Module: id} for every live session.
func (m *Manager) resumeSessions(ctx context.Context, id event.ModuleID) {
	if m.host == nil {
		return
	}
	for _, sid := range m.host.Sessions() {
		info, ok := m.host.SessionInfo(sid)
		if !ok {
			continue
		}
		ev := event.ForSession(event.KindResumeSession, sid, event.SessionPayload{Info: info, Module: id})
		if err := m.bus.Publish(ctx, ev); err != nil {
			m.log.Warn().Err(err).Str("module", string(id)).Uint32("session", uint32(sid)).Msg("resume session handlers failed")
		}
	}
}

// retract removes the module's registrations from every retractor, bus first.
func (m *Manager) retract(id event.ModuleID) int {
	total := 0
	for _, r := range m.retractors {
		total += r.RetractByOwner(id)
	}
	m.retracted.Add(uint64(total))
	return total
}

// run executes a call with panic recovery.
func (m *Manager) run(ctx context.Context, call dispatch.Call) error {
	res := m.executor.Execute(ctx, call)
	if res.Panicked {
		return &event.PanicError{Value: res.PanicValue, Stack: string(res.PanicStack)}
	}
	return res.Err
}

// addHook applies fn to the module's entry if env is still current.
func (m *Manager) addHook(env *Env, fn func(*entry)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.modules[env.id]
	if !ok || e.generation != env.generation {
		return
	}
	fn(e)
}

func (m *Manager) order() []event.ModuleID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]event.ModuleID(nil), m.loadOrder...)
}

// ModuleInfo describes a module for listings.
type ModuleInfo struct {
	ID         event.ModuleID
	State      State
	Err        error
	LoadedAt   time.Time
	Reloads    int
	SetupHooks int
}

// Modules returns every module in registration order.
func (m *Manager) Modules() []ModuleInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ModuleInfo, 0, len(m.loadOrder))
	for _, id := range m.loadOrder {
		out = append(out, m.modules[id].info(id))
	}
	return out
}

// Module returns one module's info.
func (m *Manager) Module(id event.ModuleID) (ModuleInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.modules[id]
	if !ok {
		return ModuleInfo{}, false
	}
	return e.info(id), true
}

func (e *entry) info(id event.ModuleID) ModuleInfo {
	return ModuleInfo{
		ID:         id,
		State:      e.state,
		Err:        e.err,
		LoadedAt:   e.loadedAt,
		Reloads:    e.reloads,
		SetupHooks: len(e.setup),
	}
}

// Errors returns modules in error state with their errors.
func (m *Manager) Errors() map[event.ModuleID]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[event.ModuleID]error)
	for id, e := range m.modules {
		if e.state == StateError && e.err != nil {
			errs[id] = e.err
		}
	}
	return errs
}

// Stats is a snapshot of manager counters.
type Stats struct {
	Modules      int
	Loaded       int
	Errored      int
	Reloads      uint64
	LoadFailures uint64
	SetupErrors  uint64
	Retracted    uint64
}

// Stats returns a snapshot of manager counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	s := Stats{Modules: len(m.modules)}
	for _, e := range m.modules {
		switch e.state {
		case StateLoaded:
			s.Loaded++
		case StateError:
			s.Errored++
		}
	}
	m.mu.RUnlock()

	s.Reloads = m.reloads.Load()
	s.LoadFailures = m.loadFailures.Load()
	s.SetupErrors = m.setupErrors.Load()
	s.Retracted = m.retracted.Load()
	return s
}

// EventHandler receives manager events.
type EventHandler func(event ManagerEvent)

// ManagerEvent represents a module lifecycle change.
type ManagerEvent struct {
	Type   ManagerEventType
	Module event.ModuleID
	Error  error
}

// ManagerEventType is the type of manager event.
type ManagerEventType int

// Manager event types.
const (
	EventModuleLoaded ManagerEventType = iota
	EventModuleUnloaded
	EventModuleReloaded
	EventModuleError
)

// String returns a string representation of the event type.
func (t ManagerEventType) String() string {
	switch t {
	case EventModuleLoaded:
		return "loaded"
	case EventModuleUnloaded:
		return "unloaded"
	case EventModuleReloaded:
		return "reloaded"
	case EventModuleError:
		return "error"
	default:
		return "unknown"
	}
}

// Subscribe adds a listener for module lifecycle changes. Listeners run in
// the goroutine that changed the module, in the order they were added. The
// returned function removes the listener.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	m.nextListener++
	id := m.nextListener
	m.handlers = append(m.handlers, listener{id: id, fn: handler})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.handlers = slices.DeleteFunc(m.handlers, func(l listener) bool { return l.id == id })
	}
}

type listener struct {
	id uint64
	fn EventHandler
}

// emitEvent sends an event to all listeners outside the lock, recovering
// panics.
func (m *Manager) emitEvent(ev ManagerEvent) {
	m.mu.RLock()
	handlers := make([]EventHandler, len(m.handlers))
	for i, l := range m.handlers {
		handlers[i] = l.fn
	}
	m.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error().Interface("panic", r).Msg("manager event handler panicked")
				}
			}()
			handler(ev)
		}()
	}
}
