// Package watcher turns file system changes under the script directories
// into debounced per-module reload requests.
package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/dshills/mudscript/internal/event"
)

// Errors returned by Watch.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 200 * time.Millisecond

// Op is a bit set of file operations.
type Op uint32

// File operations.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// Has reports whether op contains o.
func (op Op) Has(o Op) bool {
	return op&o != 0
}

// String returns the operation names joined with "|".
func (op Op) String() string {
	var names []string
	for _, n := range []struct {
		op   Op
		name string
	}{
		{OpCreate, "create"},
		{OpWrite, "write"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
	} {
		if op.Has(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Change is a debounced group of file changes. Module is empty when no
// known module owns the changed paths, which usually means a module was
// added.
type Change struct {
	Module event.ModuleID
	Paths  []string
	Op     Op
}

// Resolver maps a changed path to the module that owns it.
type Resolver interface {
	ModuleFor(path string) (event.ModuleID, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(path string) (event.ModuleID, bool)

// ModuleFor calls f(path).
func (f ResolverFunc) ModuleFor(path string) (event.ModuleID, bool) {
	return f(path)
}

// Sink receives changes. It is called from a timer goroutine.
type Sink func(Change)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) {
		w.log = l
	}
}

// Stats is a snapshot of watcher counters.
type Stats struct {
	WatchedPaths int
	Events       uint64
	Changes      uint64
	Errors       uint64
}

// Watcher watches script directories with fsnotify.
type Watcher struct {
	fsw      *fsnotify.Watcher
	resolver Resolver
	log      zerolog.Logger
	delay    time.Duration
	debounce *debouncer

	mu     sync.Mutex
	paths  map[string]bool
	closed bool

	closeCh chan struct{}
	wg      sync.WaitGroup

	events atomic.Uint64
	errs   atomic.Uint64
}

// New creates a watcher that reports changes to sink.
func New(resolver Resolver, sink Sink, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		resolver: resolver,
		log:      zerolog.Nop(),
		delay:    DefaultDebounce,
		paths:    make(map[string]bool),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debounce = newDebouncer(w.delay, sink)

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch watches dir and every directory below it. Hidden directories are
// skipped.
func (w *Watcher) Watch(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return w.add(abs)
	}

	return filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != abs && hidden(p) {
			return filepath.SkipDir
		}
		return w.add(p)
	})
}

func (w *Watcher) add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return err
	}
	w.paths[path] = true
	return nil
}

// Flush reports pending changes immediately.
func (w *Watcher) Flush() {
	w.debounce.flush()
}

// Stats returns a snapshot of watcher counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	n := len(w.paths)
	w.mu.Unlock()
	return Stats{
		WatchedPaths: n,
		Events:       w.events.Load(),
		Changes:      w.debounce.fired.Load(),
		Errors:       w.errs.Load(),
	}
}

// Close stops the watcher. Pending changes are discarded.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	w.debounce.stop()
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev.Name, convertOp(ev.Op))

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.errs.Add(1)
			w.log.Warn().Err(err).Msg("script watcher error")
		}
	}
}

// handle filters one file event and queues it for debouncing.
func (w *Watcher) handle(path string, op Op) {
	if op == 0 || hidden(path) {
		return
	}

	if op.Has(OpCreate) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.Watch(path); err != nil {
				w.log.Warn().Err(err).Str("path", path).Msg("watch new directory")
			}
			w.queue(path, op)
			return
		}
	}
	if !relevant(path) {
		return
	}
	w.queue(path, op)
}

func (w *Watcher) queue(path string, op Op) {
	w.events.Add(1)
	var id event.ModuleID
	if w.resolver != nil {
		id, _ = w.resolver.ModuleFor(path)
	}
	w.log.Debug().Str("path", path).Stringer("op", op).Str("module", string(id)).Msg("script changed")
	w.debounce.add(id, path, op)
}

func convertOp(op fsnotify.Op) Op {
	var out Op
	if op.Has(fsnotify.Create) {
		out |= OpCreate
	}
	if op.Has(fsnotify.Write) {
		out |= OpWrite
	}
	if op.Has(fsnotify.Remove) {
		out |= OpRemove
	}
	if op.Has(fsnotify.Rename) {
		out |= OpRename
	}
	return out
}

// relevant reports whether a file can affect a module: Lua sources and
// manifests, excluding editor backups.
func relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, "~") {
		return false
	}
	return filepath.Ext(base) == ".lua" || base == "module.yaml"
}

func hidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 0 && base[0] == '.'
}
