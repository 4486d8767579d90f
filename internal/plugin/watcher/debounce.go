package watcher

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/mudscript/internal/event"
)

// debouncer coalesces changes per module. Each new change for a module
// restarts its timer.
type debouncer struct {
	delay time.Duration
	sink  Sink

	mu      sync.Mutex
	pending map[event.ModuleID]*pendingChange
	stopped bool

	fired atomic.Uint64
}

type pendingChange struct {
	change Change
	timer  *time.Timer
}

func newDebouncer(delay time.Duration, sink Sink) *debouncer {
	return &debouncer{
		delay:   delay,
		sink:    sink,
		pending: make(map[event.ModuleID]*pendingChange),
	}
}

func (d *debouncer) add(id event.ModuleID, path string, op Op) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if p, ok := d.pending[id]; ok {
		p.change.Op |= op
		if !slices.Contains(p.change.Paths, path) {
			p.change.Paths = append(p.change.Paths, path)
		}
		p.timer.Reset(d.delay)
		return
	}

	p := &pendingChange{change: Change{Module: id, Paths: []string{path}, Op: op}}
	p.timer = time.AfterFunc(d.delay, func() {
		d.fire(id)
	})
	d.pending[id] = p
}

func (d *debouncer) fire(id event.ModuleID) {
	d.mu.Lock()
	p, ok := d.pending[id]
	if !ok || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, id)
	d.mu.Unlock()

	d.fired.Add(1)
	if d.sink != nil {
		d.sink(p.change)
	}
}

// flush fires every pending change now, in module order.
func (d *debouncer) flush() {
	d.mu.Lock()
	ids := make([]event.ModuleID, 0, len(d.pending))
	for id, p := range d.pending {
		p.timer.Stop()
		ids = append(ids, id)
	}
	d.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		d.fire(id)
	}
}

// stop discards pending changes.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for id, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, id)
	}
}

func (d *debouncer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
