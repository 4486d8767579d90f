package app

import (
	"context"
	"sync"

	"github.com/dshills/mudscript/internal/event"
)

// task is a unit of work run on the dispatch loop.
type task func(ctx context.Context)

// queue is an unbounded FIFO of tasks. Handlers running on the loop push
// to it, so pushing never blocks.
type queue struct {
	mu     sync.Mutex
	items  []task
	closed bool
	wake   chan struct{}
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

// push appends t. It reports false once the queue is closed.
func (q *queue) push(t task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *queue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close rejects further pushes and drops pending tasks, returning how many
// were dropped.
func (q *queue) close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	q.closed = true
	return n
}

// loop runs queued tasks until ctx ends or Shutdown is called.
func (r *Runtime) loop(ctx context.Context) {
	for {
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			default:
			}

			t, ok := r.queue.pop()
			if !ok {
				break
			}
			r.runTask(ctx, t)
		}

		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-r.queue.wake:
		}
	}
}

// runTask runs t with panic recovery. A panicking task is logged and the
// loop carries on.
func (r *Runtime) runTask(ctx context.Context, t task) {
	r.tasks.Add(1)
	res := r.executor.Execute(ctx, func(ctx context.Context) error {
		t(ctx)
		return nil
	})
	if res.Panicked {
		r.log.Error().
			Interface("panic", res.PanicValue).
			Bytes("stack", res.PanicStack).
			Msg("dispatch loop task panicked")
	}
}

// enqueue schedules t on the loop.
func (r *Runtime) enqueue(t task) bool {
	if !r.queue.push(t) {
		r.log.Debug().Msg("runtime stopped, work dropped")
		return false
	}
	return true
}

// Emit queues ev for publication on the loop after the work already
// queued. It is safe to call from handlers and from other goroutines.
func (r *Runtime) Emit(ev event.Event) {
	r.enqueue(func(ctx context.Context) {
		r.publish(ctx, ev)
	})
}

// publish delivers ev synchronously. Handler failures are logged by the
// bus.
func (r *Runtime) publish(ctx context.Context, ev event.Event) {
	if err := r.bus.Publish(ctx, ev); err != nil {
		r.log.Debug().Err(err).Str("event", ev.String()).Msg("publish")
	}
}

// Call runs fn on the loop and waits for its result. A panic in fn is
// returned as an *event.PanicError.
func (r *Runtime) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	if !r.enqueue(func(ctx context.Context) {
		res := r.executor.Execute(ctx, fn)
		if res.Panicked {
			result <- &event.PanicError{Value: res.PanicValue, Stack: string(res.PanicStack)}
			return
		}
		result <- res.Err
	}) {
		return ErrNotRunning
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until the loop has run everything queued, including work
// that queued work queues in turn.
func (r *Runtime) Flush(ctx context.Context) error {
	done := make(chan struct{})
	var drain task
	drain = func(context.Context) {
		if r.queue.len() > 0 {
			r.queue.push(drain)
			return
		}
		close(done)
	}
	if !r.enqueue(drain) {
		return ErrNotRunning
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoopStats returns dispatch loop counters.
func (r *Runtime) LoopStats() LoopStats {
	return LoopStats{
		Tasks:   r.tasks.Load(),
		Pending: r.queue.len(),
		Reloads: r.reloads.Load(),
	}
}
