package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Call is a single unit of handler work.
type Call func(ctx context.Context) error

// PanicHandler is notified when a call panics.
type PanicHandler func(panicValue any, stack []byte)

// Result captures the outcome of one call.
type Result struct {
	// Err is the error returned by the call, or the context error when the
	// call was skipped.
	Err error

	// Skipped is true when the call never ran because the context was done.
	Skipped bool

	// Panicked is true when the call panicked.
	Panicked bool

	// PanicValue is the value passed to panic().
	PanicValue any

	// PanicStack is the stack captured at the time of the panic.
	PanicStack []byte

	// Duration is how long the call ran.
	Duration time.Duration
}

// OK reports whether the call ran to completion without error.
func (r Result) OK() bool {
	return !r.Skipped && !r.Panicked && r.Err == nil
}

// Executor runs calls with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorPanicHandler sets the panic handler for the executor.
func WithExecutorPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// NewExecutor creates a new executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the call and returns its result. Panics are recovered and
// reported through the panic handler; a panicking panic handler is ignored.
func (e *Executor) Execute(ctx context.Context, call Call) (result Result) {
	select {
	case <-ctx.Done():
		return Result{Err: ctx.Err(), Skipped: true}
	default:
	}

	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			if e.panicHandler != nil {
				func() {
					defer func() {
						_ = recover()
					}()
					e.panicHandler(r, stack)
				}()
			}
		}
	}()

	result.Err = call(ctx)
	return result
}

// ExecuteWithTimeout runs the call with a deadline. The call must observe
// its context for the timeout to have any effect.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, call Call, timeout time.Duration) Result {
	if timeout <= 0 {
		return e.Execute(ctx, call)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.Execute(ctx, call)
}
