package dispatch

import (
	"context"
	"sync/atomic"
	"time"
)

// Sequencer runs calls one after another in the caller's goroutine.
type Sequencer struct {
	executor *Executor
	timeout  time.Duration

	// Stats
	executed    atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	skipped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithPanicHandler sets the panic handler used for every call.
func WithPanicHandler(h PanicHandler) Option {
	return func(s *Sequencer) {
		s.executor = NewExecutor(WithExecutorPanicHandler(h))
	}
}

// WithTimeout sets a per-call timeout. Zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Sequencer) {
		s.timeout = timeout
	}
}

// NewSequencer creates a sequencer.
func NewSequencer(opts ...Option) *Sequencer {
	s := &Sequencer{
		executor: NewExecutor(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do runs a single call and records it in the running totals.
func (s *Sequencer) Do(ctx context.Context, call Call) Result {
	result := s.executor.ExecuteWithTimeout(ctx, call, s.timeout)

	s.executed.Add(1)
	s.totalTimeNs.Add(result.Duration.Nanoseconds())

	switch {
	case result.Skipped:
		s.skipped.Add(1)
	case result.Panicked:
		s.panicked.Add(1)
	case result.Err != nil:
		s.failed.Add(1)
	default:
		s.succeeded.Add(1)
	}

	return result
}

// Run executes the calls strictly in order. A failing call does not stop
// the sequence; once the context is done the remaining calls are skipped.
func (s *Sequencer) Run(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))
	for i, call := range calls {
		results[i] = s.Do(ctx, call)
	}
	return results
}

// Stats returns running totals. Values are read without a lock and may be
// slightly inconsistent while calls are in flight.
func (s *Sequencer) Stats() Stats {
	executed := s.executed.Load()
	totalNs := s.totalTimeNs.Load()

	var avgNs int64
	if executed > 0 {
		avgNs = totalNs / int64(executed)
	}

	return Stats{
		Executed:      executed,
		Succeeded:     s.succeeded.Load(),
		Failed:        s.failed.Load(),
		Panicked:      s.panicked.Load(),
		Skipped:       s.skipped.Load(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// Stats contains sequencer totals.
type Stats struct {
	Executed      uint64
	Succeeded     uint64
	Failed        uint64
	Panicked      uint64
	Skipped       uint64
	TotalDuration time.Duration
	AvgDuration   time.Duration
}
