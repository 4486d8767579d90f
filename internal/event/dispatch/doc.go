// Package dispatch runs event handlers with panic recovery and timing.
//
// The event bus delivers every event to its handlers one at a time, in
// registration order, on the publishing goroutine. This package supplies the
// pieces of that loop that do not depend on the event model:
//
//   - Executor: runs a single handler call, recovering panics and measuring
//     how long the call took.
//   - Sequencer: runs a list of calls strictly in order, continuing past
//     failures, and keeps running totals.
//
// A failing or panicking call never prevents later calls from running. The
// caller receives one Result per call and decides how to report failures.
//
//	seq := dispatch.NewSequencer(
//	    dispatch.WithPanicHandler(func(v any, stack []byte) {
//	        log.Printf("handler panic: %v\n%s", v, stack)
//	    }),
//	)
//	results := seq.Run(ctx, calls)
package dispatch
