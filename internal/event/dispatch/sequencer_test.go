package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutor_Execute(t *testing.T) {
	e := NewExecutor()

	result := e.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if !result.OK() {
		t.Fatalf("expected OK result, got %+v", result)
	}

	wantErr := errors.New("boom")
	result = e.Execute(context.Background(), func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(result.Err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, result.Err)
	}
	if result.OK() {
		t.Error("failed call should not be OK")
	}
}

func TestExecutor_RecoversPanic(t *testing.T) {
	var gotValue any
	e := NewExecutor(WithExecutorPanicHandler(func(v any, stack []byte) {
		gotValue = v
		if len(stack) == 0 {
			t.Error("expected a stack trace")
		}
	}))

	result := e.Execute(context.Background(), func(ctx context.Context) error {
		panic("handler exploded")
	})

	if !result.Panicked {
		t.Fatal("expected Panicked result")
	}
	if result.PanicValue != "handler exploded" {
		t.Errorf("PanicValue = %v", result.PanicValue)
	}
	if gotValue != "handler exploded" {
		t.Errorf("panic handler got %v", gotValue)
	}
}

func TestExecutor_PanickingPanicHandler(t *testing.T) {
	e := NewExecutor(WithExecutorPanicHandler(func(any, []byte) {
		panic("again")
	}))

	result := e.Execute(context.Background(), func(ctx context.Context) error {
		panic("first")
	})
	if !result.Panicked {
		t.Error("expected Panicked result")
	}
}

func TestExecutor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	result := NewExecutor().Execute(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})

	if ran {
		t.Error("call should not run with a cancelled context")
	}
	if !result.Skipped || !errors.Is(result.Err, context.Canceled) {
		t.Errorf("expected skipped result with context.Canceled, got %+v", result)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	result := NewExecutor().ExecuteWithTimeout(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", result.Err)
	}
}

func TestSequencer_RunsInOrderPastFailures(t *testing.T) {
	var order []int
	calls := []Call{
		func(context.Context) error { order = append(order, 1); return nil },
		func(context.Context) error { order = append(order, 2); return errors.New("fail") },
		func(context.Context) error { order = append(order, 3); panic("p") },
		func(context.Context) error { order = append(order, 4); return nil },
	}

	s := NewSequencer()
	results := s.Run(context.Background(), calls)

	if len(order) != 4 {
		t.Fatalf("expected all calls to run, got %v", order)
	}
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("calls ran out of order: %v", order)
		}
	}
	if !results[0].OK() || results[1].Err == nil || !results[2].Panicked || !results[3].OK() {
		t.Errorf("unexpected results: %+v", results)
	}

	stats := s.Stats()
	if stats.Executed != 4 || stats.Succeeded != 2 || stats.Failed != 1 || stats.Panicked != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
