package core

import (
	"context"
	"errors"
	"testing"
)

func TestPipeline_DropsNilAndKeepsOrder(t *testing.T) {
	pipeline := NewPipeline()
	calls := []string{}
	pipeline.RegisterMiddleware(nil)
	pipeline.RegisterMiddleware(func(context.Context, *HookContext) error {
		calls = append(calls, "a")
		return nil
	})
	pipeline.RegisterMiddleware(func(context.Context, *HookContext) error {
		calls = append(calls, "b")
		return nil
	})

	chains := pipeline.Snapshot()
	if len(chains.Middleware) != 2 {
		t.Fatalf("expected nil hook dropped, got %d hooks", len(chains.Middleware))
	}
	if err := runSequential(context.Background(), chains.Middleware, &HookContext{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("expected registration order, got %v", calls)
	}
}

func TestPipeline_SnapshotIsolatedFromLaterRegistration(t *testing.T) {
	pipeline := NewPipeline()
	pipeline.RegisterGroup(func(context.Context, *HookContext) error { return nil })
	chains := pipeline.Snapshot()
	pipeline.RegisterGroup(func(context.Context, *HookContext) error { return nil })
	if len(chains.Group) != 1 {
		t.Fatalf("expected snapshot to keep one hook, got %d", len(chains.Group))
	}
	if len(pipeline.Snapshot().Group) != 2 {
		t.Fatalf("expected pipeline to hold two hooks")
	}
}

func TestRunSequential_StopsAtFirstFailure(t *testing.T) {
	ran := 0
	hooks := []HookFunc{
		func(context.Context, *HookContext) error { ran++; return errors.New("stop") },
		func(context.Context, *HookContext) error { ran++; return nil },
	}
	if err := runSequential(context.Background(), hooks, &HookContext{}); err == nil {
		t.Fatalf("expected failure")
	}
	if ran != 1 {
		t.Fatalf("expected second hook skipped, ran=%d", ran)
	}
}

func TestCallHook_RecoversPanics(t *testing.T) {
	err := callHook(context.Background(), func(context.Context, *HookContext) error {
		panic("thrown")
	}, &HookContext{})
	var panicErr *HookPanicError
	if !errors.As(err, &panicErr) || panicErr.Value != "thrown" {
		t.Fatalf("expected hook panic error, got %v", err)
	}

	sentinel := errors.New("sentinel")
	err = callHook(context.Background(), func(context.Context, *HookContext) error {
		panic(sentinel)
	}, &HookContext{})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected panicked error returned as is, got %v", err)
	}
}
