package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestActivityQueue_OverflowRoutesByStatus(t *testing.T) {
	primary := newGatedActivitySink()
	fallback := &bufferCapturingActivitySink{}
	queue, err := NewActivityQueue(primary, ActivityQueueOptions{Fallback: fallback, BufferSize: 1})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer func() {
		close(primary.release)
		_ = queue.Close(context.Background())
	}()

	ctx := context.Background()
	if err := queue.Record(ctx, InvocationActivityEntry{Service: "slow"}); err != nil {
		t.Fatalf("record slow: %v", err)
	}
	<-primary.entered
	if err := queue.Record(ctx, InvocationActivityEntry{Service: "buffered"}); err != nil {
		t.Fatalf("record buffered: %v", err)
	}

	if err := queue.Record(ctx, InvocationActivityEntry{Service: "users", Status: InvocationStatusOK}); err != nil {
		t.Fatalf("record overflow ok: %v", err)
	}
	if fallback.count() != 1 || fallback.last.Service != "users" {
		t.Fatalf("expected successful overflow in fallback, got %#v", fallback.entries)
	}

	if err := queue.Record(ctx, InvocationActivityEntry{Service: "orders", Status: InvocationStatusError}); err != nil {
		t.Fatalf("record overflow error: %v", err)
	}
	if got := primary.services(); len(got) != 1 || got[0] != "orders" {
		t.Fatalf("expected failed invocation written through to primary, got %v", got)
	}
}

func TestActivityQueue_CountsDroppedWithoutFallback(t *testing.T) {
	primary := newGatedActivitySink()
	queue, err := NewActivityQueue(primary, ActivityQueueOptions{BufferSize: 1})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer func() {
		close(primary.release)
		_ = queue.Close(context.Background())
	}()

	ctx := context.Background()
	_ = queue.Record(ctx, InvocationActivityEntry{Service: "slow"})
	<-primary.entered
	_ = queue.Record(ctx, InvocationActivityEntry{Service: "buffered"})
	if err := queue.Record(ctx, InvocationActivityEntry{Service: "users", Status: InvocationStatusOK}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if queue.Dropped() != 1 {
		t.Fatalf("expected one dropped entry, got %d", queue.Dropped())
	}
}

func TestActivityQueue_FallbackOnPrimaryError(t *testing.T) {
	fallback := &bufferCapturingActivitySink{}
	queue, err := NewActivityQueue(errorActivitySink{}, ActivityQueueOptions{Fallback: fallback, BufferSize: 4})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}

	if err := queue.Record(context.Background(), InvocationActivityEntry{Service: "fail"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := queue.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if fallback.count() != 1 {
		t.Fatalf("expected fallback write after primary failure")
	}
}

func TestActivityQueue_CloseDrainsQueuedEntries(t *testing.T) {
	primary := &bufferCapturingActivitySink{}
	queue, err := NewActivityQueue(primary, ActivityQueueOptions{BufferSize: 8})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := queue.Record(context.Background(), InvocationActivityEntry{Service: "users"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := queue.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if primary.count() != 5 {
		t.Fatalf("expected all queued entries written, got %d", primary.count())
	}
	if err := queue.Record(context.Background(), InvocationActivityEntry{Service: "late"}); !errors.Is(err, ErrActivityQueueClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestActivityQueue_CloseHonoursContext(t *testing.T) {
	primary := newGatedActivitySink()
	queue, err := NewActivityQueue(primary, ActivityQueueOptions{BufferSize: 2})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer close(primary.release)

	_ = queue.Record(context.Background(), InvocationActivityEntry{Service: "slow"})
	<-primary.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := queue.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while draining, got %v", err)
	}
}

func TestActivityQueue_EnforceRetention(t *testing.T) {
	pruner := &stubPruner{deleted: 7}
	queue, err := NewActivityQueue(pruner, ActivityQueueOptions{
		Retention: ActivityRetentionPolicy{TTL: 24 * time.Hour, RowCap: 100},
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer queue.Close(context.Background())

	deleted, err := queue.EnforceRetention(context.Background())
	if err != nil {
		t.Fatalf("enforce retention: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("expected deleted=7, got %d", deleted)
	}
	if policy := pruner.policy(); policy.RowCap != 100 || policy.TTL != 24*time.Hour {
		t.Fatalf("expected policy propagation")
	}
}

func TestActivityQueue_PrunesPeriodically(t *testing.T) {
	pruner := &stubPruner{}
	queue, err := NewActivityQueue(pruner, ActivityQueueOptions{
		Retention:  ActivityRetentionPolicy{RowCap: 10},
		PruneEvery: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer queue.Close(context.Background())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pruner.calls.Load() > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected periodic prune")
}

func TestActivityQueue_ListRequiresReadablePrimary(t *testing.T) {
	queue, err := NewActivityQueue(&bufferCapturingActivitySink{}, ActivityQueueOptions{})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer queue.Close(context.Background())
	if _, err := queue.List(context.Background(), InvocationActivityFilter{}); err != nil {
		t.Fatalf("list: %v", err)
	}

	writeOnly, err := NewActivityQueue(writeOnlyActivitySink{}, ActivityQueueOptions{})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	defer writeOnly.Close(context.Background())
	if _, err := writeOnly.List(context.Background(), InvocationActivityFilter{}); err == nil {
		t.Fatalf("expected list error for write-only primary")
	}
}

// gatedActivitySink blocks on entries for the "slow" service until release
// is closed and records everything else.
type gatedActivitySink struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	written []string
}

func newGatedActivitySink() *gatedActivitySink {
	return &gatedActivitySink{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedActivitySink) Record(_ context.Context, entry InvocationActivityEntry) error {
	if entry.Service == "slow" {
		s.once.Do(func() { close(s.entered) })
		<-s.release
		return nil
	}
	if entry.Service == "buffered" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, entry.Service)
	return nil
}

func (s *gatedActivitySink) services() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

type errorActivitySink struct{}

func (errorActivitySink) Record(context.Context, InvocationActivityEntry) error {
	return errors.New("primary write failed")
}

type bufferCapturingActivitySink struct {
	mu      sync.Mutex
	entries []InvocationActivityEntry
	last    InvocationActivityEntry
}

func (s *bufferCapturingActivitySink) Record(_ context.Context, entry InvocationActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = entry
	s.entries = append(s.entries, entry)
	return nil
}

func (s *bufferCapturingActivitySink) List(context.Context, InvocationActivityFilter) (InvocationActivityPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := append([]InvocationActivityEntry(nil), s.entries...)
	return InvocationActivityPage{Items: items, Total: len(items)}, nil
}

func (s *bufferCapturingActivitySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type stubPruner struct {
	mu         sync.Mutex
	lastPolicy ActivityRetentionPolicy
	deleted    int
	calls      atomic.Int32
}

func (s *stubPruner) Record(context.Context, InvocationActivityEntry) error {
	return nil
}

func (s *stubPruner) Prune(_ context.Context, policy ActivityRetentionPolicy) (int, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPolicy = policy
	return s.deleted, nil
}

func (s *stubPruner) policy() ActivityRetentionPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPolicy
}

type writeOnlyActivitySink struct{}

func (writeOnlyActivitySink) Record(context.Context, InvocationActivityEntry) error {
	return nil
}

var (
	_ InvocationActivitySink  = (*gatedActivitySink)(nil)
	_ InvocationActivitySink  = errorActivitySink{}
	_ InvocationActivitySink  = (*bufferCapturingActivitySink)(nil)
	_ InvocationActivitySink  = writeOnlyActivitySink{}
	_ ActivityRetentionPruner = (*stubPruner)(nil)
)
