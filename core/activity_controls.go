package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var ErrActivityQueueClosed = errors.New("core: activity queue is closed")

type ActivityRetentionPolicy struct {
	TTL    time.Duration
	RowCap int
}

type ActivityRetentionPruner interface {
	Prune(ctx context.Context, policy ActivityRetentionPolicy) (deleted int, err error)
}

type ActivityQueueOptions struct {
	// Fallback receives successful invocations that do not fit in the buffer
	// and any entry the primary sink rejects.
	Fallback   InvocationActivitySink
	Retention  ActivityRetentionPolicy
	PruneEvery time.Duration
	BufferSize int
}

// ActivityQueue moves activity writes off the invocation path so recording
// never adds store latency to Invoke. Failed invocations are never dropped:
// when the buffer is full they are written through to the primary sink.
// Successful ones overflow to the fallback, or are counted in Dropped.
type ActivityQueue struct {
	primary  InvocationActivitySink
	fallback InvocationActivitySink
	pruner   ActivityRetentionPruner
	policy   ActivityRetentionPolicy
	every    time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan InvocationActivityEntry
	done    chan struct{}
	dropped atomic.Uint64
	now     func() time.Time
}

func NewActivityQueue(primary InvocationActivitySink, opts ActivityQueueOptions) (*ActivityQueue, error) {
	if primary == nil {
		return nil, fmt.Errorf("core: primary activity sink is required")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 128
	}
	q := &ActivityQueue{
		primary:  primary,
		fallback: opts.Fallback,
		policy:   opts.Retention,
		every:    opts.PruneEvery,
		queue:    make(chan InvocationActivityEntry, opts.BufferSize),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	if pruner, ok := primary.(ActivityRetentionPruner); ok {
		q.pruner = pruner
	}
	go q.run()
	return q, nil
}

func (q *ActivityQueue) Record(ctx context.Context, entry InvocationActivityEntry) error {
	if q == nil {
		return fmt.Errorf("core: activity queue is not configured")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = q.now().UTC()
	}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrActivityQueueClosed
	}
	select {
	case q.queue <- entry:
		q.mu.RUnlock()
		return nil
	default:
	}
	q.mu.RUnlock()

	if entry.Status == InvocationStatusError {
		return q.write(ctx, entry)
	}
	if q.fallback != nil {
		return q.fallback.Record(ctx, entry)
	}
	q.dropped.Add(1)
	return nil
}

// Dropped counts successful invocations lost to a full buffer with no
// fallback configured.
func (q *ActivityQueue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}

// List reads from the primary sink when it can be read.
func (q *ActivityQueue) List(ctx context.Context, filter InvocationActivityFilter) (InvocationActivityPage, error) {
	if q == nil {
		return InvocationActivityPage{}, fmt.Errorf("core: activity queue is not configured")
	}
	reader, ok := q.primary.(InvocationActivityReader)
	if !ok {
		return InvocationActivityPage{}, fmt.Errorf("core: primary activity sink is not readable")
	}
	return reader.List(ctx, filter)
}

func (q *ActivityQueue) EnforceRetention(ctx context.Context) (int, error) {
	if q == nil {
		return 0, fmt.Errorf("core: activity queue is not configured")
	}
	if q.pruner == nil {
		return 0, nil
	}
	return q.pruner.Prune(ctx, q.policy)
}

// Close stops accepting entries and waits until every queued entry has been
// written, or ctx is done.
func (q *ActivityQueue) Close(ctx context.Context) error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	q.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ActivityQueue) run() {
	defer close(q.done)

	var tick <-chan time.Time
	if q.every > 0 && q.pruner != nil {
		ticker := time.NewTicker(q.every)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case entry, ok := <-q.queue:
			if !ok {
				return
			}
			_ = q.write(context.Background(), entry)
		case <-tick:
			_, _ = q.pruner.Prune(context.Background(), q.policy)
		}
	}
}

func (q *ActivityQueue) write(ctx context.Context, entry InvocationActivityEntry) error {
	err := q.primary.Record(ctx, entry)
	if err == nil || q.fallback == nil {
		return err
	}
	return q.fallback.Record(ctx, entry)
}
