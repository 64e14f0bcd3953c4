package monitor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
)

// DefaultQueueSize is the default queue capacity.
const DefaultQueueSize = 4096

// Queue is a bounded FIFO between a source and the normalizer.
// When full, Push evicts the oldest update; evictions are counted and logged.
type Queue struct {
	mu      sync.Mutex
	buf     []*domain.RawUpdate
	head    int
	size    int
	dropped uint64
	closed  bool

	notify chan struct{}
	done   chan struct{}
	logger *zap.Logger
}

// Compile-time interface check.
var _ Sink = (*Queue)(nil)

// NewQueue creates a queue holding at most capacity updates.
func NewQueue(capacity int, logger *zap.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		buf:    make([]*domain.RawUpdate, capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.Named("queue"),
	}
}

// Push appends an update, evicting the oldest one when full.
// Pushing to a closed queue is a no-op.
func (q *Queue) Push(u *domain.RawUpdate) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}

	var evicted *domain.RawUpdate
	if q.size == len(q.buf) {
		evicted = q.buf[q.head]
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
	}
	q.buf[(q.head+q.size)%len(q.buf)] = u
	q.size++
	dropped, depth := q.dropped, q.size
	q.mu.Unlock()

	if evicted != nil {
		observability.RecordUpdateDropped()
		q.logger.Warn("queue full, dropped oldest update",
			zap.String("signature", evicted.Signature),
			zap.Uint64("dropped_total", dropped))
	}
	observability.UpdateQueueDepth(depth)

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop blocks until an update is available, the queue is closed and drained,
// or ctx is done. ok is false in the latter two cases.
func (q *Queue) Pop(ctx context.Context) (u *domain.RawUpdate, ok bool) {
	for {
		q.mu.Lock()
		if q.size > 0 {
			u = q.buf[q.head]
			q.buf[q.head] = nil
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			remaining := q.size
			q.mu.Unlock()
			if remaining > 0 {
				// Keep the signal set for other consumers.
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			observability.UpdateQueueDepth(remaining)
			return u, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.notify:
		case <-q.done:
		}
	}
}

// Close stops accepting updates. Pending updates can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

// Len returns the number of queued updates.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns the number of evicted updates.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
