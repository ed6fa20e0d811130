// Package queue buffers race results for asynchronous application.
//
// Results are partitioned by horse: every result of one horse lands in the
// same shard, so a single consumer per shard is the only writer for that
// horse and results are applied in arrival order.
package queue

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/okian/furlong/internal/domain/model"
	"github.com/okian/furlong/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 100000
	defaultShards        = 8
)

// Event is the payload flowing through the queue.
type Event = model.RaceResult

// Queue provides non-blocking enqueue and per-shard channel dequeue.
type Queue interface {
	// Enqueue routes e to its horse's shard.
	// Returns ErrFull if the shard is at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, e Event) error

	// Dequeue returns the channel of one shard. It is closed when the queue
	// is closed and drained.
	Dequeue(ctx context.Context, shard int) (<-chan Event, error)

	// Shards returns the number of shards.
	Shards() int

	// Len returns the number of queued events across shards.
	Len(ctx context.Context) int

	// Capacity returns the total capacity across shards.
	Capacity() int

	// Close stops accepting events.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// ShardedQueue implements Queue with one buffered channel per shard.
type ShardedQueue struct {
	shards   int
	capacity int
	lanes    []chan Event

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*ShardedQueue)(nil)

// NewShardedQueue creates a queue with configuration options. Capacity is
// split evenly across shards, rounding up.
func NewShardedQueue(opts ...Option) *ShardedQueue {
	q := &ShardedQueue{
		shards:   defaultShards,
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}

	perShard := (q.capacity + q.shards - 1) / q.shards
	q.lanes = make([]chan Event, q.shards)
	for i := range q.lanes {
		q.lanes[i] = make(chan Event, perShard)
	}
	q.capacity = perShard * q.shards

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// ShardFor returns the shard index of horseID among n shards.
func ShardFor(horseID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(horseID))
	return int(h.Sum32() % uint32(n))
}

// Enqueue implements Queue.Enqueue.
func (q *ShardedQueue) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.lanes[ShardFor(e.HorseID, q.shards)] <- e:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(q.size())
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "shard_full")
		return ErrFull
	}
}

// Dequeue implements Queue.Dequeue.
func (q *ShardedQueue) Dequeue(ctx context.Context, shard int) (<-chan Event, error) {
	if shard < 0 || shard >= q.shards {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadShard, shard, q.shards)
	}
	lane := q.lanes[shard]

	// Wrap the lane to track dequeue metrics.
	out := make(chan Event)
	go func() {
		defer close(out)
		for event := range lane {
			select {
			case out <- event:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(q.size())
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Shards implements Queue.Shards.
func (q *ShardedQueue) Shards() int { return q.shards }

// Capacity implements Queue.Capacity.
func (q *ShardedQueue) Capacity() int { return q.capacity }

// Len implements Queue.Len.
func (q *ShardedQueue) Len(ctx context.Context) int {
	size := q.size()
	metrics.UpdateQueueSize(size)
	return size
}

func (q *ShardedQueue) size() int {
	n := 0
	for _, lane := range q.lanes {
		n += len(lane)
	}
	return n
}

// Close implements Queue.Close. Buffered events remain readable.
func (q *ShardedQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	for _, lane := range q.lanes {
		close(lane)
	}
	q.closed = true
	return nil
}

// IsClosed implements Queue.IsClosed.
func (q *ShardedQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
