// Package worker applies queued race results, one worker per queue shard.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/furlong/internal/domain/model"
	"github.com/okian/furlong/pkg/logger"
	"github.com/okian/furlong/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultDrainTimeout = 30 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = model.RaceResult

// Applier applies one race result to its horse's rating.
type Applier interface {
	ApplyResult(ctx context.Context, res model.RaceResult) (bool, error)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context, shard int) (<-chan Event, error)
	Shards() int
	Close() error
}

// ShardWorker is the single consumer of one queue shard.
type ShardWorker struct {
	queue   Queue
	shard   int
	applier Applier
	name    string

	processed atomic.Int64
	failed    atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewShardWorker creates a worker for shard with configuration options.
func NewShardWorker(queue Queue, shard int, applier Applier, opts ...Option) *ShardWorker {
	w := &ShardWorker{
		queue:    queue,
		shard:    shard,
		applier:  applier,
		name:     "worker-" + strconv.Itoa(shard),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.String("worker", w.name), logger.Int("shard", shard))
	return w
}

// Run consumes the shard until it is closed and drained, ctx is done, or
// Shutdown is called.
func (w *ShardWorker) Run(ctx context.Context) {
	defer close(w.done)

	events, err := w.queue.Dequeue(ctx, w.shard)
	if err != nil {
		w.logger.Error(ctx, "cannot attach to shard", logger.Error(err))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, ev); err != nil {
				w.logger.Warn(ctx, "race result not applied",
					logger.String("horseID", ev.HorseID),
					logger.String("raceID", ev.RaceID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker without draining the shard.
func (w *ShardWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *ShardWorker) Done() <-chan struct{} { return w.done }

// Processed returns the number of results handled successfully.
func (w *ShardWorker) Processed() int64 { return w.processed.Load() }

// Failed returns the number of results that returned an error.
func (w *ShardWorker) Failed() int64 { return w.failed.Load() }

func (w *ShardWorker) process(ctx context.Context, ev Event) error { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	applied, err := w.applier.ApplyResult(ctx, ev)
	if err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_error")
		return fmt.Errorf("apply %s: %w", ev.Key(), err)
	}
	w.processed.Add(1)
	w.logger.Debug(ctx, "race result processed",
		logger.String("horseID", ev.HorseID),
		logger.String("raceID", ev.RaceID),
		logger.Bool("applied", applied),
	)
	return nil
}

// Pool runs one ShardWorker per queue shard.
type Pool struct {
	workers      []*ShardWorker
	queue        Queue
	drainTimeout time.Duration
	logger       logger.Logger
}

// NewPool creates a pool sized to the queue's shard count.
func NewPool(queue Queue, applier Applier, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:        queue,
		drainTimeout: defaultDrainTimeout,
		logger:       logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.workers = make([]*ShardWorker, queue.Shards())
	for i := range p.workers {
		p.workers[i] = NewShardWorker(queue, i, applier, WithLogger(p.logger))
	}
	metrics.UpdateWorkerCount(len(p.workers))
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed sums successful results across workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Failed sums failed results across workers.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Shutdown closes the queue, lets workers drain their shards and stops any
// worker still busy when the drain timeout or ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	drainCtx, cancel := context.WithTimeout(ctx, p.drainTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-drainCtx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
			if err := w.Shutdown(stopCtx); err != nil && firstErr == nil {
				firstErr = err
			}
			stop()
		}
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}
