package worker

import (
	"time"

	"github.com/okian/furlong/pkg/logger"
)

// Option applies a configuration option to the ShardWorker.
type Option func(*ShardWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *ShardWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *ShardWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// PoolOption applies a configuration option to the Pool.
type PoolOption func(*Pool)

// WithDrainTimeout bounds how long Shutdown waits for queued results.
func WithDrainTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.drainTimeout = d
		}
	}
}

// WithPoolLogger sets a custom logger for the pool and its workers.
func WithPoolLogger(logger logger.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}
