package service

import (
	"time"

	"github.com/okian/furlong/internal/adapters/repository"
	"github.com/okian/furlong/internal/domain/rating"
	"github.com/okian/furlong/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of queue shards, one worker each.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the total capacity of the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many result keys the ingest filter remembers.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithBatchConcurrency bounds the parallel updates of one ApplyRace call.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore injects the record store. Without it Start creates a MemoryStore.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRatingParams replaces the default rating coefficients.
func WithRatingParams(params rating.Params) Option {
	return func(s *Service) {
		s.params = params
	}
}

// WithScales replaces the default conversion registry.
func WithScales(scales map[string]float64) Option {
	return func(s *Service) {
		if len(scales) > 0 {
			s.scales = scales
		}
	}
}

// WithStrictDuplicates makes repeated races fail instead of being ignored.
func WithStrictDuplicates(strict bool) Option {
	return func(s *Service) {
		s.strictDuplicates = strict
	}
}

// WithClock sets the time source for results without a race time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
