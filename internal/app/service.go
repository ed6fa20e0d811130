// Package service provides the rating service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	eventqueue "github.com/okian/furlong/internal/adapters/mq/queue"
	workerpool "github.com/okian/furlong/internal/adapters/mq/worker"
	"github.com/okian/furlong/internal/adapters/repository"
	"github.com/okian/furlong/internal/domain/dedupe"
	"github.com/okian/furlong/internal/domain/model"
	"github.com/okian/furlong/internal/domain/rating"
	"github.com/okian/furlong/internal/domain/scale"
	"github.com/okian/furlong/internal/domain/stats"
	"github.com/okian/furlong/pkg/logger"
	"github.com/okian/furlong/pkg/metrics"
)

// Outcome is the per-entrant result of ApplyRace.
type Outcome struct {
	HorseID string
	Record  model.RatingRecord
	Applied bool
	Err     error
}

// Service owns the rating engine, the record store and the asynchronous
// ingest pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	engine     *rating.Engine
	store      repository.Store
	ownedStore *repository.MemoryStore
	deduper    dedupe.Deduper
	queue      eventqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	batchConcurrency int
	params           rating.Params
	scales           map[string]float64
	strictDuplicates bool
	now              func() time.Time

	// State
	started  bool
	stopping bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        100000,
		dedupeSize:       50000,
		batchConcurrency: 16,
		params:           rating.DefaultParams(),
		scales:           scale.DefaultScales(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the engine and starts the ingest workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting rating service...")

	table, err := scale.NewTable(s.scales)
	if err != nil {
		return fmt.Errorf("scale registry: %w", err)
	}
	engine, err := rating.NewEngine(s.params, table,
		rating.WithClock(s.now),
		rating.WithStrictDuplicates(s.strictDuplicates),
	)
	if err != nil {
		return fmt.Errorf("rating engine: %w", err)
	}
	s.engine = engine

	if s.store == nil {
		s.ownedStore = repository.NewMemoryStore(ctx)
		s.store = s.ownedStore
		s.logger.Info(ctx, "using in-memory store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewShardedQueue(
		eventqueue.WithShards(s.workerCount),
		eventqueue.WithCapacity(s.queueSize),
	)
	s.workerPool = workerpool.NewPool(s.queue, s, workerpool.WithPoolLogger(s.logger.Named("workers")))
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("scales", table.Len()),
		logger.Bool("strictDuplicates", s.strictDuplicates),
	)
	return nil
}

// Stop drains the ingest queue and releases owned resources. Workers keep
// applying queued results until the drain finishes.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	pool := s.workerPool
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping rating service...")
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownedStore != nil {
		_ = s.ownedStore.Close()
		s.ownedStore = nil
		s.store = nil
	}
	s.started = false
	s.stopping = false
	s.logger.Info(ctx, "rating service stopped")
}

// running returns the engine and store, or ErrNotStarted.
func (s *Service) running() (*rating.Engine, repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.engine, s.store, nil
}

// CalculateInitial registers h with its initial rating. A failed calculation
// stores nothing.
func (s *Service) CalculateInitial(ctx context.Context, h model.Horse) (model.RatingRecord, error) {
	engine, store, err := s.running()
	if err != nil {
		return model.RatingRecord{}, err
	}

	rec, err := engine.NewRecord(h)
	if err != nil {
		s.recordError(err)
		return model.RatingRecord{}, err
	}
	if err := store.Create(ctx, rec); err != nil {
		s.recordError(err)
		return model.RatingRecord{}, err
	}

	metrics.RecordRatingInitialized()
	s.logger.Debug(ctx, "horse registered",
		logger.String("horseID", rec.HorseID),
		logger.Float64("rating", rec.Rating),
		logger.Float64("confidence", rec.Confidence),
	)
	return rec, nil
}

// UpdateAfterRace applies res under the horse's lock. applied is false when
// the race was already part of the history.
func (s *Service) UpdateAfterRace(ctx context.Context, res model.RaceResult) (model.RatingRecord, bool, error) {
	engine, store, err := s.running()
	if err != nil {
		return model.RatingRecord{}, false, err
	}

	start := time.Now()
	var before float64
	rec, applied, err := store.Update(ctx, res.HorseID, func(cur model.RatingRecord) (model.RatingRecord, bool, error) {
		before = cur.Rating
		return engine.Apply(cur, res)
	})
	metrics.RecordUpdateLatency(float64(time.Since(start).Milliseconds()))

	if errors.Is(err, repository.ErrNotFound) {
		err = &rating.UnknownHorseError{HorseID: res.HorseID}
	}
	if err != nil {
		s.recordError(err)
		return model.RatingRecord{}, false, err
	}

	if applied {
		metrics.RecordResultApplied(rec.Rating - before)
	} else {
		metrics.RecordResultDuplicate()
	}
	s.logger.Debug(ctx, "race result processed",
		logger.String("horseID", res.HorseID),
		logger.String("raceID", res.RaceID),
		logger.Bool("applied", applied),
		logger.Float64("rating", rec.Rating),
	)
	return rec, applied, nil
}

// ApplyResult is the worker entry point for queued results. A failed result
// is forgotten by the ingest filter so it can be resubmitted.
func (s *Service) ApplyResult(ctx context.Context, res model.RaceResult) (bool, error) {
	_, applied, err := s.UpdateAfterRace(ctx, res)
	if err != nil {
		s.deduper.Unrecord(ctx, res.Key())
		return false, err
	}
	return applied, nil
}

// ApplyRace applies every entrant of one race concurrently. Entrants are
// independent: one failure does not stop the others. Results with an empty
// RaceID inherit raceID; a different RaceID is rejected.
func (s *Service) ApplyRace(ctx context.Context, raceID string, results []model.RaceResult) ([]Outcome, error) {
	if _, _, err := s.running(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	limit := s.batchConcurrency
	s.mu.RUnlock()

	out := make([]Outcome, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, res := range results {
		if res.RaceID == "" {
			res.RaceID = raceID
		}
		out[i].HorseID = res.HorseID
		if res.RaceID != raceID {
			out[i].Err = &rating.InvalidInputError{HorseID: res.HorseID, Field: "race_id", Reason: "does not match race " + raceID}
			continue
		}
		g.Go(func() error {
			rec, applied, err := s.UpdateAfterRace(gctx, res)
			out[i].Record, out[i].Applied, out[i].Err = rec, applied, err
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Enqueue admits res for asynchronous application. duplicate is true when
// the same (horse, race) was already admitted. Returns ErrBackpressure when
// the horse's shard is full.
func (s *Service) Enqueue(ctx context.Context, res model.RaceResult) (bool, error) {
	engine, _, err := s.running()
	if err != nil {
		return false, err
	}
	if err := engine.Validate(res); err != nil {
		s.recordError(err)
		return false, err
	}

	key := res.Key()
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordResultDuplicate()
		s.logger.Debug(ctx, "duplicate result skipped",
			logger.String("horseID", res.HorseID),
			logger.String("raceID", res.RaceID),
		)
		return true, nil
	}

	if err := s.queue.Enqueue(ctx, res); err != nil {
		s.deduper.Unrecord(ctx, key)
		if errors.Is(err, eventqueue.ErrFull) {
			return false, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return false, err
	}
	return false, nil
}

// Rating returns the current record of horseID.
func (s *Service) Rating(ctx context.Context, horseID string) (model.RatingRecord, error) {
	_, store, err := s.running()
	if err != nil {
		return model.RatingRecord{}, err
	}
	rec, err := store.Get(ctx, horseID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.RatingRecord{}, &rating.UnknownHorseError{HorseID: horseID}
	}
	return rec, err
}

// History returns the update history of horseID, oldest first.
func (s *Service) History(ctx context.Context, horseID string) ([]model.HistoryEntry, error) {
	rec, err := s.Rating(ctx, horseID)
	if err != nil {
		return nil, err
	}
	return rec.History, nil
}

// Statistics summarizes every registered horse.
func (s *Service) Statistics(ctx context.Context, topN int) (stats.Summary, error) {
	engine, store, err := s.running()
	if err != nil {
		return stats.Summary{}, err
	}
	records, err := store.Snapshot(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	metrics.UpdateHorsesTotal(len(records))
	return engine.Summarize(records, topN), nil
}

// Convert maps a local rating onto scaleName.
func (s *Service) Convert(ctx context.Context, r float64, scaleName string) (float64, error) {
	engine, _, err := s.running()
	if err != nil {
		return 0, err
	}
	v, err := engine.Convert(r, scaleName)
	if err != nil {
		s.recordError(err)
		return 0, err
	}
	metrics.RecordConversion(scaleName)
	return v, nil
}

// Invert maps a value on scaleName back to the local scale.
func (s *Service) Invert(ctx context.Context, v float64, scaleName string) (float64, error) {
	engine, _, err := s.running()
	if err != nil {
		return 0, err
	}
	r, err := engine.Invert(v, scaleName)
	if err != nil {
		s.recordError(err)
	}
	return r, err
}

// ConvertAll maps a local rating onto every registered scale.
func (s *Service) ConvertAll(ctx context.Context, r float64) ([]scale.Value, error) {
	engine, _, err := s.running()
	if err != nil {
		return nil, err
	}
	return engine.ConvertAll(r), nil
}

// Scales lists the registered conversion scales.
func (s *Service) Scales(ctx context.Context) ([]scale.Scale, error) {
	engine, _, err := s.running()
	if err != nil {
		return nil, err
	}
	return engine.Scales(), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	out := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		out["queueLength"] = queueLen
		out["queueCapacity"] = s.queue.Capacity()
		out["dedupeEntries"] = s.deduper.Size()
		out["processed"] = s.workerPool.Processed()
		out["failed"] = s.workerPool.Failed()
		if n, err := s.store.Count(ctx); err == nil {
			out["horses"] = n
			metrics.UpdateHorsesTotal(n)
		}
		metrics.UpdateQueueSize(queueLen)
	}
	return out
}

func (s *Service) recordError(err error) {
	metrics.RecordRatingError(ErrorKind(err))
}

// ErrorKind classifies err into the stable codes used by metrics and the
// HTTP error envelope.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, rating.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, rating.ErrUnknownHorse):
		return "unknown_horse"
	case errors.Is(err, scale.ErrUnknownScale):
		return "unknown_scale"
	case errors.Is(err, rating.ErrDuplicateRace):
		return "duplicate_race"
	case errors.Is(err, repository.ErrAlreadyExists):
		return "already_registered"
	case errors.Is(err, ErrBackpressure):
		return "backpressure"
	default:
		return "internal_error"
	}
}
