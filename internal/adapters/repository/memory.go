package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/furlong/internal/domain/model"
	"github.com/okian/furlong/pkg/metrics"
)

// slot owns one horse's record. Its mutex serializes read-modify-write
// cycles for that horse only.
type slot struct {
	mu  sync.Mutex
	rec model.RatingRecord
}

// MemoryStore is an in-memory Store with one lock per horse.
type MemoryStore struct {
	mu    sync.RWMutex // guards the map, not the records
	slots map[string]*slot

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs a memory store with configuration options.
// The background metrics updater stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		slots:                 make(map[string]*slot),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops background goroutines.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Create implements Store.Create.
func (s *MemoryStore) Create(ctx context.Context, rec model.RatingRecord) error {
	start := time.Now()
	defer func() { metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[rec.HorseID]; ok {
		metrics.RecordErrorByComponent("repository", "already_exists")
		return ErrAlreadyExists
	}
	s.slots[rec.HorseID] = &slot{rec: rec.Clone()}
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, horseID string) (model.RatingRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds())) }()

	sl, ok := s.lookup(horseID)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.RatingRecord{}, ErrNotFound
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.rec.Clone(), nil
}

// Update implements Store.Update. fn runs with only this horse locked.
func (s *MemoryStore) Update(ctx context.Context, horseID string, fn UpdateFunc) (model.RatingRecord, bool, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	sl, ok := s.lookup(horseID)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.RatingRecord{}, false, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return model.RatingRecord{}, false, err
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	next, changed, err := fn(sl.rec.Clone())
	if err != nil {
		return sl.rec.Clone(), false, err
	}
	if !changed {
		return sl.rec.Clone(), false, nil
	}
	sl.rec = next.Clone()
	return next, true, nil
}

// Snapshot implements Store.Snapshot. Records are ordered by horse id.
func (s *MemoryStore) Snapshot(ctx context.Context) ([]model.RatingRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds())) }()

	s.mu.RLock()
	slots := make([]*slot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.mu.RUnlock()

	out := make([]model.RatingRecord, 0, len(slots))
	for _, sl := range slots {
		sl.mu.Lock()
		rec := sl.rec
		sl.mu.Unlock()
		rec.History = nil
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HorseID < out[j].HorseID })
	return out, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots), nil
}

func (s *MemoryStore) lookup(horseID string) (*slot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[horseID]
	return sl, ok
}

// startMetricsUpdater publishes the horse count every metricsUpdateInterval.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				n, _ := s.Count(ctx)
				metrics.UpdateHorsesTotal(n)
			}
		}
	}()
}
