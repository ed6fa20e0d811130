package rating

import (
	"github.com/okian/furlong/internal/domain/model"
	"github.com/okian/furlong/internal/domain/scale"
	"github.com/okian/furlong/internal/domain/stats"
)

// Engine composes the calculator, updater, converter and aggregator behind
// one stateless facade. It is safe for concurrent use; callers own the
// per-horse serialization of read-modify-write cycles.
type Engine struct {
	calc       *Calculator
	updater    *Updater
	converter  *scale.Converter
	aggregator *stats.Aggregator
}

// NewEngine validates params and wires the components.
func NewEngine(params Params, table *scale.Table, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		table = scale.MustTable(scale.DefaultScales())
	}
	return &Engine{
		calc:       NewCalculator(params),
		updater:    NewUpdater(params, opts...),
		converter:  scale.NewConverter(table),
		aggregator: stats.NewAggregator(),
	}, nil
}

// ComputeInitial returns the initial rating and confidence for h.
func (e *Engine) ComputeInitial(h model.Horse) (float64, float64, error) {
	return e.calc.ComputeInitial(h)
}

// NewRecord builds the first rating record of h, stamped with the engine
// clock as its registration time.
func (e *Engine) NewRecord(h model.Horse) (model.RatingRecord, error) {
	r, c, err := e.calc.ComputeInitial(h)
	if err != nil {
		return model.RatingRecord{}, err
	}
	return model.RatingRecord{
		HorseID:     h.ID,
		Rating:      r,
		Confidence:  c,
		LastUpdated: e.updater.now(),
		History:     []model.HistoryEntry{},
	}, nil
}

// Apply applies one race result; see Updater.Apply.
func (e *Engine) Apply(rec model.RatingRecord, res model.RaceResult) (model.RatingRecord, bool, error) {
	return e.updater.Apply(rec, res)
}

// Validate checks a race result before it is queued.
func (e *Engine) Validate(res model.RaceResult) error {
	return e.updater.Validate(res)
}

// Convert maps a local rating onto scaleName.
func (e *Engine) Convert(rating float64, scaleName string) (float64, error) {
	return e.converter.Convert(rating, scaleName)
}

// Invert maps a value on scaleName back to the local scale.
func (e *Engine) Invert(value float64, scaleName string) (float64, error) {
	return e.converter.Invert(value, scaleName)
}

// ConvertAll maps a local rating onto every registered scale.
func (e *Engine) ConvertAll(rating float64) []scale.Value {
	return e.converter.ConvertAll(rating)
}

// Scales lists the registered scales.
func (e *Engine) Scales() []scale.Scale {
	return e.converter.Table().Scales()
}

// Summarize aggregates records.
func (e *Engine) Summarize(records []model.RatingRecord, topN int) stats.Summary {
	return e.aggregator.Summarize(records, topN)
}
