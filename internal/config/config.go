// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/furlong/internal/domain/model"
	"github.com/okian/furlong/internal/domain/rating"
	"github.com/okian/furlong/internal/domain/scale"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the asynchronous ingest queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of queue shards, one worker each.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many (horse, race) keys the ingest filter remembers.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxTopLimit caps GET /ratings/statistics?top.
	MaxTopLimit int `koanf:"max_top_limit"`

	// DefaultTopN is used when the statistics request names no top.
	DefaultTopN int `koanf:"default_top_n"`

	// BatchConcurrency bounds parallel entrant updates of one race.
	BatchConcurrency int `koanf:"batch_concurrency"`

	// Store selects the record store backend: memory or postgres.
	Store string `koanf:"store"`

	// PostgresDSN is required when Store is postgres.
	PostgresDSN string `koanf:"postgres_dsn"`

	// StrictDuplicates rejects repeated races instead of ignoring them.
	StrictDuplicates bool `koanf:"strict_duplicates"`

	// CORSOrigins lists the allowed browser origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// Rating holds the update coefficients.
	Rating Rating `koanf:"rating"`

	// Scales maps scale names to conversion factors. Configured scales are
	// merged over the defaults.
	Scales map[string]float64 `koanf:"scales"`

	// Baselines replaces the baseline table when non-empty.
	Baselines []Baseline `koanf:"baselines"`

	// CategoryFactors and ConditionFactors override the default weights.
	CategoryFactors  map[string]float64 `koanf:"category_factors"`
	ConditionFactors map[string]float64 `koanf:"condition_factors"`
}

// Rating mirrors the scalar coefficients of rating.Params.
type Rating struct {
	Min               float64 `koanf:"min"`
	Max               float64 `koanf:"max"`
	SireWeight        float64 `koanf:"sire_weight"`
	DamWeight         float64 `koanf:"dam_weight"`
	ReferenceWeightKg float64 `koanf:"reference_weight_kg"`
	WeightPerKg       float64 `koanf:"weight_per_kg"`
	MinWeightKg       float64 `koanf:"min_weight_kg"`
	MaxWeightKg       float64 `koanf:"max_weight_kg"`
	KMin              float64 `koanf:"k_min"`
	KMax              float64 `koanf:"k_max"`
	ConfidenceCeiling float64 `koanf:"confidence_ceiling"`
	ConfidenceGain    float64 `koanf:"confidence_gain"`
}

// Baseline is one configured row of the baseline table.
type Baseline struct {
	Sex    string  `koanf:"sex"`
	MinAge int     `koanf:"min_age"`
	MaxAge int     `koanf:"max_age"`
	Rating float64 `koanf:"rating"`
}

// New creates a Config populated with defaults.
func New() *Config {
	p := rating.DefaultParams()
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		QueueSize:        100_000,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       50_000,
		MaxTopLimit:      100,
		DefaultTopN:      10,
		BatchConcurrency: 16,
		Store:            StoreMemory,
		CORSOrigins:      []string{"*"},
		Rating: Rating{
			Min:               p.MinRating,
			Max:               p.MaxRating,
			SireWeight:        p.SireWeight,
			DamWeight:         p.DamWeight,
			ReferenceWeightKg: p.ReferenceWeightKg,
			WeightPerKg:       p.WeightPerKg,
			MinWeightKg:       p.MinWeightKg,
			MaxWeightKg:       p.MaxWeightKg,
			KMin:              p.KMin,
			KMax:              p.KMax,
			ConfidenceCeiling: p.ConfidenceCeiling,
			ConfidenceGain:    p.ConfidenceGain,
		},
		Scales: scale.DefaultScales(),
	}
}

// RatingParams builds the engine coefficients. Factor overrides are merged
// over the defaults.
func (c *Config) RatingParams() rating.Params {
	p := rating.DefaultParams()
	p.MinRating, p.MaxRating = c.Rating.Min, c.Rating.Max
	p.SireWeight, p.DamWeight = c.Rating.SireWeight, c.Rating.DamWeight
	p.ReferenceWeightKg, p.WeightPerKg = c.Rating.ReferenceWeightKg, c.Rating.WeightPerKg
	p.MinWeightKg, p.MaxWeightKg = c.Rating.MinWeightKg, c.Rating.MaxWeightKg
	p.KMin, p.KMax = c.Rating.KMin, c.Rating.KMax
	p.ConfidenceCeiling, p.ConfidenceGain = c.Rating.ConfidenceCeiling, c.Rating.ConfidenceGain

	if len(c.Baselines) > 0 {
		p.Baselines = make([]rating.Baseline, 0, len(c.Baselines))
		for _, b := range c.Baselines {
			p.Baselines = append(p.Baselines, rating.Baseline{
				Sex:    model.Sex(strings.ToLower(b.Sex)),
				MinAge: b.MinAge,
				MaxAge: b.MaxAge,
				Rating: b.Rating,
			})
		}
	}
	for k, v := range c.CategoryFactors {
		p.CategoryFactors[model.RaceCategory(strings.ToLower(k))] = v
	}
	for k, v := range c.ConditionFactors {
		p.ConditionFactors[model.TrackCondition(strings.ToLower(k))] = v
	}
	return p
}

// Validate checks the configuration, including the derived rating
// coefficients and scale registry.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.MaxTopLimit <= 0:
		return fmt.Errorf("%w: max_top_limit must be positive", ErrInvalidConfig)
	case c.DefaultTopN < 0 || c.DefaultTopN > c.MaxTopLimit:
		return fmt.Errorf("%w: default_top_n must be within [0, max_top_limit]", ErrInvalidConfig)
	case c.BatchConcurrency <= 0:
		return fmt.Errorf("%w: batch_concurrency must be positive", ErrInvalidConfig)
	}

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}

	if err := c.RatingParams().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := scale.NewTable(c.Scales); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
