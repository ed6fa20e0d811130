// Package rating computes initial ratings from pedigree and updates them from
// race results.
package rating

import (
	"fmt"
	"math"

	"github.com/okian/furlong/internal/domain/model"
)

// Baseline is one row of the baseline table: horses of Sex aged within
// [MinAge, MaxAge] start from Rating. MaxAge 0 means no upper bound.
type Baseline struct {
	Sex    model.Sex
	MinAge int
	MaxAge int
	Rating float64
}

func (b Baseline) matches(sex model.Sex, age int) bool {
	return b.Sex == sex && age >= b.MinAge && (b.MaxAge == 0 || age <= b.MaxAge)
}

// Params holds every coefficient of the calculator and updater.
type Params struct {
	MinRating float64
	MaxRating float64

	SireWeight float64
	DamWeight  float64

	// Carried weights outside [MinWeightKg, MaxWeightKg] are rejected.
	ReferenceWeightKg float64
	WeightPerKg       float64
	MinWeightKg       float64
	MaxWeightKg       float64

	KMin float64
	KMax float64

	ConfidenceCeiling float64
	ConfidenceGain    float64

	Baselines        []Baseline
	CategoryFactors  map[model.RaceCategory]float64
	ConditionFactors map[model.TrackCondition]float64
	BandFactors      map[model.DistanceBand]float64
}

// DefaultBaselines is the baseline table used when none is configured.
func DefaultBaselines() []Baseline {
	return []Baseline{
		{Sex: model.SexMale, MinAge: 1, MaxAge: 2, Rating: 55},
		{Sex: model.SexMale, MinAge: 3, MaxAge: 3, Rating: 62},
		{Sex: model.SexMale, MinAge: 4, Rating: 65},
		{Sex: model.SexFemale, MinAge: 1, MaxAge: 2, Rating: 52},
		{Sex: model.SexFemale, MinAge: 3, MaxAge: 3, Rating: 58},
		{Sex: model.SexFemale, MinAge: 4, Rating: 61},
		{Sex: model.SexGelding, MinAge: 1, MaxAge: 2, Rating: 53},
		{Sex: model.SexGelding, MinAge: 3, MaxAge: 3, Rating: 60},
		{Sex: model.SexGelding, MinAge: 4, Rating: 63},
	}
}

// DefaultCategoryFactors weights results by race class.
func DefaultCategoryFactors() map[model.RaceCategory]float64 {
	return map[model.RaceCategory]float64{
		model.CategoryMaiden:   0.8,
		model.CategoryFlat:     1.0,
		model.CategoryHandicap: 1.0,
		model.CategoryListed:   1.15,
		model.CategoryGroup:    1.3,
	}
}

// DefaultConditionFactors damps results on testing ground.
func DefaultConditionFactors() map[model.TrackCondition]float64 {
	return map[model.TrackCondition]float64{
		model.ConditionFirm:  1.0,
		model.ConditionGood:  1.0,
		model.ConditionSoft:  0.95,
		model.ConditionHeavy: 0.9,
	}
}

// DefaultBandFactors damps results at the distance extremes.
func DefaultBandFactors() map[model.DistanceBand]float64 {
	return map[model.DistanceBand]float64{
		model.BandSprint:  0.95,
		model.BandMile:    1.0,
		model.BandMiddle:  1.0,
		model.BandStaying: 0.95,
	}
}

// DefaultParams returns the production coefficients.
func DefaultParams() Params {
	return Params{
		MinRating:         20,
		MaxRating:         150,
		SireWeight:        0.6,
		DamWeight:         0.4,
		ReferenceWeightKg: 57,
		WeightPerKg:       0.02,
		MinWeightKg:       40,
		MaxWeightKg:       75,
		KMin:              2,
		KMax:              20,
		ConfidenceCeiling: 95,
		ConfidenceGain:    0.12,
		Baselines:         DefaultBaselines(),
		CategoryFactors:   DefaultCategoryFactors(),
		ConditionFactors:  DefaultConditionFactors(),
		BandFactors:       DefaultBandFactors(),
	}
}

// Validate checks the coefficients for internal consistency.
func (p Params) Validate() error {
	switch {
	case !finite(p.MinRating, p.MaxRating) || p.MinRating >= p.MaxRating:
		return fmt.Errorf("%w: rating domain [%v, %v]", ErrInvalidParams, p.MinRating, p.MaxRating)
	case p.SireWeight <= 0 || p.DamWeight <= 0:
		return fmt.Errorf("%w: parent weights must be positive", ErrInvalidParams)
	case p.ReferenceWeightKg <= 0 || p.WeightPerKg < 0:
		return fmt.Errorf("%w: weight coefficients", ErrInvalidParams)
	case p.MinWeightKg <= 0 || p.MinWeightKg > p.ReferenceWeightKg || p.MaxWeightKg < p.ReferenceWeightKg:
		return fmt.Errorf("%w: weight range [%v, %v] must contain the reference weight %v",
			ErrInvalidParams, p.MinWeightKg, p.MaxWeightKg, p.ReferenceWeightKg)
	case p.KMin < 0 || p.KMax < p.KMin:
		return fmt.Errorf("%w: k-factor range [%v, %v]", ErrInvalidParams, p.KMin, p.KMax)
	case p.ConfidenceCeiling <= 0 || p.ConfidenceCeiling > 100:
		return fmt.Errorf("%w: confidence ceiling %v", ErrInvalidParams, p.ConfidenceCeiling)
	case p.ConfidenceGain <= 0 || p.ConfidenceGain > 1:
		return fmt.Errorf("%w: confidence gain %v", ErrInvalidParams, p.ConfidenceGain)
	case len(p.Baselines) == 0:
		return fmt.Errorf("%w: empty baseline table", ErrInvalidParams)
	}
	for _, b := range p.Baselines {
		if !b.Sex.Valid() || b.MinAge < 0 || (b.MaxAge != 0 && b.MaxAge < b.MinAge) {
			return fmt.Errorf("%w: baseline %+v", ErrInvalidParams, b)
		}
		if b.Rating < p.MinRating || b.Rating > p.MaxRating {
			return fmt.Errorf("%w: baseline rating %v outside domain", ErrInvalidParams, b.Rating)
		}
	}
	for _, f := range []map[string]float64{
		stringKeys(p.CategoryFactors), stringKeys(p.ConditionFactors), stringKeys(p.BandFactors),
	} {
		for k, v := range f {
			if v <= 0 || !finite(v) {
				return fmt.Errorf("%w: factor %s=%v", ErrInvalidParams, k, v)
			}
		}
	}
	return nil
}

func (p Params) baseline(sex model.Sex, age int) (float64, bool) {
	for _, b := range p.Baselines {
		if b.matches(sex, age) {
			return b.Rating, true
		}
	}
	return 0, false
}

func (p Params) clamp(r float64) float64 {
	return math.Min(p.MaxRating, math.Max(p.MinRating, r))
}

func (p Params) inDomain(r float64) bool {
	return finite(r) && r >= p.MinRating && r <= p.MaxRating
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func stringKeys[K ~string](m map[K]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}
