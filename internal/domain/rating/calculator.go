package rating

import (
	"strings"

	"github.com/okian/furlong/internal/domain/model"
)

const (
	baseConfidence      = 10
	confidencePerParent = 10
)

// blendWeights is the share of the initial rating taken from pedigree,
// indexed by the number of known parents.
var blendWeights = [3]float64{0, 0.5, 0.85}

// Calculator derives the initial rating and confidence of an unraced horse.
type Calculator struct {
	params Params
}

// NewCalculator creates a calculator over validated params.
func NewCalculator(params Params) *Calculator {
	return &Calculator{params: params}
}

// ComputeInitial blends the sex/age baseline with the weighted mean of the
// known parent ratings. Confidence stays low: 10 plus 10 per known parent.
func (c *Calculator) ComputeInitial(h model.Horse) (float64, float64, error) {
	if err := c.validate(h); err != nil {
		return 0, 0, err
	}
	base, ok := c.params.baseline(h.Sex, h.Age)
	if !ok {
		return 0, 0, invalid(h.ID, "age", "has no baseline for sex "+string(h.Sex))
	}

	var sum, weight float64
	parents := 0
	if h.SireRating != nil {
		sum += *h.SireRating * c.params.SireWeight
		weight += c.params.SireWeight
		parents++
	}
	if h.DamRating != nil {
		sum += *h.DamRating * c.params.DamWeight
		weight += c.params.DamWeight
		parents++
	}

	r := base
	if parents > 0 {
		pedigree := sum / weight
		w := blendWeights[parents]
		r = (1-w)*base + w*pedigree
	}
	confidence := float64(baseConfidence + confidencePerParent*parents)
	return c.params.clamp(r), confidence, nil
}

func (c *Calculator) validate(h model.Horse) error {
	switch {
	case strings.TrimSpace(h.ID) == "":
		return invalid(h.ID, "id", "must not be empty")
	case h.Age <= 0:
		return invalid(h.ID, "age", "must be positive")
	case !h.Sex.Valid():
		return invalid(h.ID, "sex", "must be male, female or gelding")
	case h.SireRating != nil && !c.params.inDomain(*h.SireRating):
		return invalid(h.ID, "sire_rating", "outside rating domain")
	case h.DamRating != nil && !c.params.inDomain(*h.DamRating):
		return invalid(h.ID, "dam_rating", "outside rating domain")
	}
	return nil
}
