package rating

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/furlong/internal/domain/model"
)

// Updater applies race results to rating records.
type Updater struct {
	params Params
	now    func() time.Time
	strict bool
}

// NewUpdater creates an updater over validated params.
func NewUpdater(params Params, opts ...Option) *Updater {
	u := &Updater{params: params, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Apply returns the record updated by result and whether it changed.
// The input record is never modified. A race already in the history yields
// the record unchanged with applied=false, or a DuplicateRaceError in strict
// mode.
func (u *Updater) Apply(rec model.RatingRecord, res model.RaceResult) (model.RatingRecord, bool, error) {
	if rec.HorseID != res.HorseID {
		return rec, false, &UnknownHorseError{HorseID: res.HorseID, RecordHorseID: rec.HorseID}
	}
	if err := u.Validate(res); err != nil {
		return rec, false, err
	}
	if rec.HasRace(res.RaceID) {
		if u.strict {
			return rec, false, &DuplicateRaceError{HorseID: res.HorseID, RaceID: res.RaceID}
		}
		return rec, false, nil
	}

	at := res.RunAt
	if at.IsZero() {
		at = u.now()
	}

	out := rec.Clone()
	out.History = append(out.History, model.HistoryEntry{
		Rating:     rec.Rating,
		Confidence: rec.Confidence,
		RaceID:     res.RaceID,
		RecordedAt: at,
	})
	out.Rating = u.params.clamp(rec.Rating + u.Delta(rec.Rating, rec.Confidence, res))
	out.Confidence = u.nextConfidence(rec.Confidence)
	out.RacesConsidered++
	out.LastUpdated = at
	return out, true, nil
}

// Delta is the unclamped rating change for a horse rated r with confidence
// conf finishing as described by res.
func (u *Updater) Delta(r, conf float64, res model.RaceResult) float64 {
	p := u.params
	strength := (p.clamp(r) - p.MinRating) / (p.MaxRating - p.MinRating)

	pos := 0.0
	quality := 1.0
	if res.FieldSize > 1 {
		span := float64(res.FieldSize - 1)
		expected := 1 + span*(1-strength)
		pos = (expected - float64(res.Position)) / span
		quality = 1 - float64(res.Position-1)/span
	}
	perf := pos + weightAdjustment(pos, (res.WeightKg-p.ReferenceWeightKg)*p.WeightPerKg*quality)

	factor := p.CategoryFactors[res.Category] *
		p.ConditionFactors[res.TrackCondition] *
		bandFactor(p.BandFactors, model.BandFor(res.DistanceM))

	return u.kFactor(conf) * perf * factor
}

// weightAdjustment limits adj to half of |pos| when the two disagree in
// sign, so carried weight never reverses the direction of a finish.
func weightAdjustment(pos, adj float64) float64 {
	if pos == 0 || adj == 0 || (pos > 0) == (adj > 0) {
		return adj
	}
	return math.Copysign(math.Min(math.Abs(adj), math.Abs(pos)/2), adj)
}

func (u *Updater) kFactor(conf float64) float64 {
	c := math.Min(100, math.Max(0, conf))
	return u.params.KMin + (u.params.KMax-u.params.KMin)*(1-c/100)
}

func (u *Updater) nextConfidence(c float64) float64 {
	next := c + (u.params.ConfidenceCeiling-c)*u.params.ConfidenceGain
	return math.Min(100, math.Max(c, next))
}

// Validate checks res without touching any record.
func (u *Updater) Validate(res model.RaceResult) error {
	id := res.HorseID
	switch {
	case strings.TrimSpace(res.HorseID) == "":
		return invalid(id, "horse_id", "must not be empty")
	case strings.TrimSpace(res.RaceID) == "":
		return invalid(id, "race_id", "must not be empty")
	case res.FieldSize < 1:
		return invalid(id, "field_size", "must be at least 1")
	case res.Position < 1:
		return invalid(id, "position", "must be at least 1")
	case res.Position > res.FieldSize:
		return invalid(id, "position", "exceeds field size")
	case !finite(res.WeightKg) || res.WeightKg < u.params.MinWeightKg || res.WeightKg > u.params.MaxWeightKg:
		return invalid(id, "weight", fmt.Sprintf("must be within [%g, %g] kg", u.params.MinWeightKg, u.params.MaxWeightKg))
	case res.DistanceM <= 0:
		return invalid(id, "distance", "must be positive")
	}
	if _, ok := u.params.CategoryFactors[res.Category]; !ok {
		return invalid(id, "race_type", "unknown category "+string(res.Category))
	}
	if _, ok := u.params.ConditionFactors[res.TrackCondition]; !ok {
		return invalid(id, "track_condition", "unknown condition "+string(res.TrackCondition))
	}
	return nil
}

func bandFactor(m map[model.DistanceBand]float64, b model.DistanceBand) float64 {
	if f, ok := m[b]; ok {
		return f
	}
	return 1
}
