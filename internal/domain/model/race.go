package model

import "time"

// RaceCategory classifies the race for weighting its result.
type RaceCategory string

// Known race categories.
const (
	CategoryFlat     RaceCategory = "flat"
	CategoryHandicap RaceCategory = "handicap"
	CategoryMaiden   RaceCategory = "maiden"
	CategoryListed   RaceCategory = "listed"
	CategoryGroup    RaceCategory = "group"
)

// TrackCondition is the going on race day.
type TrackCondition string

// Known track conditions.
const (
	ConditionFirm  TrackCondition = "firm"
	ConditionGood  TrackCondition = "good"
	ConditionSoft  TrackCondition = "soft"
	ConditionHeavy TrackCondition = "heavy"
)

// DistanceBand groups race distances.
type DistanceBand string

// Distance bands, upper bounds exclusive.
const (
	BandSprint  DistanceBand = "sprint"  // < 1400m
	BandMile    DistanceBand = "mile"    // < 1900m
	BandMiddle  DistanceBand = "middle"  // < 2600m
	BandStaying DistanceBand = "staying" // everything longer
)

// BandFor returns the distance band of meters.
func BandFor(meters int) DistanceBand {
	switch {
	case meters < 1400:
		return BandSprint
	case meters < 1900:
		return BandMile
	case meters < 2600:
		return BandMiddle
	default:
		return BandStaying
	}
}

// RaceResult is one immutable record of how a horse performed in one race.
type RaceResult struct {
	HorseID        string
	RaceID         string
	Position       int // 1 = win
	WeightKg       float64
	DistanceM      int
	Category       RaceCategory
	TrackCondition TrackCondition
	FieldSize      int
	RunAt          time.Time // zero when unknown
}

// Key identifies the (horse, race) pair used for idempotency.
func (r RaceResult) Key() string {
	return r.HorseID + "/" + r.RaceID
}
