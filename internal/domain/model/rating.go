// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"time"
)

// Sex is the categorical sex used to pick a baseline rating.
type Sex string

// Known sexes.
const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexGelding Sex = "gelding"
)

// Valid reports whether s is a known sex.
func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexGelding:
		return true
	}
	return false
}

// Horse carries the biographical and pedigree inputs of an initial rating.
type Horse struct {
	ID         string
	Name       string
	Age        int      // years
	Sex        Sex      // baseline category
	SireRating *float64 // nil when unknown
	DamRating  *float64 // nil when unknown
}

// HistoryEntry is the state of a record before the update caused by RaceID.
type HistoryEntry struct {
	Rating     float64
	Confidence float64
	RaceID     string
	RecordedAt time.Time
}

// RatingRecord is the rating state owned by exactly one horse.
type RatingRecord struct {
	HorseID         string
	Rating          float64
	Confidence      float64
	RacesConsidered int
	LastUpdated     time.Time
	History         []HistoryEntry
}

// HasRace reports whether raceID already caused an update of r.
func (r *RatingRecord) HasRace(raceID string) bool {
	return slices.ContainsFunc(r.History, func(h HistoryEntry) bool { return h.RaceID == raceID })
}

// Clone returns a deep copy; History is never shared between copies.
func (r *RatingRecord) Clone() RatingRecord {
	out := *r
	out.History = slices.Clone(r.History)
	return out
}
