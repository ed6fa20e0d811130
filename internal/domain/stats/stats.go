// Package stats summarizes a population of rating records.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/okian/furlong/internal/domain/model"
)

// Bucket counts ratings within one histogram band.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`

	lower float64
	upper float64
}

func (b Bucket) contains(r float64) bool {
	return r >= b.lower && r < b.upper
}

// Entry is one horse in the top list.
type Entry struct {
	Rank        int       `json:"rank"`
	HorseID     string    `json:"horse_id"`
	Rating      float64   `json:"rating"`
	Confidence  float64   `json:"confidence"`
	LastUpdated time.Time `json:"last_updated"`
}

// Summary is the aggregate view over a set of records.
type Summary struct {
	Count          int      `json:"count"`
	MeanRating     float64  `json:"mean_rating"`
	MeanConfidence float64  `json:"mean_confidence"`
	Histogram      []Bucket `json:"histogram"`
	Top            []Entry  `json:"top"`
}

// Aggregator is stateless and safe for concurrent use.
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// buckets returns the histogram bands, highest first; together they cover
// the whole real line so every record lands in exactly one.
func buckets() []Bucket {
	return []Bucket{
		{Label: "90+", lower: 90, upper: math.Inf(1)},
		{Label: "80-89", lower: 80, upper: 90},
		{Label: "70-79", lower: 70, upper: 80},
		{Label: "60-69", lower: 60, upper: 70},
		{Label: "<60", lower: math.Inf(-1), upper: 60},
	}
}

// Summarize computes means, the rating histogram and the topN best records.
// Ties are broken by confidence desc, then LastUpdated asc, then horse id.
func (a *Aggregator) Summarize(records []model.RatingRecord, topN int) Summary {
	s := Summary{Count: len(records), Histogram: buckets(), Top: []Entry{}}
	if len(records) == 0 {
		return s
	}

	var sumR, sumC float64
	for _, r := range records {
		sumR += r.Rating
		sumC += r.Confidence
		for i := range s.Histogram {
			if s.Histogram[i].contains(r.Rating) {
				s.Histogram[i].Count++
				break
			}
		}
	}
	s.MeanRating = sumR / float64(len(records))
	s.MeanConfidence = sumC / float64(len(records))

	if topN <= 0 {
		return s
	}
	ranked := make([]model.RatingRecord, len(records))
	copy(ranked, records)
	sort.Slice(ranked, func(i, j int) bool { return better(ranked[i], ranked[j]) })
	if topN > len(ranked) {
		topN = len(ranked)
	}
	s.Top = make([]Entry, topN)
	for i := 0; i < topN; i++ {
		r := ranked[i]
		s.Top[i] = Entry{
			Rank:        i + 1,
			HorseID:     r.HorseID,
			Rating:      r.Rating,
			Confidence:  r.Confidence,
			LastUpdated: r.LastUpdated,
		}
	}
	return s
}

func better(a, b model.RatingRecord) bool {
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if !a.LastUpdated.Equal(b.LastUpdated) {
		return a.LastUpdated.Before(b.LastUpdated)
	}
	return a.HorseID < b.HorseID
}
