// Package seeding drives a running rating service over HTTP: it registers a
// population of horses, runs race cards against them and checks that the
// resulting statistics are consistent.
package seeding

import "time"

// Submission modes.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Horses    int           // Number of horses to register
	Races     int           // Number of races to run
	FieldSize int           // Runners per race, capped at Horses
	Workers   int           // Concurrent HTTP requests
	Timeout   time.Duration // Per-request timeout
	Mode      string        // ModeSync posts whole races, ModeAsync queues each result
	Resubmit  bool          // Send every queued result twice
	Seed      uint64        // Seed for the attribute generator
	TopN      int           // Top entries to fetch and verify
	Settle    time.Duration // How long to wait for the async queue to drain
}

// Stats holds run statistics.
type Stats struct {
	HorsesRegistered int
	HorsesFailed     int
	ResultsSubmitted int
	ResultsAccepted  int
	ResultsDuplicate int
	ResultsFailed    int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// Horse is one generated horse.
type Horse struct {
	ID         string   `json:"-"`
	Name       string   `json:"name"`
	Age        int      `json:"age"`
	Sex        string   `json:"sex"`
	SireRating *float64 `json:"sire_rating,omitempty"`
	DamRating  *float64 `json:"dam_rating,omitempty"`
}

// Result is one entrant's finish in the wire format of the rating API.
type Result struct {
	HorseID        string  `json:"horse_id"`
	RaceID         string  `json:"race_id"`
	Position       int     `json:"position"`
	Weight         float64 `json:"weight"`
	Distance       int     `json:"distance"`
	RaceType       string  `json:"race_type"`
	TrackCondition string  `json:"track_condition"`
	FieldSize      int     `json:"field_size"`
	RunAt          string  `json:"run_at,omitempty"`
}

// Race is one generated race card.
type Race struct {
	ID      string
	Results []Result
}

// Plan is the full generated workload.
type Plan struct {
	Horses []Horse
	Races  []Race
}

// ResultCount returns the number of entrants across all races.
func (p Plan) ResultCount() int {
	n := 0
	for _, r := range p.Races {
		n += len(r.Results)
	}
	return n
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type batchResponse struct {
	RaceID  string `json:"race_id"`
	Applied int    `json:"applied"`
	Failed  int    `json:"failed"`
}

type ratingResponse struct {
	HorseID         string  `json:"horse_id"`
	Rating          float64 `json:"rating"`
	Confidence      float64 `json:"confidence"`
	RacesConsidered int     `json:"races_considered"`
}

type serviceStats struct {
	QueueLength int   `json:"queueLength"`
	Processed   int64 `json:"processed"`
	Failed      int64 `json:"failed"`
}
