package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/furlong/internal/domain/model"
)

const maxBodyBytes = 1 << 20

// initialRequest mirrors the OpenAPI schema for POST /ratings/calculate-initial/{horseId}.
type initialRequest struct {
	Name       string   `json:"name"`
	Age        int      `json:"age"`
	Sex        string   `json:"sex"`
	SireRating *float64 `json:"sire_rating"`
	DamRating  *float64 `json:"dam_rating"`
}

func (req initialRequest) horse(id string) model.Horse {
	return model.Horse{
		ID:         id,
		Name:       req.Name,
		Age:        req.Age,
		Sex:        model.Sex(strings.ToLower(strings.TrimSpace(req.Sex))),
		SireRating: req.SireRating,
		DamRating:  req.DamRating,
	}
}

// raceResultRequest mirrors the OpenAPI RaceResult schema.
type raceResultRequest struct {
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

// result converts the request; domain validation happens in the engine.
func (req raceResultRequest) result() (model.RaceResult, error) {
	res := model.RaceResult{
		HorseID:        strings.TrimSpace(req.HorseID),
		RaceID:         strings.TrimSpace(req.RaceID),
		Position:       req.Position,
		WeightKg:       req.Weight,
		DistanceM:      req.Distance,
		Category:       model.RaceCategory(strings.ToLower(strings.TrimSpace(req.RaceType))),
		TrackCondition: model.TrackCondition(strings.ToLower(strings.TrimSpace(req.TrackCondition))),
		FieldSize:      req.FieldSize,
	}
	if req.RunAt != "" {
		at, err := time.Parse(time.RFC3339, req.RunAt)
		if err != nil {
			return model.RaceResult{}, errors.New("invalid run_at; must be RFC3339")
		}
		res.RunAt = at.UTC()
	}
	return res, nil
}

type raceResultsRequest struct {
	Results []raceResultRequest `json:"results"`
}

type ratingResponse struct {
	HorseID         string     `json:"horse_id"`
	Rating          float64    `json:"rating"`
	Confidence      float64    `json:"confidence"`
	RacesConsidered int        `json:"races_considered"`
	LastUpdated     *time.Time `json:"last_updated,omitempty"`
}

func newRatingResponse(rec model.RatingRecord) ratingResponse {
	out := ratingResponse{
		HorseID:         rec.HorseID,
		Rating:          rec.Rating,
		Confidence:      rec.Confidence,
		RacesConsidered: rec.RacesConsidered,
	}
	if !rec.LastUpdated.IsZero() {
		at := rec.LastUpdated
		out.LastUpdated = &at
	}
	return out
}

type updateResponse struct {
	HorseID    string  `json:"horse_id"`
	Rating     float64 `json:"rating"`
	Confidence float64 `json:"confidence"`
	Applied    bool    `json:"applied"`
}

type historyEntryResponse struct {
	Rating     float64   `json:"rating"`
	Confidence float64   `json:"confidence"`
	RaceID     string    `json:"race_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

type conversionResponse struct {
	Rating float64 `json:"rating"`
	Scale  string  `json:"scale"`
	Value  float64 `json:"value"`
}

type outcomeResponse struct {
	HorseID    string         `json:"horse_id"`
	Applied    bool           `json:"applied"`
	Rating     *float64       `json:"rating,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	Error      *errorResponse `json:"error,omitempty"`
}

type batchResponse struct {
	RaceID  string            `json:"race_id"`
	Applied int               `json:"applied"`
	Failed  int               `json:"failed"`
	Results []outcomeResponse `json:"results"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// decodeJSON reads a single JSON document from the body, rejecting unknown
// fields and trailing data.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if dec.More() {
		return errors.New("invalid json: trailing data")
	}
	return nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func errIsBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest) || errors.Is(err, ErrBadPath)
}
