package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RatingsHandler handles registration, direct updates and rating reads.
type RatingsHandler struct {
	deps RatingDependencies
}

// NewRatingsHandler creates a new ratings handler.
func NewRatingsHandler(deps RatingDependencies) *RatingsHandler {
	return &RatingsHandler{deps: deps}
}

// HandleCalculateInitial handles POST /ratings/calculate-initial/{horseId}.
func (h *RatingsHandler) HandleCalculateInitial(w http.ResponseWriter, r *http.Request) {
	const op = "api.calculate_initial"
	horseID, ok := horseParam(r)
	if !ok {
		writeServiceError(w, NewKind(op, ErrBadPath))
		return
	}
	var req initialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	rec, err := h.deps.CalculateInitial(r.Context(), req.horse(horseID))
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, newRatingResponse(rec))
}

// HandleUpdateAfterRace handles POST /ratings/update-after-race.
func (h *RatingsHandler) HandleUpdateAfterRace(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_after_race"
	var req raceResultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := req.result()
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	rec, applied, err := h.deps.UpdateAfterRace(r.Context(), res)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{
		HorseID:    rec.HorseID,
		Rating:     rec.Rating,
		Confidence: rec.Confidence,
		Applied:    applied,
	})
}

// HandleGetRating handles GET /ratings/horse/{horseId}.
func (h *RatingsHandler) HandleGetRating(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rating"
	horseID, ok := horseParam(r)
	if !ok {
		writeServiceError(w, NewKind(op, ErrBadPath))
		return
	}
	rec, err := h.deps.Rating(r.Context(), horseID)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newRatingResponse(rec))
}

// HandleGetHistory handles GET /ratings/horse/{horseId}/history.
func (h *RatingsHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	horseID, ok := horseParam(r)
	if !ok {
		writeServiceError(w, NewKind(op, ErrBadPath))
		return
	}
	hist, err := h.deps.History(r.Context(), horseID)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	out := make([]historyEntryResponse, len(hist))
	for i, e := range hist {
		out[i] = historyEntryResponse{
			Rating:     e.Rating,
			Confidence: e.Confidence,
			RaceID:     e.RaceID,
			RecordedAt: e.RecordedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func horseParam(r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "horseId"))
	return id, id != ""
}
