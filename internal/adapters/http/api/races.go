package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/furlong/internal/domain/model"
)

// RacesHandler applies the results of one race synchronously.
type RacesHandler struct {
	deps RaceDependencies
}

// NewRacesHandler creates a new races handler.
func NewRacesHandler(deps RaceDependencies) *RacesHandler {
	return &RacesHandler{deps: deps}
}

// HandleApplyRace handles POST /ratings/races/{raceId}/results. The response
// is 200 with one outcome per entrant even when some entrants fail.
func (h *RacesHandler) HandleApplyRace(w http.ResponseWriter, r *http.Request) {
	const op = "api.apply_race"
	raceID := strings.TrimSpace(chi.URLParam(r, "raceId"))
	if raceID == "" {
		writeServiceError(w, NewKind(op, ErrBadPath))
		return
	}
	var req raceResultsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Results) == 0 {
		writeServiceError(w, NewKind(op, ErrBadRequest))
		return
	}

	results := make([]model.RaceResult, len(req.Results))
	for i, rr := range req.Results {
		res, err := rr.result()
		if err != nil {
			writeServiceError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		results[i] = res
	}

	outcomes, err := h.deps.ApplyRace(r.Context(), raceID, results)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}

	resp := batchResponse{RaceID: raceID, Results: make([]outcomeResponse, len(outcomes))}
	for i, o := range outcomes {
		out := outcomeResponse{HorseID: o.HorseID, Applied: o.Applied}
		if o.Err != nil {
			code := errorCode(o.Err)
			out.Error = &errorResponse{Code: code, Message: o.Err.Error()}
			resp.Failed++
		} else {
			rating, conf := o.Record.Rating, o.Record.Confidence
			out.Rating, out.Confidence = &rating, &conf
			if o.Applied {
				resp.Applied++
			}
		}
		resp.Results[i] = out
	}
	writeJSON(w, http.StatusOK, resp)
}
