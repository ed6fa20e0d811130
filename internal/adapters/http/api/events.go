package api

import (
	"net/http"
)

// EventsHandler handles asynchronous race result submissions.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostRaceResult handles POST /events/race-results requests.
// 202 when queued, 200 when the (horse, race) pair was already admitted,
// 429 when the horse's queue shard is full.
func (h *EventsHandler) HandlePostRaceResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_race_result"
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

	duplicate, err := h.deps.Enqueue(r.Context(), res)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
