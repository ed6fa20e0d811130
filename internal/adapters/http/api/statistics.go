package api

import (
	"errors"
	"net/http"
	"strconv"
)

// StatisticsHandler handles population summary requests.
type StatisticsHandler struct {
	deps        StatisticsDependencies
	defaultTopN int
	maxLimit    int
}

// NewStatisticsHandler creates a new statistics handler.
func NewStatisticsHandler(deps StatisticsDependencies, defaultTopN, maxLimit int) *StatisticsHandler {
	return &StatisticsHandler{
		deps:        deps,
		defaultTopN: defaultTopN,
		maxLimit:    maxLimit,
	}
}

// HandleStatistics handles GET /ratings/statistics?top=N requests.
func (h *StatisticsHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	const op = "api.statistics"
	n := h.defaultTopN
	if raw := r.URL.Query().Get("top"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeServiceError(w, WrapKind(op, ErrBadRequest, errors.New("top must be a non-negative integer")))
			return
		}
		if v > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}

	summary, err := h.deps.Statistics(r.Context(), n)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
