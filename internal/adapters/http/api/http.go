// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	service "github.com/okian/furlong/internal/app"
	"github.com/okian/furlong/internal/domain/model"
	"github.com/okian/furlong/internal/domain/scale"
	"github.com/okian/furlong/internal/domain/stats"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RatingDependencies
	RaceDependencies
	EventDependencies
	StatisticsDependencies
	ConversionDependencies
}

// RatingDependencies covers registration, direct updates and reads.
type RatingDependencies interface {
	CalculateInitial(ctx context.Context, h model.Horse) (model.RatingRecord, error)
	UpdateAfterRace(ctx context.Context, res model.RaceResult) (model.RatingRecord, bool, error)
	Rating(ctx context.Context, horseID string) (model.RatingRecord, error)
	History(ctx context.Context, horseID string) ([]model.HistoryEntry, error)
}

// RaceDependencies applies a whole race synchronously.
type RaceDependencies interface {
	ApplyRace(ctx context.Context, raceID string, results []model.RaceResult) ([]service.Outcome, error)
}

// EventDependencies admits results for asynchronous application.
type EventDependencies interface {
	Enqueue(ctx context.Context, res model.RaceResult) (bool, error)
}

// StatisticsDependencies summarizes the population.
type StatisticsDependencies interface {
	Statistics(ctx context.Context, topN int) (stats.Summary, error)
}

// ConversionDependencies maps ratings between scales.
type ConversionDependencies interface {
	Convert(ctx context.Context, r float64, scaleName string) (float64, error)
	Invert(ctx context.Context, v float64, scaleName string) (float64, error)
	ConvertAll(ctx context.Context, r float64) ([]scale.Value, error)
	Scales(ctx context.Context) ([]scale.Scale, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	ratingsHandler    *RatingsHandler
	racesHandler      *RacesHandler
	eventsHandler     *EventsHandler
	statisticsHandler *StatisticsHandler
	conversionHandler *ConversionHandler

	corsOrigins    []string
	requestTimeout time.Duration
	maxTopLimit    int
	defaultTopN    int
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		corsOrigins:    []string{"*"},
		requestTimeout: 30 * time.Second,
		maxTopLimit:    100,
		defaultTopN:    10,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.ratingsHandler = NewRatingsHandler(deps)
	s.racesHandler = NewRacesHandler(deps)
	s.eventsHandler = NewEventsHandler(deps)
	s.statisticsHandler = NewStatisticsHandler(deps, s.defaultTopN, s.maxTopLimit)
	s.conversionHandler = NewConversionHandler(deps)
	return s
}

// Router builds a chi router with the standard middleware stack and every
// API route registered.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/ratings", func(rr chi.Router) {
		rr.Post("/calculate-initial/{horseId}", MetricsMiddleware(s.ratingsHandler.HandleCalculateInitial, "calculate_initial"))
		rr.Post("/update-after-race", MetricsMiddleware(s.ratingsHandler.HandleUpdateAfterRace, "update_after_race"))
		rr.Get("/horse/{horseId}", MetricsMiddleware(s.ratingsHandler.HandleGetRating, "get_rating"))
		rr.Get("/horse/{horseId}/history", MetricsMiddleware(s.ratingsHandler.HandleGetHistory, "get_history"))
		rr.Get("/statistics", MetricsMiddleware(s.statisticsHandler.HandleStatistics, "statistics"))
		rr.Get("/convert", MetricsMiddleware(s.conversionHandler.HandleConvert, "convert"))
		rr.Get("/convert/all", MetricsMiddleware(s.conversionHandler.HandleConvertAll, "convert_all"))
		rr.Get("/invert", MetricsMiddleware(s.conversionHandler.HandleInvert, "invert"))
		rr.Get("/scales", MetricsMiddleware(s.conversionHandler.HandleScales, "scales"))
		rr.Post("/races/{raceId}/results", MetricsMiddleware(s.racesHandler.HandleApplyRace, "apply_race"))
	})

	r.Post("/events/race-results", MetricsMiddleware(s.eventsHandler.HandlePostRaceResult, "events"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps a service failure onto the error envelope.
func writeServiceError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	writeError(w, statusFor(code), code, err)
}

// errorCode extends the service classification with request-level faults.
func errorCode(err error) string {
	if errIsBadRequest(err) {
		return "invalid_input"
	}
	return service.ErrorKind(err)
}

func statusFor(code string) int {
	switch code {
	case "invalid_input":
		return http.StatusBadRequest
	case "unknown_horse", "unknown_scale":
		return http.StatusNotFound
	case "duplicate_race", "already_registered":
		return http.StatusConflict
	case "backpressure":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
