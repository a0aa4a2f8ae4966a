// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/pkg/logger"
)

const (
	defaultMaxBodyBytes = 16 << 20
	defaultIngestRate   = rate.Limit(5)
	defaultIngestBurst  = 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	MatchDependencies
	LeaderboardDependencies
	RankDependencies
	PlanningDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	matchesHandler     *MatchesHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	planningHandler    *PlanningHandler

	limiter      *IPRateLimiter
	maxBodyBytes int64
	logger       logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBodyBytes caps the size of uploaded logs.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithIngestRate sets the per-client rate limit of POST /matches.
func WithIngestRate(r rate.Limit, burst int) Option {
	return func(s *Server) {
		if r > 0 && burst > 0 {
			s.limiter = NewIPRateLimiter(r, burst)
		}
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		limiter:      NewIPRateLimiter(defaultIngestRate, defaultIngestBurst),
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       logger.GetOrNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.matchesHandler = NewMatchesHandler(deps, s.maxBodyBytes, s.logger)
	s.leaderboardHandler = NewLeaderboardHandler(deps)
	s.rankHandler = NewRankHandler(deps)
	s.planningHandler = NewPlanningHandler(deps)
	return s
}

// Routes returns the router serving every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/matches", func(r chi.Router) {
		r.With(RateLimitMiddleware(s.limiter)).Post("/", s.matchesHandler.HandlePostMatch)
		r.Get("/{id}/replay", s.matchesHandler.HandleGetReplay)
		r.Get("/{id}/stats", s.matchesHandler.HandleGetStats)
	})

	r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	r.Get("/rank/{account}", s.rankHandler.HandleGetRank)
	r.Post("/predict", s.planningHandler.HandlePredict)
	r.Post("/balance", s.planningHandler.HandleBalance)
	return r
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

// writeFailure translates err through statusFor.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

// modeParam reads the required mode query parameter.
func modeParam(r *http.Request) (model.Mode, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("mode"))
	if raw == "" {
		return model.ModeUnknown, fmt.Errorf("%w: missing mode", ErrBadRequest)
	}
	return model.ParseMode(raw)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
