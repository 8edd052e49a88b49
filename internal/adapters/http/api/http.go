// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/pokerank/pkg/logger"
	"github.com/okian/pokerank/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	InitDependencies
	MatchupDependencies
	VoteDependencies
	RankingsDependencies
	RecentVotesDependencies
	StatsDependencies
}

// Limits are the query defaults and caps for list endpoints.
type Limits struct {
	DefaultRankings int
	AllThreshold    int
	DefaultRecent   int
	MaxRecent       int
}

// DefaultLimits mirror the configuration defaults.
func DefaultLimits() Limits {
	return Limits{DefaultRankings: 10, AllThreshold: 1000, DefaultRecent: 5, MaxRecent: 100}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	initHandler     *InitHandler
	matchupHandler  *MatchupHandler
	voteHandler     *VoteHandler
	rankingsHandler *RankingsHandler
	recentHandler   *RecentVotesHandler

	corsOrigin string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCORSOrigin sets the Access-Control-Allow-Origin value. Empty disables CORS.
func WithCORSOrigin(origin string) ServerOption {
	return func(s *Server) {
		s.corsOrigin = origin
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, limits Limits, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps, statsProvider),
		initHandler:     NewInitHandler(deps),
		matchupHandler:  NewMatchupHandler(deps),
		voteHandler:     NewVoteHandler(deps),
		rankingsHandler: NewRankingsHandler(deps, limits.DefaultRankings, limits.AllThreshold),
		recentHandler:   NewRecentVotesHandler(deps, limits.DefaultRecent, limits.MaxRecent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleServiceStats, "service_stats"))
	mux.HandleFunc("/api/init", MetricsMiddleware(s.initHandler.HandleInit, "init"))
	mux.HandleFunc("/api/matchup", MetricsMiddleware(s.matchupHandler.HandleGetMatchup, "matchup"))
	mux.HandleFunc("/api/vote", MetricsMiddleware(s.voteHandler.HandlePostVote, "vote"))
	mux.HandleFunc("/api/rankings", MetricsMiddleware(s.rankingsHandler.HandleGetRankings, "rankings"))
	mux.HandleFunc("/api/votes/recent", MetricsMiddleware(s.recentHandler.HandleGetRecentVotes, "recent_votes"))
	mux.HandleFunc("/api/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
}

// Handler wraps next with the middleware every route shares.
func (s *Server) Handler(next http.Handler) http.Handler {
	return RequestIDMiddleware(CORSMiddleware(s.corsOrigin)(next))
}

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes the error body. Server-side
// failures are logged with the request id.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		metrics.RecordErrorByComponent("http", code)
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("requestId", w.Header().Get(RequestIDHeader)),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}
