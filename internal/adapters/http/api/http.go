// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	repository "github.com/okian/learnrank/internal/adapters/repository"
	service "github.com/okian/learnrank/internal/app"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/internal/domain/types"
	"github.com/okian/learnrank/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	PointsDependencies
	AdminDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	pointsHandler      *PointsHandler
	adminHandler       *AdminHandler
	logger             logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps),
		pointsHandler:      NewPointsHandler(deps),
		adminHandler:       NewAdminHandler(deps),
		logger:             logger.Get().Named("http"),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	route := func(path, endpoint string, h http.HandlerFunc) {
		mux.Handle(path, RequestID(s.logger, Identify(MetricsMiddleware(h, endpoint))))
	}

	// Specific paths first (most specific to least specific)
	route("/healthz", "healthz", s.healthHandler.HandleHealth)
	route("/stats", "stats", s.statsHandler.HandleStats)
	route("/api/leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	route("/api/leaderboard/user/", "leaderboard_user", s.leaderboardHandler.HandleGetUserStanding)
	route("/api/leaderboard/update-points", "update_points", s.pointsHandler.HandleUpdatePoints)
	route("/api/admin/leaderboard/users", "admin_users", RequireAdmin(s.adminHandler.HandleListUsers))
	route("/api/admin/leaderboard/manage-badges", "manage_badges", RequireAdmin(s.adminHandler.HandleManageBadges))
}

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = clientMessage(err)
	}
	writeJSON(w, status, errorResponse{Success: false, Code: code, Error: msg})
}

// fail maps err onto a status code and writes it.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("http").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", RequestIDFrom(r.Context())),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, service.ErrRecomputeTime):
		return http.StatusGatewayTimeout, "recompute_timeout"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// clientMessage strips the op chain from API errors.
func clientMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Err != nil && apiErr.Kind != nil {
			return apiErr.Err.Error()
		}
		if apiErr.Err != nil {
			return clientMessage(apiErr.Err)
		}
		return apiErr.Kind.Error()
	}
	return err.Error()
}

// allow rejects requests whose method is not listed.
func allow(w http.ResponseWriter, r *http.Request, op string, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	for _, m := range methods {
		w.Header().Add("Allow", m)
	}
	fail(w, r, NewKind(op, ErrMethodNotAllowed))
	return false
}
