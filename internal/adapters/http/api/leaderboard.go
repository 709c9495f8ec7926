// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	service "github.com/okian/learnrank/internal/app"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/internal/domain/types"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, q service.Query) (types.Leaderboard, error)
	UserStanding(ctx context.Context, userID string) (types.UserStanding, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

type leaderboardResponse struct {
	Success bool `json:"success"`
	types.Leaderboard
}

type standingResponse struct {
	Success bool               `json:"success"`
	User    types.UserStanding `json:"user"`
}

// HandleGetLeaderboard handles GET /api/leaderboard?period&category&userId.
// Without userId the caller's own id is used.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	query := r.URL.Query()
	period, err := model.ParsePeriod(query.Get("period"))
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	category, err := model.ParseCategory(query.Get("category"))
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	userID := strings.TrimSpace(query.Get("userId"))
	if userID == "" {
		userID = IdentityFrom(r.Context()).UserID
	}

	lb, err := h.deps.Leaderboard(r.Context(), service.Query{Period: period, Category: category, UserID: userID})
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Success: true, Leaderboard: lb})
}

// HandleGetUserStanding handles GET /api/leaderboard/user/{id} requests.
func (h *LeaderboardHandler) HandleGetUserStanding(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user_standing"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	// Extract path parameter after /api/leaderboard/user/
	id := strings.TrimPrefix(r.URL.Path, "/api/leaderboard/user/")
	if id == "" || strings.Contains(id, "/") {
		fail(w, r, Detail(op, ErrBadRequest, "missing user id"))
		return
	}
	st, err := h.deps.UserStanding(r.Context(), id)
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, standingResponse{Success: true, User: st})
}
