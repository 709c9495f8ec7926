package api

import (
	"context"
	"net/http"

	"github.com/okian/learnrank/internal/domain/types"
)

// PointsDependencies covers the stored points recompute.
type PointsDependencies interface {
	Recompute(ctx context.Context) (types.RecomputeResult, error)
	RecomputeStatus(ctx context.Context) (types.RecomputeStatus, error)
}

// PointsHandler serves /api/leaderboard/update-points.
type PointsHandler struct {
	deps PointsDependencies
}

// NewPointsHandler creates a new points handler.
func NewPointsHandler(deps PointsDependencies) *PointsHandler {
	return &PointsHandler{deps: deps}
}

type recomputeResponse struct {
	Success bool `json:"success"`
	types.RecomputeResult
}

type recomputeStatusResponse struct {
	Success bool `json:"success"`
	types.RecomputeStatus
}

// HandleUpdatePoints reports the recompute status on GET and runs a
// recompute on POST. Running it requires the administrator role.
func (h *PointsHandler) HandleUpdatePoints(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_points"
	if !allow(w, r, op, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		st, err := h.deps.RecomputeStatus(r.Context())
		if err != nil {
			fail(w, r, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, recomputeStatusResponse{Success: true, RecomputeStatus: st})
		return
	}

	if !IdentityFrom(r.Context()).IsAdmin() {
		fail(w, r, NewKind(op, ErrForbidden))
		return
	}
	res, err := h.deps.Recompute(r.Context())
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, recomputeResponse{Success: true, RecomputeResult: res})
}
