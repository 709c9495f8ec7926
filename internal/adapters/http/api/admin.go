package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/learnrank/internal/domain/types"
)

// maxBadgeBody bounds a badge mutation request.
const maxBadgeBody = 1 << 16

// AdminDependencies covers administrator leaderboard operations.
type AdminDependencies interface {
	AdminUsers(ctx context.Context, search string) (types.AdminUsers, error)
	MutateBadge(ctx context.Context, m types.BadgeMutation) (types.BadgeHolder, error)
	BadgeCatalog(ctx context.Context) (types.BadgeCatalog, error)
}

// AdminHandler serves /api/admin/leaderboard/*.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

type adminUsersResponse struct {
	Success bool `json:"success"`
	types.AdminUsers
}

type badgeCatalogResponse struct {
	Success bool `json:"success"`
	types.BadgeCatalog
}

type badgeMutationResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	User    types.BadgeHolder `json:"user"`
}

// HandleListUsers handles GET /api/admin/leaderboard/users?search.
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_users"
	if !allow(w, r, op, http.MethodGet) {
		return
	}
	list, err := h.deps.AdminUsers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, adminUsersResponse{Success: true, AdminUsers: list})
}

// HandleManageBadges lists the badge catalog on GET and grants or revokes
// a manual badge on POST.
func (h *AdminHandler) HandleManageBadges(w http.ResponseWriter, r *http.Request) {
	const op = "api.manage_badges"
	if !allow(w, r, op, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		cat, err := h.deps.BadgeCatalog(r.Context())
		if err != nil {
			fail(w, r, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, badgeCatalogResponse{Success: true, BadgeCatalog: cat})
		return
	}

	var req types.BadgeMutation
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBadgeBody)).Decode(&req); err != nil {
		fail(w, r, Detail(op, ErrBadRequest, "invalid JSON body"))
		return
	}
	if err := validateBody(op, req); err != nil {
		fail(w, r, err)
		return
	}
	holder, err := h.deps.MutateBadge(r.Context(), req)
	if err != nil {
		fail(w, r, Wrap(op, err))
		return
	}
	msg := "Badge added"
	if req.Action == types.BadgeRemove {
		msg = "Badge removed"
	}
	writeJSON(w, http.StatusOK, badgeMutationResponse{Success: true, Message: msg, User: holder})
}
