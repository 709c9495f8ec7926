// Package types contains the response shapes shared by the service and
// its transports.
package types

import "github.com/okian/learnrank/internal/domain/model"

// Entry is one ranked learner on a leaderboard.
type Entry struct {
	UserID            string   `json:"userId"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	TotalPoints       int      `json:"totalPoints"`
	QuizPoints        int      `json:"quizPoints"`
	ProjectPoints     int      `json:"projectPoints"`
	FormationPoints   int      `json:"formationPoints"`
	Badges            []string `json:"badges"`
	CompletedProjects int      `json:"completedProjects"`
	PassedQuizzes     int      `json:"passedQuizzes"`
	Certificates      int      `json:"certificates"`
	Rank              int      `json:"rank"`
	Avatar            *string  `json:"avatar"`
}

// Leaderboard is a ranked scope with the caller's own entry, if ranked.
type Leaderboard struct {
	Entries         []Entry `json:"leaderboard"`
	CurrentUserRank *Entry  `json:"currentUserRank"`
	Period          string  `json:"period"`
	Category        string  `json:"category"`
}

// RecomputeEntry reports what the recompute wrote for one user.
type RecomputeEntry struct {
	UserID string   `json:"userId"`
	Name   string   `json:"name"`
	Points int      `json:"points"`
	Badges []string `json:"badges"`
}

// RecomputeResult summarises an administrator recompute.
type RecomputeResult struct {
	Message      string           `json:"message"`
	UpdatedCount int              `json:"updatedCount"`
	Failed       int              `json:"failed,omitempty"`
	Results      []RecomputeEntry `json:"results"`
}

// RecomputeStatus tells whether stored points look stale.
type RecomputeStatus struct {
	TotalUsers      int  `json:"totalUsers"`
	UsersWithPoints int  `json:"usersWithPoints"`
	NeedsUpdate     bool `json:"needsUpdate"`
}

// SnapshotSummary reports a refresh of every scope.
type SnapshotSummary struct {
	Scopes  int `json:"scopes"`
	Written int `json:"written"`
	Failed  int `json:"failed"`
}

// UserStanding is the persisted standing of a single user.
type UserStanding struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Email            string                 `json:"email"`
	Badges           []string               `json:"badges"`
	Points           int                    `json:"points"`
	LeaderboardStats model.LeaderboardStats `json:"leaderboardStats"`
}

// AdminUser is one row of the administrator user listing.
type AdminUser struct {
	ID               string   `json:"id"`
	Rank             int      `json:"rank"`
	Name             string   `json:"name"`
	FirstName        string   `json:"firstName"`
	LastName         string   `json:"lastName"`
	Email            string   `json:"email"`
	Points           int      `json:"points"`
	Badges           []string `json:"badges"`
	ManualBadges     []string `json:"manualBadges"`
	QuizCount        int      `json:"quizCount"`
	CertificateCount int      `json:"certificateCount"`
	ProjectCount     int      `json:"projectCount"`
}

// AdminUsers is the administrator user listing.
type AdminUsers struct {
	Users []AdminUser `json:"users"`
	Total int         `json:"total"`
}

// BadgeCatalog lists the badge vocabulary known to the system.
type BadgeCatalog struct {
	Badges         []string `json:"badges"`
	StandardBadges []string `json:"standardBadges"`
	CustomBadges   []string `json:"customBadges"`
}

// Badge mutation actions.
const (
	BadgeAdd    = "add"
	BadgeRemove = "remove"
)

// BadgeMutation is an administrator request to grant or revoke a badge.
type BadgeMutation struct {
	UserID string `json:"userId" validate:"required"`
	Action string `json:"action" validate:"required,oneof=add remove"`
	Badge  string `json:"badge" validate:"required"`
}

// BadgeHolder is the user returned after a badge mutation.
type BadgeHolder struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Badges []string `json:"badges"`
	Points int      `json:"points"`
}
