// Package repository defines the learner and reference data stores.
package repository

import (
	"context"

	"github.com/okian/learnrank/internal/domain/model"
)

// UserStore provides read/write access to learners and their standings.
type UserStore interface {
	// ListEligible returns approved learners in insertion order.
	ListEligible(ctx context.Context) ([]model.User, error)

	// Get returns one user. Returns ErrNotFound if the user is unknown.
	Get(ctx context.Context, id string) (model.User, error)

	// Save inserts or replaces a whole user document.
	Save(ctx context.Context, u model.User) error

	// ApplySnapshot writes only the fields owned by the update's scope.
	ApplySnapshot(ctx context.Context, id string, u model.SnapshotUpdate) error

	// SetStanding replaces the stored points and badges.
	SetStanding(ctx context.Context, id string, s model.Standing) error

	// AddManualBadge grants badge and adds it to the stored badges.
	// It reports false when the badge was already granted.
	AddManualBadge(ctx context.Context, id, badge string) (bool, error)

	// RemoveManualBadge revokes badge and drops it from the stored badges.
	// It reports false when the badge was not granted.
	RemoveManualBadge(ctx context.Context, id, badge string) (bool, error)

	// ObservedBadges returns every badge currently held by some user.
	ObservedBadges(ctx context.Context) ([]string, error)

	// Count returns the number of eligible users and how many of them
	// have stored points.
	Count(ctx context.Context) (total, withPoints int, err error)
}

// ReferenceStore provides the project and quiz catalogues.
type ReferenceStore interface {
	Projects(ctx context.Context) ([]model.Project, error)
	Quizzes(ctx context.Context) ([]model.Quiz, error)
	SaveProject(ctx context.Context, p model.Project) error
	SaveQuiz(ctx context.Context, q model.Quiz) error
}

// Store is a backend serving both contracts.
type Store interface {
	UserStore
	ReferenceStore
	Close() error
}
