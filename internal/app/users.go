package service

import (
	"context"
	"strings"

	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/internal/domain/ranking"
	"github.com/okian/learnrank/internal/domain/types"
)

// UserStanding returns the persisted standing of one user.
func (s *Service) UserStanding(ctx context.Context, userID string) (types.UserStanding, error) {
	if _, err := s.ready(); err != nil {
		return types.UserStanding{}, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return types.UserStanding{}, err
	}
	return types.UserStanding{
		ID:               u.ID,
		Name:             u.DisplayName(),
		Email:            u.Email,
		Badges:           nonNil(u.Badges),
		Points:           u.Points,
		LeaderboardStats: u.Stats,
	}, nil
}

// AdminUsers lists eligible learners by stored points. A non-empty search
// keeps users whose first name, last name or email contains it, ignoring
// case.
func (s *Service) AdminUsers(ctx context.Context, search string) (types.AdminUsers, error) {
	if _, err := s.ready(); err != nil {
		return types.AdminUsers{}, err
	}
	users, err := s.users.ListEligible(ctx)
	if err != nil {
		return types.AdminUsers{}, err
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	kept := users[:0]
	for _, u := range users {
		if needle == "" || matches(u, needle) {
			kept = append(kept, u)
		}
	}

	ranked := ranking.Rank(kept, func(u model.User) int { return u.Points })
	out := types.AdminUsers{Users: make([]types.AdminUser, len(ranked)), Total: len(ranked)}
	for i, r := range ranked {
		u := r.Item
		out.Users[i] = types.AdminUser{
			ID:               u.ID,
			Rank:             r.Rank,
			Name:             holderName(u),
			FirstName:        u.FirstName,
			LastName:         u.LastName,
			Email:            u.Email,
			Points:           u.Points,
			Badges:           nonNil(u.Badges),
			ManualBadges:     nonNil(u.ManualBadges),
			QuizCount:        len(u.QuizAttempts),
			CertificateCount: len(u.Certificates),
			ProjectCount:     len(u.TakenProjects),
		}
	}
	return out, nil
}

func matches(u model.User, needle string) bool {
	for _, field := range []string{u.FirstName, u.LastName, u.Email} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// holderName is the display name for administrators, falling back to the
// email address.
func holderName(u model.User) string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
