package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/learnrank/internal/domain/badges"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/internal/domain/types"
	"github.com/okian/learnrank/pkg/logger"
	"github.com/okian/learnrank/pkg/metrics"
)

// MutateBadge applies an administrator badge request.
func (s *Service) MutateBadge(ctx context.Context, m types.BadgeMutation) (types.BadgeHolder, error) {
	switch m.Action {
	case types.BadgeAdd:
		return s.AddBadge(ctx, m.UserID, m.Badge)
	case types.BadgeRemove:
		return s.RemoveBadge(ctx, m.UserID, m.Badge)
	default:
		return types.BadgeHolder{}, fmt.Errorf("unknown badge action %q: %w", m.Action, model.ErrValidation)
	}
}

// AddBadge grants a manual badge. Granting one the user already has is a
// validation error.
func (s *Service) AddBadge(ctx context.Context, userID, badge string) (types.BadgeHolder, error) {
	if _, err := s.ready(); err != nil {
		return types.BadgeHolder{}, err
	}
	badge = strings.TrimSpace(badge)
	if badge == "" {
		return types.BadgeHolder{}, fmt.Errorf("empty badge: %w", model.ErrValidation)
	}
	added, err := s.users.AddManualBadge(ctx, userID, badge)
	if err != nil {
		return types.BadgeHolder{}, err
	}
	if !added {
		return types.BadgeHolder{}, fmt.Errorf("badge %q already granted to this user: %w", badge, model.ErrValidation)
	}
	metrics.RecordBadgeMutation(types.BadgeAdd)
	s.logger.Info(ctx, "badge granted", logger.String("user_id", userID), logger.String("badge", badge))
	return s.holder(ctx, userID)
}

// RemoveBadge revokes a manual badge. Automatic badges cannot be revoked.
func (s *Service) RemoveBadge(ctx context.Context, userID, badge string) (types.BadgeHolder, error) {
	if _, err := s.ready(); err != nil {
		return types.BadgeHolder{}, err
	}
	badge = strings.TrimSpace(badge)
	removed, err := s.users.RemoveManualBadge(ctx, userID, badge)
	if err != nil {
		return types.BadgeHolder{}, err
	}
	if !removed {
		return types.BadgeHolder{}, fmt.Errorf("badge %q was not granted to this user: %w", badge, model.ErrValidation)
	}
	metrics.RecordBadgeMutation(types.BadgeRemove)
	s.logger.Info(ctx, "badge revoked", logger.String("user_id", userID), logger.String("badge", badge))
	return s.holder(ctx, userID)
}

func (s *Service) holder(ctx context.Context, userID string) (types.BadgeHolder, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return types.BadgeHolder{}, err
	}
	return types.BadgeHolder{
		ID:     u.ID,
		Name:   holderName(u),
		Email:  u.Email,
		Badges: nonNil(u.Badges),
		Points: u.Points,
	}, nil
}

// BadgeCatalog lists the standard badges together with every badge in use.
func (s *Service) BadgeCatalog(ctx context.Context) (types.BadgeCatalog, error) {
	if _, err := s.ready(); err != nil {
		return types.BadgeCatalog{}, err
	}
	observed, err := s.users.ObservedBadges(ctx)
	if err != nil {
		return types.BadgeCatalog{}, err
	}
	custom := []string{}
	for _, b := range observed {
		if !badges.IsStandard(b) {
			custom = append(custom, b)
		}
	}
	standard := badges.Standard()
	return types.BadgeCatalog{
		Badges:         badges.Union(standard, observed),
		StandardBadges: standard,
		CustomBadges:   custom,
	}, nil
}
