package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	workerpool "github.com/okian/learnrank/internal/adapters/worker"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/internal/domain/types"
	"github.com/okian/learnrank/pkg/logger"
	"github.com/okian/learnrank/pkg/metrics"
)

var globalScope = model.Scope{Period: model.PeriodAll, Category: model.CategoryAll}

// Recompute writes all-time points and badges on every eligible learner.
// Manual badges are kept. Concurrent calls share one run.
func (s *Service) Recompute(ctx context.Context) (types.RecomputeResult, error) {
	pool, err := s.ready()
	if err != nil {
		return types.RecomputeResult{}, err
	}
	v, err, shared := s.flights.Do(recomputeFlightKey, func() (interface{}, error) {
		// The run outlives a caller that gives up, but not its own budget.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recomputeTimeout)
		defer cancel()
		return s.recompute(runCtx, pool)
	})
	if shared {
		s.logger.Debug(ctx, "joined a recompute already in flight")
	}
	res, _ := v.(types.RecomputeResult)
	return res, err
}

func (s *Service) recompute(ctx context.Context, pool *workerpool.Pool) (types.RecomputeResult, error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.RecordRecompute(outcome, float64(time.Since(start).Microseconds())/1000)
	}()

	data, err := s.load(ctx)
	if err != nil {
		outcome = "error"
		return types.RecomputeResult{}, s.budgetErr(ctx, err)
	}
	now := s.now()
	ranked, err := s.score(ctx, data, globalScope, now)
	if err != nil {
		outcome = "error"
		return types.RecomputeResult{}, s.budgetErr(ctx, err)
	}

	// Results keep the store's listing order.
	order := make(map[string]int, len(data.users))
	for i, u := range data.users {
		order[u.ID] = i
	}
	entries := make([]*types.RecomputeEntry, len(data.users))
	jobs := make([]workerpool.Job, 0, len(ranked))
	for _, r := range ranked {
		u := r.Item.user
		standing := model.Standing{Points: r.Points, Badges: r.Item.badges}
		jobs = append(jobs, workerpool.StandingJob(u.ID, standing))
		entries[order[u.ID]] = &types.RecomputeEntry{
			UserID: u.ID,
			Name:   u.DisplayName(),
			Points: standing.Points,
			Badges: standing.Badges,
		}
	}

	rep := pool.Persist(ctx, jobs)
	failed := rep.FailedUsers()
	res := types.RecomputeResult{Results: make([]types.RecomputeEntry, 0, len(jobs)), Failed: rep.Failed}
	for _, e := range entries {
		if e == nil {
			continue
		}
		if _, bad := failed[e.UserID]; bad {
			continue
		}
		res.Results = append(res.Results, *e)
	}
	res.UpdatedCount = len(res.Results)
	res.Message = fmt.Sprintf("Points updated for %d users", res.UpdatedCount)

	if rep.Failed > 0 {
		outcome = "partial"
		s.logger.Warn(ctx, "recompute could not persist every standing",
			logger.Int("failed", rep.Failed),
			logger.Error(fmt.Errorf("%w: %d writes", ErrPersistence, rep.Failed)),
		)
	}
	if err := ctx.Err(); err != nil {
		outcome = "timeout"
		return res, s.budgetErr(ctx, err)
	}

	s.mu.Lock()
	s.lastRecompute = now
	s.mu.Unlock()
	s.logger.Info(ctx, "recompute finished",
		logger.Int("updated", res.UpdatedCount),
		logger.Duration("took", time.Since(start)),
	)
	return res, nil
}

// budgetErr marks errors caused by the recompute deadline.
func (s *Service) budgetErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrRecomputeTime, s.recomputeTimeout, err)
	}
	return err
}

// RecomputeStatus reports whether some learners have no stored points.
func (s *Service) RecomputeStatus(ctx context.Context) (types.RecomputeStatus, error) {
	if _, err := s.ready(); err != nil {
		return types.RecomputeStatus{}, err
	}
	total, withPoints, err := s.users.Count(ctx)
	if err != nil {
		return types.RecomputeStatus{}, fmt.Errorf("count users: %w", err)
	}
	return types.RecomputeStatus{
		TotalUsers:      total,
		UsersWithPoints: withPoints,
		NeedsUpdate:     withPoints < total,
	}, nil
}
