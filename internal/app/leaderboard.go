package service

import (
	"context"
	"fmt"
	"time"

	workerpool "github.com/okian/learnrank/internal/adapters/worker"
	"github.com/okian/learnrank/internal/domain/badges"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/internal/domain/ranking"
	"github.com/okian/learnrank/internal/domain/scoring"
	"github.com/okian/learnrank/internal/domain/types"
	"github.com/okian/learnrank/pkg/logger"
	"github.com/okian/learnrank/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Query selects a leaderboard scope and, optionally, the caller.
type Query struct {
	Period   model.Period
	Category model.Category
	UserID   string
}

// scored is one user after aggregation.
type scored struct {
	user   model.User
	result scoring.Result
	badges []string
}

func (s scored) points() int { return s.result.TotalPoints }

// dataset is everything a computation reads from the stores.
type dataset struct {
	users []model.User
	ref   *scoring.Reference
}

func (s *Service) load(ctx context.Context) (dataset, error) {
	users, err := s.users.ListEligible(ctx)
	if err != nil {
		return dataset{}, fmt.Errorf("list users: %w", err)
	}
	projects, err := s.refs.Projects(ctx)
	if err != nil {
		return dataset{}, fmt.Errorf("list projects: %w", err)
	}
	quizzes, err := s.refs.Quizzes(ctx)
	if err != nil {
		return dataset{}, fmt.Errorf("list quizzes: %w", err)
	}
	return dataset{users: users, ref: scoring.NewReference(projects, quizzes)}, nil
}

// score aggregates every user in parallel and ranks the survivors. Users
// whose aggregation fails are logged and left out.
func (s *Service) score(ctx context.Context, data dataset, scope model.Scope, now time.Time) ([]ranking.Ranked[scored], error) {
	start := time.Now()
	periodStart := scope.Period.Start(now)

	out := make([]scored, len(data.users))
	ok := make([]bool, len(data.users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.aggregateWorkers)
	for i := range data.users {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u := &data.users[i]
			res, err := s.aggregateUser(u, data.ref, periodStart, scope.Category)
			if err != nil {
				metrics.RecordComputationError()
				metrics.RecordErrorByComponent("service", "computation")
				s.logger.Warn(ctx, "user left out of leaderboard",
					logger.String("user_id", u.ID),
					logger.String("scope", scope.Key()),
					logger.Error(err),
				)
				return nil
			}
			out[i] = scored{
				user:   *u,
				result: res,
				badges: badges.Assign(badges.Counters{
					CompletedProjects: res.CompletedProjects,
					PassedQuizzes:     res.PassedQuizzes,
					Certificates:      res.Certificates,
					TotalPoints:       res.TotalPoints,
				}, u.ManualBadges),
			}
			ok[i] = true
			return nil
		})
	}
	// Ranking needs every total.
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", scope, err)
	}

	kept := make([]scored, 0, len(out))
	for i := range out {
		if ok[i] {
			kept = append(kept, out[i])
		}
	}
	ranked := ranking.Rank(kept, scored.points)

	period, category := string(scope.Period), string(scope.Category)
	metrics.RecordLeaderboardQuery(period, category)
	metrics.RecordComputationLatency(period, category, float64(time.Since(start).Microseconds())/1000)
	metrics.UpdateUsersRanked(period, category, len(ranked))
	return ranked, nil
}

// aggregateUser shields the computation from a panic on malformed data.
func (s *Service) aggregateUser(u *model.User, ref *scoring.Reference, periodStart *time.Time, c model.Category) (res scoring.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: user %s: %v", ErrComputation, u.ID, r)
		}
	}()
	return s.aggregate(u, ref, periodStart, c), nil
}

// persistScope writes rank and points of one scope for every ranked user.
func (s *Service) persistScope(ctx context.Context, pool *workerpool.Pool, scope model.Scope, ranked []ranking.Ranked[scored], at time.Time) workerpool.Report {
	jobs := make([]workerpool.Job, len(ranked))
	for i, r := range ranked {
		jobs[i] = workerpool.SnapshotJob(r.Item.user.ID, model.SnapshotUpdate{
			Scope:  scope,
			Rank:   r.Rank,
			Points: r.Points,
			At:     at,
		})
	}
	rep := pool.Persist(ctx, jobs)
	if rep.Failed > 0 {
		s.logger.Warn(ctx, "some snapshots were not persisted",
			logger.String("scope", scope.Key()),
			logger.Int("failed", rep.Failed),
			logger.Int("written", rep.Written),
			logger.Error(fmt.Errorf("%w: %d writes", ErrPersistence, rep.Failed)),
		)
	}
	return rep
}

// Leaderboard ranks every eligible learner for a scope, persists the
// scope's snapshot and returns the ranking. Persistence failures do not
// change the response.
func (s *Service) Leaderboard(ctx context.Context, q Query) (types.Leaderboard, error) {
	pool, err := s.ready()
	if err != nil {
		return types.Leaderboard{}, err
	}
	scope := model.Scope{Period: q.Period, Category: q.Category}
	if scope.Period == "" {
		scope.Period = model.PeriodAll
	}
	if scope.Category == "" {
		scope.Category = model.CategoryAll
	}

	data, err := s.load(ctx)
	if err != nil {
		return types.Leaderboard{}, err
	}
	now := s.now()
	ranked, err := s.score(ctx, data, scope, now)
	if err != nil {
		return types.Leaderboard{}, err
	}
	s.persistScope(ctx, pool, scope, ranked, now)

	lb := types.Leaderboard{
		Entries:  make([]types.Entry, len(ranked)),
		Period:   string(scope.Period),
		Category: string(scope.Category),
	}
	for i, r := range ranked {
		lb.Entries[i] = entry(r)
		if q.UserID != "" && r.Item.user.ID == q.UserID {
			e := lb.Entries[i]
			lb.CurrentUserRank = &e
		}
	}
	return lb, nil
}

func entry(r ranking.Ranked[scored]) types.Entry {
	u, res := r.Item.user, r.Item.result
	var avatar *string
	if u.AvatarURL != "" {
		a := u.AvatarURL
		avatar = &a
	}
	return types.Entry{
		UserID:            u.ID,
		Name:              u.DisplayName(),
		Email:             u.Email,
		TotalPoints:       res.TotalPoints,
		QuizPoints:        res.QuizPoints,
		ProjectPoints:     res.ProjectPoints,
		FormationPoints:   res.FormationPoints,
		Badges:            r.Item.badges,
		CompletedProjects: res.CompletedProjects,
		PassedQuizzes:     res.PassedQuizzes,
		Certificates:      res.Certificates,
		Rank:              r.Rank,
		Avatar:            avatar,
	}
}

// RefreshSnapshots recomputes and persists all twelve scopes from a single
// read of the stores.
func (s *Service) RefreshSnapshots(ctx context.Context) (types.SnapshotSummary, error) {
	pool, err := s.ready()
	if err != nil {
		return types.SnapshotSummary{}, err
	}
	data, err := s.load(ctx)
	if err != nil {
		return types.SnapshotSummary{}, err
	}
	now := s.now()

	var sum types.SnapshotSummary
	for _, scope := range model.AllScopes() {
		ranked, err := s.score(ctx, data, scope, now)
		if err != nil {
			return sum, err
		}
		rep := s.persistScope(ctx, pool, scope, ranked, now)
		sum.Scopes++
		sum.Written += rep.Written
		sum.Failed += rep.Failed
	}

	s.mu.Lock()
	s.lastRefresh = now
	s.mu.Unlock()
	s.logger.Info(ctx, "snapshots refreshed",
		logger.Int("scopes", sum.Scopes),
		logger.Int("written", sum.Written),
		logger.Int("failed", sum.Failed),
	)
	return sum, nil
}
