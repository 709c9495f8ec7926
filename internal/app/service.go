// Package service provides the leaderboard engine behind the HTTP API and
// the command line: it aggregates activity, assigns badges, ranks learners
// and persists their standings.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	repository "github.com/okian/learnrank/internal/adapters/repository"
	workerpool "github.com/okian/learnrank/internal/adapters/worker"
	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/internal/domain/scoring"
	"github.com/okian/learnrank/pkg/logger"
	"github.com/okian/learnrank/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Default service configuration constants.
const (
	defaultRecomputeTimeout = 30 * time.Second
	recomputeFlightKey      = "recompute"
)

// AggregateFunc turns one user's activity into points for a scope.
type AggregateFunc func(u *model.User, ref *scoring.Reference, periodStart *time.Time, category model.Category) scoring.Result

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	// Core components
	users     repository.UserStore
	refs      repository.ReferenceStore
	closer    interface{ Close() error }
	pool      *workerpool.Pool
	aggregate AggregateFunc
	now       func() time.Time
	flights   singleflight.Group

	// Configuration
	aggregateWorkers int
	snapshotWorkers  int
	recomputeTimeout time.Duration
	snapshotInterval time.Duration

	// State
	started       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup
	lastRecompute time.Time
	lastRefresh   time.Time

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore uses one backend for both users and reference data. The
// service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.users = store
			s.refs = store
			s.closer = store
		}
	}
}

// WithUserStore sets the learner store.
func WithUserStore(store repository.UserStore) Option {
	return func(s *Service) {
		if store != nil {
			s.users = store
		}
	}
}

// WithReferenceStore sets the project and quiz catalogue.
func WithReferenceStore(store repository.ReferenceStore) Option {
	return func(s *Service) {
		if store != nil {
			s.refs = store
		}
	}
}

// WithAggregateWorkers bounds parallel score aggregation.
func WithAggregateWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.aggregateWorkers = count
		}
	}
}

// WithSnapshotWorkers bounds parallel standing writes.
func WithSnapshotWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.snapshotWorkers = count
		}
	}
}

// WithRecomputeTimeout bounds an administrator recompute.
func WithRecomputeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recomputeTimeout = d
		}
	}
}

// WithSnapshotInterval enables a background refresh of every scope.
func WithSnapshotInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.snapshotInterval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAggregator overrides how a single user is scored.
func WithAggregator(fn AggregateFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.aggregate = fn
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		aggregate:        scoring.Aggregate,
		now:              time.Now,
		aggregateWorkers: runtime.NumCPU() * 2, // Default to 2x CPU cores
		snapshotWorkers:  runtime.NumCPU() * 2,
		recomputeTimeout: defaultRecomputeTimeout,
		stopCh:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting leaderboard service...")

	if s.users == nil || s.refs == nil {
		mem := repository.NewMemoryStore()
		if s.users == nil {
			s.users = mem
		}
		if s.refs == nil {
			s.refs = mem
		}
		s.logger.Info(ctx, "using in-memory store")
	}

	s.pool = workerpool.NewPool(s.users,
		workerpool.WithSize(s.snapshotWorkers),
		workerpool.WithLogger(s.logger.Named("writer-pool")),
	)

	s.stopCh = make(chan struct{})
	if s.snapshotInterval > 0 {
		s.wg.Add(1)
		go s.refreshLoop(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.Int("aggregateWorkers", s.aggregateWorkers),
		logger.Int("snapshotWorkers", s.snapshotWorkers),
		logger.Duration("recomputeTimeout", s.recomputeTimeout),
		logger.Duration("snapshotInterval", s.snapshotInterval),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.logger.Info(context.Background(), "stopping leaderboard service...")

	// Signal the refresher to stop
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()

	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			s.logger.Warn(context.Background(), "error closing store", logger.Error(err))
		}
	}
	s.logger.Info(context.Background(), "leaderboard service stopped")
}

// refreshLoop recomputes every scope on the configured interval.
func (s *Service) refreshLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.RefreshSnapshots(ctx); err != nil {
				s.logger.Warn(ctx, "background snapshot refresh failed", logger.Error(err))
			}
		}
	}
}

// ready returns the components needed by an operation.
func (s *Service) ready() (*workerpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.pool, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	started := s.started
	stats := map[string]interface{}{
		"started":             started,
		"aggregateWorkers":    s.aggregateWorkers,
		"snapshotWorkers":     s.snapshotWorkers,
		"recomputeTimeoutMs":  s.recomputeTimeout.Milliseconds(),
		"snapshotIntervalSec": int(s.snapshotInterval.Seconds()),
	}
	if !s.lastRecompute.IsZero() {
		stats["lastRecompute"] = s.lastRecompute
	}
	if !s.lastRefresh.IsZero() {
		stats["lastRefresh"] = s.lastRefresh
	}
	users := s.users
	s.mu.RUnlock()

	if started {
		total, withPoints, err := users.Count(context.Background())
		if err == nil {
			stats["totalUsers"] = total
			stats["usersWithPoints"] = withPoints
			metrics.UpdateTotalUsers(total)
		}
	}

	return stats
}
