// Package worker persists computed standings through a bounded pool of
// concurrent writers.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/learnrank/internal/domain/model"
	"github.com/okian/learnrank/pkg/logger"
	"github.com/okian/learnrank/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	standingScope           = "standing"
)

// Writer stores per-user results.
type Writer interface {
	ApplySnapshot(ctx context.Context, userID string, u model.SnapshotUpdate) error
	SetStanding(ctx context.Context, userID string, s model.Standing) error
}

// Job is one write for one user. Exactly one of Snapshot or Standing is set.
type Job struct {
	UserID   string
	Snapshot *model.SnapshotUpdate
	Standing *model.Standing
}

// SnapshotJob builds a job writing one scope's snapshot.
func SnapshotJob(userID string, u model.SnapshotUpdate) Job {
	return Job{UserID: userID, Snapshot: &u}
}

// StandingJob builds a job writing points and badges.
func StandingJob(userID string, s model.Standing) Job {
	return Job{UserID: userID, Standing: &s}
}

// Scope names what the job writes, for logs.
func (j Job) Scope() string {
	if j.Snapshot != nil {
		return j.Snapshot.Scope.Key()
	}
	return standingScope
}

// Failure is a job that could not be written.
type Failure struct {
	UserID string
	Scope  string
	Err    error
}

// Report summarises a Persist call.
type Report struct {
	Written  int
	Failed   int
	Failures []Failure
}

// FailedUsers returns the set of users with at least one failed write.
func (r Report) FailedUsers() map[string]struct{} {
	out := make(map[string]struct{}, len(r.Failures))
	for _, f := range r.Failures {
		out[f.UserID] = struct{}{}
	}
	return out
}

// Pool fans jobs out to a fixed number of writers.
type Pool struct {
	writer Writer
	size   int
	name   string
	logger logger.Logger

	active atomic.Int64
}

// NewPool creates a pool writing through w.
func NewPool(w Writer, opts ...Option) *Pool {
	p := &Pool{
		writer: w,
		size:   runtime.NumCPU() * defaultWorkerMultiplier,
		name:   "writer-pool",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named(p.name)
	}
	metrics.UpdateWorkerCount(p.size)
	return p
}

// Size returns the number of concurrent writers.
func (p *Pool) Size() int { return p.size }

// Persist writes every job and waits for all of them. A failed job never
// stops the others. When ctx ends, jobs not yet handed to a writer are
// reported as failed.
func (p *Pool) Persist(ctx context.Context, jobs []Job) Report {
	var (
		mu  sync.Mutex
		rep Report
	)
	record := func(j Job, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			rep.Written++
			return
		}
		rep.Failed++
		rep.Failures = append(rep.Failures, Failure{UserID: j.UserID, Scope: j.Scope(), Err: err})
	}

	queue := make(chan Job)
	var wg sync.WaitGroup
	writers := p.size
	if writers > len(jobs) {
		writers = len(jobs)
	}
	for i := 0; i < writers; i++ {
		w := &writer{id: strconv.Itoa(i), pool: p}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx, queue, record)
		}()
	}

dispatch:
	for i, j := range jobs {
		select {
		case queue <- j:
		case <-ctx.Done():
			for _, rest := range jobs[i:] {
				err := fmt.Errorf("%w: %w", ErrNotDispatched, ctx.Err())
				p.fail(ctx, rest, err)
				record(rest, err)
			}
			break dispatch
		}
	}
	close(queue)
	wg.Wait()

	return rep
}

func (p *Pool) fail(ctx context.Context, j Job, err error) {
	metrics.RecordSnapshotWriteError()
	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", "write_failed")
	p.logger.Warn(ctx, "standing write failed",
		logger.String("user_id", j.UserID),
		logger.String("scope", j.Scope()),
		logger.Error(err),
	)
}

// writer is one goroutine of the pool.
type writer struct {
	id   string
	pool *Pool
}

func (w *writer) run(ctx context.Context, jobs <-chan Job, record func(Job, error)) {
	for j := range jobs {
		err := w.process(ctx, j)
		if err != nil {
			w.pool.fail(ctx, j, err)
		} else {
			metrics.RecordSnapshotWrite()
		}
		record(j, err)
	}
}

// process writes one job. A panicking Writer fails only this job.
func (w *writer) process(ctx context.Context, j Job) (err error) {
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.pool.active.Add(1)))
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			err = fmt.Errorf("writer %s: %w: %v", w.id, ErrWriterPanic, r)
		}
		metrics.UpdateWorkerActiveCount(int(w.pool.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	switch {
	case j.Snapshot != nil:
		if err := w.pool.writer.ApplySnapshot(ctx, j.UserID, *j.Snapshot); err != nil {
			return fmt.Errorf("writer %s: %w", w.id, err)
		}
	case j.Standing != nil:
		if err := w.pool.writer.SetStanding(ctx, j.UserID, *j.Standing); err != nil {
			return fmt.Errorf("writer %s: %w", w.id, err)
		}
	default:
		return ErrEmptyJob
	}
	return nil
}
