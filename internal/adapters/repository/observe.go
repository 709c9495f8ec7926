package repository

import (
	"errors"
	"time"

	"github.com/okian/learnrank/pkg/metrics"
)

// Observe records the latency of a store operation and counts failures.
// Missing users are an expected outcome and are not counted as errors.
func Observe(backend, op string, start time.Time, err error) {
	metrics.RecordRepositoryLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordRepositoryError(backend, op)
	}
}
