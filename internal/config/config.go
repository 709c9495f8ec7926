// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// RedisAddr selects the Redis store. Empty keeps data in memory.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// RedisKeyPrefix namespaces every key written to Redis.
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// AggregateWorkers bounds parallel score aggregation.
	AggregateWorkers int `koanf:"aggregate_workers"`

	// SnapshotWorkers bounds parallel standing writes.
	SnapshotWorkers int `koanf:"snapshot_workers"`

	// RecomputeTimeoutMS bounds an administrator recompute.
	RecomputeTimeoutMS int `koanf:"recompute_timeout_ms"`

	// SnapshotIntervalSec refreshes every scope in the background. Zero
	// disables the refresher.
	SnapshotIntervalSec int `koanf:"snapshot_interval_sec"`

	// ShutdownTimeoutMS bounds graceful HTTP shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// Metric naming. Series are exported as namespace_subsystem_prefix_name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	MetricsPrefix    string `koanf:"metrics_prefix"`

	// MetricsLabels are constant labels attached to every series.
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// MetricsBucketsMS overrides the latency histogram buckets.
	MetricsBucketsMS []float64 `koanf:"metrics_buckets_ms"`

	// MetricsRefreshSec is how often the system gauges are sampled.
	MetricsRefreshSec int `koanf:"metrics_refresh_sec"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		RedisKeyPrefix:      "learnrank",
		AggregateWorkers:    runtime.NumCPU() * 2,
		SnapshotWorkers:     runtime.NumCPU() * 2,
		RecomputeTimeoutMS:  30_000,
		SnapshotIntervalSec: 0,
		ShutdownTimeoutMS:   10_000,
		MetricsNamespace:    "learnrank",
		MetricsSubsystem:    "leaderboard",
		MetricsRefreshSec:   10,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.AggregateWorkers < 1:
		return fmt.Errorf("%w: aggregate_workers must be at least 1", ErrInvalidConfig)
	case c.SnapshotWorkers < 1:
		return fmt.Errorf("%w: snapshot_workers must be at least 1", ErrInvalidConfig)
	case c.RecomputeTimeoutMS <= 0:
		return fmt.Errorf("%w: recompute_timeout_ms must be positive", ErrInvalidConfig)
	case c.SnapshotIntervalSec < 0:
		return fmt.Errorf("%w: snapshot_interval_sec must not be negative", ErrInvalidConfig)
	case c.ShutdownTimeoutMS <= 0:
		return fmt.Errorf("%w: shutdown_timeout_ms must be positive", ErrInvalidConfig)
	case c.RedisDB < 0:
		return fmt.Errorf("%w: redis_db must not be negative", ErrInvalidConfig)
	case c.RedisAddr != "" && c.RedisKeyPrefix == "":
		return fmt.Errorf("%w: redis_key_prefix must not be empty", ErrInvalidConfig)
	case c.MetricsNamespace == "":
		return fmt.Errorf("%w: metrics_namespace must not be empty", ErrInvalidConfig)
	case c.MetricsRefreshSec < 1:
		return fmt.Errorf("%w: metrics_refresh_sec must be at least 1", ErrInvalidConfig)
	}
	for i := 1; i < len(c.MetricsBucketsMS); i++ {
		if c.MetricsBucketsMS[i] <= c.MetricsBucketsMS[i-1] {
			return fmt.Errorf("%w: metrics_buckets_ms must be strictly increasing", ErrInvalidConfig)
		}
	}
	return nil
}

// MetricsRefresh returns the system gauge sampling period.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshSec) * time.Second
}

// RecomputeTimeout returns the recompute budget.
func (c *Config) RecomputeTimeout() time.Duration {
	return time.Duration(c.RecomputeTimeoutMS) * time.Millisecond
}

// SnapshotInterval returns the background refresh period.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSec) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}
