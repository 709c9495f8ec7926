package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/learnrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"LEARNRANK_CONFIG",
	"LEARNRANK_ADDR",
	"LEARNRANK_LOG_LEVEL",
	"LEARNRANK_LOG_FORMAT",
	"LEARNRANK_REDIS_ADDR",
	"LEARNRANK_REDIS_DB",
	"LEARNRANK_SNAPSHOT_WORKERS",
	"LEARNRANK_AGGREGATE_WORKERS",
	"LEARNRANK_RECOMPUTE_TIMEOUT_MS",
	"LEARNRANK_SNAPSHOT_INTERVAL_SEC",
}

func clearConfigEnvVars() {
	for _, key := range configEnvVars {
		_ = os.Unsetenv(key)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "learnrank.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		convey.Reset(clearConfigEnvVars)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.RecomputeTimeoutMS, convey.ShouldEqual, 30_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("LEARNRANK_ADDR", ":8080")
			_ = os.Setenv("LEARNRANK_REDIS_ADDR", "redis:6379")
			_ = os.Setenv("LEARNRANK_REDIS_DB", "2")
			_ = os.Setenv("LEARNRANK_SNAPSHOT_WORKERS", "16")
			_ = os.Setenv("LEARNRANK_RECOMPUTE_TIMEOUT_MS", "5000")
			_ = os.Setenv("LEARNRANK_SNAPSHOT_INTERVAL_SEC", "60")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis:6379")
				convey.So(cfg.RedisDB, convey.ShouldEqual, 2)
				convey.So(cfg.SnapshotWorkers, convey.ShouldEqual, 16)
				convey.So(cfg.RecomputeTimeout(), convey.ShouldEqual, 5*time.Second)
				convey.So(cfg.SnapshotInterval(), convey.ShouldEqual, time.Minute)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeFile(t, "addr: \":7070\"\nlog_format: json\naggregate_workers: 3\nredis_key_prefix: lr\n")

			cfg, err := config.Load(ctx, path)

			convey.Convey("Then it should load values from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.AggregateWorkers, convey.ShouldEqual, 3)
				convey.So(cfg.RedisKeyPrefix, convey.ShouldEqual, "lr")
			})

			convey.Convey("And environment variables should win over the file", func() {
				_ = os.Setenv("LEARNRANK_ADDR", ":6060")
				cfg, err := config.Load(ctx, path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.AggregateWorkers, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the file shapes metric names", func() {
			path := writeFile(t, "metrics_prefix: app\nmetrics_labels:\n  env: staging\nmetrics_buckets_ms: [1, 10, 100]\nmetrics_refresh_sec: 2\n")

			cfg, err := config.Load(ctx, path)

			convey.Convey("Then the nested values are decoded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsPrefix, convey.ShouldEqual, "app")
				convey.So(cfg.MetricsLabels, convey.ShouldResemble, map[string]string{"env": "staging"})
				convey.So(cfg.MetricsBucketsMS, convey.ShouldResemble, []float64{1, 10, 100})
				convey.So(cfg.MetricsRefresh(), convey.ShouldEqual, 2*time.Second)
			})
		})

		convey.Convey("When the file comes from LEARNRANK_CONFIG", func() {
			_ = os.Setenv("LEARNRANK_CONFIG", writeFile(t, "snapshot_interval_sec: 30\n"))

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it is read", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.SnapshotIntervalSec, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.Load(ctx, filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then it reports a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value is invalid", func() {
			_ = os.Setenv("LEARNRANK_SNAPSHOT_WORKERS", "0")

			_, err := config.Load(ctx, "")

			convey.Convey("Then it reports an invalid config", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
