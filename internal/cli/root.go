// Package cli implements the learnrank command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	repository "github.com/okian/learnrank/internal/adapters/repository"
	"github.com/okian/learnrank/internal/adapters/repository/redisstore"
	service "github.com/okian/learnrank/internal/app"
	"github.com/okian/learnrank/internal/config"
	"github.com/okian/learnrank/pkg/logger"
	"github.com/okian/learnrank/pkg/metrics"
	"github.com/spf13/cobra"
)

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// env carries what every subcommand shares.
type env struct {
	configPath string
	cfg        *config.Config
}

// NewRootCmd builds the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	e := &env{}
	cmd := &cobra.Command{
		Use:           "learnrank",
		Short:         "Leaderboard scoring and ranking engine for a learning platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd.Context(), cmd.ErrOrStderr())
		},
	}

	envConfig := os.Getenv(config.EnvConfig)
	cmd.PersistentFlags().StringVar(&e.configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(newServeCmd(e))
	cmd.AddCommand(newRecomputeCmd(e))
	cmd.AddCommand(newSnapshotCmd(e))
	cmd.AddCommand(newSeedCmd(e))
	return cmd
}

// setup loads configuration and initializes logging.
func (e *env) setup(ctx context.Context, stderr io.Writer) error {
	cfg, err := config.Load(ctx, e.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.InitWithWriter(stderr, cfg.LogFormat); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithMetricPrefix(cfg.MetricsPrefix),
		metrics.WithCustomLabels(cfg.MetricsLabels),
		metrics.WithHistogramBuckets(cfg.MetricsBucketsMS),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
	)
	e.cfg = cfg
	return nil
}

// openStore returns the Redis store when configured and an in-memory one
// otherwise.
func (e *env) openStore(ctx context.Context) (repository.Store, error) {
	if e.cfg.RedisAddr == "" {
		logger.Get().Info(ctx, "redis_addr not set; using in-memory store")
		return repository.NewMemoryStore(), nil
	}
	store, err := redisstore.Open(ctx, e.cfg.RedisAddr, e.cfg.RedisPassword, e.cfg.RedisDB,
		redisstore.WithKeyPrefix(e.cfg.RedisKeyPrefix),
		redisstore.WithLogger(logger.Get().Named("redis")))
	if err != nil {
		return nil, fmt.Errorf("open redis store: %w", err)
	}
	return store, nil
}

// newService builds a started service over store.
func (e *env) newService(ctx context.Context, store repository.Store, opts ...service.Option) (*service.Service, error) {
	opts = append([]service.Option{
		service.WithStore(store),
		service.WithLogger(logger.Get().Named("service")),
		service.WithAggregateWorkers(e.cfg.AggregateWorkers),
		service.WithSnapshotWorkers(e.cfg.SnapshotWorkers),
		service.WithRecomputeTimeout(e.cfg.RecomputeTimeout()),
	}, opts...)
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start service: %w", err)
	}
	return svc, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
