package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/okian/lasertrack/internal/adapters/repository/sqlite"
	app "github.com/okian/lasertrack/internal/app"
	"github.com/okian/lasertrack/internal/config"
	"github.com/okian/lasertrack/internal/domain/rating"
	"github.com/okian/lasertrack/internal/loggen"
	"github.com/okian/lasertrack/pkg/logger"
	"github.com/okian/lasertrack/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Default Go collectors are replaced by our own system gauges.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logger.Get().Error(ctx, "command failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
	stop()
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lasertrack",
		Usage: "laser-tag match replay and rating service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file",
				EnvVars: []string{"LASERTRACK_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				return os.Setenv("LASERTRACK_CONFIG", path)
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			importCommand(),
			recomputeCommand(),
			replayCommand(),
			loggen.Command(),
		},
	}
}

// loadConfig reads the layered config and applies its logging settings.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.LogJSON {
		if err := logger.InitWithWriter(os.Stdout, true); err != nil {
			return nil, err
		}
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// serviceOptions maps configuration onto service options.
func serviceOptions(cfg *config.Config) []app.Option {
	return []app.Option{
		app.WithLogger(logger.Get().Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithQueueByteBudget(cfg.QueueBytes),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithImportParallelism(cfg.ImportParallelism),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithRecomputePageSize(cfg.RecomputePageSize),
		app.WithReplayCacheSize(cfg.ReplayCacheSize),
		app.WithBalanceTrials(cfg.BalanceTrials),
		app.WithReplayTiming(cfg.ReupMS, cfg.ScoreTickMS),
		app.WithMinMatchMS(cfg.MinMatchMS),
		app.WithModeTags(cfg.EliminationTag, cfg.BallTag),
		app.WithRatingConstants(rating.Constants{
			Mu:    cfg.RatingMu,
			Sigma: cfg.RatingSigma,
			Beta:  cfg.RatingBeta,
			Tau:   cfg.RatingTau,
			Kappa: cfg.RatingKappa,
			Zeta:  cfg.RatingZeta,
		}),
	}
}

// newService builds the service on the configured store. The SQLite store
// is used when db_path is set, memory otherwise.
func newService(ctx context.Context, cfg *config.Config) (*app.Service, error) {
	opts := serviceOptions(cfg)
	if cfg.DBPath != "" {
		store, err := sqlite.Open(ctx, cfg.DBPath, sqlite.WithLogger(logger.Get().Named("sqlite")))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		opts = append(opts, app.WithStore(store))
	}
	return app.New(opts...), nil
}

// startSystemMetricsUpdater refreshes process gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
	for _, mode := range []string{"elimination", "ball"} {
		if n, ok := stats["ranked_"+mode].(int); ok {
			metrics.UpdateLeaderboardAccounts(mode, n)
		}
	}
}
