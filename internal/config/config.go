// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New(ctx); Load layers a YAML file and env vars on top.
// - Every field carries a flat koanf tag matching its env suffix.
package config

import (
	"context"
	"fmt"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogJSON switches the log handler to JSON records.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// OTelEndpoint is the OTLP/HTTP trace collector URL. Empty disables export.
	OTelEndpoint string `koanf:"otel_endpoint"`

	// DBPath selects the SQLite file. Empty keeps everything in memory.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the in-memory import queue.
	QueueSize int `koanf:"queue_size"`
	// QueueBytes caps the raw log bytes buffered by the import queue.
	QueueBytes int64 `koanf:"queue_bytes"`

	// WorkerCount sets the number of import workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps the in-process (start_time, arena) claim index.
	DedupeSize int `koanf:"dedupe_size"`

	// ImportParallelism bounds concurrent decoding in batch imports.
	ImportParallelism int `koanf:"import_parallelism"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ReupMS is the cooldown before a downed entity returns to play.
	ReupMS int64 `koanf:"reup_ms"`
	// ScoreTickMS is the sampling interval of the team score series.
	ScoreTickMS int64 `koanf:"score_tick_ms"`
	// MinMatchMS is the false-start floor applied to matches that ended early.
	MinMatchMS int64 `koanf:"min_match_ms"`

	// EliminationTag and BallTag are matched against the mission description.
	EliminationTag string `koanf:"elimination_tag"`
	BallTag        string `koanf:"ball_tag"`

	// RecomputePageSize is the page size used by full rating recomputation.
	RecomputePageSize int `koanf:"recompute_page_size"`
	// ReplayCacheSize bounds the number of memoized replay scripts.
	ReplayCacheSize int `koanf:"replay_cache_size"`
	// BalanceTrials is the default number of partitions tried by team balancing.
	BalanceTrials int `koanf:"balance_trials"`

	// Rating model constants.
	RatingMu    float64 `koanf:"rating_mu"`
	RatingSigma float64 `koanf:"rating_sigma"`
	RatingBeta  float64 `koanf:"rating_beta"`
	RatingTau   float64 `koanf:"rating_tau"`
	RatingKappa float64 `koanf:"rating_kappa"`
	RatingZeta  float64 `koanf:"rating_zeta"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           1_024,
		QueueBytes:          256 << 20,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          100_000,
		ImportParallelism:   4,
		MaxLeaderboardLimit: 100,
		ReupMS:              8_000,
		ScoreTickMS:         30_000,
		MinMatchMS:          180_000,
		EliminationTag:      "Space Marines 5",
		BallTag:             "Laserball",
		RecomputePageSize:   50,
		ReplayCacheSize:     128,
		BalanceTrials:       500,
		RatingMu:            25.0,
		RatingSigma:         25.0 / 3.0,
		RatingBeta:          25.0 / 6.0,
		RatingTau:           25.0 / 275.0,
		RatingKappa:         0.0001,
		RatingZeta:          0.09,
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ReupMS <= 0:
		return fmt.Errorf("%w: reup_ms must be positive", ErrInvalidConfig)
	case c.ScoreTickMS <= 0:
		return fmt.Errorf("%w: score_tick_ms must be positive", ErrInvalidConfig)
	case c.RecomputePageSize <= 0:
		return fmt.Errorf("%w: recompute_page_size must be positive", ErrInvalidConfig)
	case c.RatingSigma <= 0 || c.RatingBeta <= 0:
		return fmt.Errorf("%w: rating sigma and beta must be positive", ErrInvalidConfig)
	}
	return nil
}
