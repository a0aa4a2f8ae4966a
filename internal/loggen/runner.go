package loggen

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/pkg/logger"
)

// Run generates the configured matches, optionally writes them to disk and,
// when a base URL is set, loads them into the service and verifies the
// resulting leaderboards.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.GetOrNop()

	gen, err := NewGenerator(*cfg, log.Named("loggen"))
	if err != nil {
		return stats, err
	}
	matches, err := gen.Generate(ctx)
	if err != nil {
		return stats, fmt.Errorf("match generation failed: %w", err)
	}
	stats.MatchesGenerated = len(matches)

	if cfg.OutputDir != "" {
		paths, err := WriteFiles(cfg.OutputDir, matches)
		if err != nil {
			return stats, err
		}
		log.Info(ctx, "match logs written", logger.String("dir", cfg.OutputDir), logger.Int("files", len(paths)))
	}

	if cfg.BaseURL != "" {
		if err := load(ctx, cfg, gen.Roster(), matches, stats); err != nil {
			return stats, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func load(ctx context.Context, cfg *Config, roster []Player, matches []Match, stats *Stats) error {
	log := logger.GetOrNop()
	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("matches", len(matches)),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	client := newHTTPClient(cfg)
	if err := checkServiceHealth(ctx, client); err != nil {
		return err
	}
	before, err := processedCount(ctx, client)
	if err != nil {
		return err
	}
	if err := submitMatches(ctx, cfg, client, matches, stats); err != nil {
		return fmt.Errorf("match submission failed: %w", err)
	}
	if err := waitForDrain(ctx, cfg, client, before+int64(stats.MatchesAccepted)); err != nil {
		return err
	}

	for _, mode := range []model.Mode{model.ModeElimination, model.ModeBall} {
		var played []Match
		for _, m := range matches {
			if m.Mode == mode {
				played = append(played, m)
			}
		}
		if len(played) == 0 {
			continue
		}
		if err := verifyMode(ctx, cfg, client, mode, roster, played, stats); err != nil {
			return err
		}
	}
	return nil
}

func verifyMode(ctx context.Context, cfg *Config, client *HTTPClient, mode model.Mode, roster []Player, played []Match, stats *Stats) error {
	top, err := getLeaderboard(ctx, cfg, client, mode)
	if err != nil {
		return err
	}
	stats.LeaderboardEntries += len(top)

	ranks, err := retrieveRankings(ctx, cfg, client, mode, roster)
	if err != nil {
		return fmt.Errorf("ranking retrieval failed: %w", err)
	}
	stats.RankingsRetrieved += len(ranks)

	for id := range expectedRanked(played) {
		if _, ok := ranks[id]; !ok {
			return fmt.Errorf("%w: %s played %s but is unranked", ErrVerification, id, mode)
		}
	}
	if err := verifyLeaderboard(top, ranks); err != nil {
		return fmt.Errorf("%s leaderboard: %w", mode, err)
	}
	logger.GetOrNop().Info(ctx, "leaderboard verified", logger.String("mode", mode.String()), logger.Int("rows", len(top)))
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	if _, err := client.getJSON(ctx, "/healthz", nil); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

func processedCount(ctx context.Context, client *HTTPClient) (int64, error) {
	var stats map[string]any
	if _, err := client.getJSON(ctx, "/stats?keys=processed", &stats); err != nil {
		return 0, fmt.Errorf("read stats: %w", err)
	}
	n, _ := stats["processed"].(float64)
	return int64(n), nil
}

// waitForDrain polls /stats until the worker pool has processed want jobs.
func waitForDrain(ctx context.Context, cfg *Config, client *HTTPClient, want int64) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.DrainTimeout)
	defer cancel()

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		got, err := processedCount(ctx, client)
		if err == nil && got >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("imports not drained (%d of %d): %w", got, want, ctx.Err())
		case <-ticker.C:
		}
	}
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.MatchesSubmitted > 0 {
		acceptRate = float64(stats.MatchesAccepted) / float64(stats.MatchesSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.MatchesSubmitted) / stats.Duration.Seconds()
	}
	logger.GetOrNop().Info(ctx, "final statistics",
		logger.Int("matchesGenerated", stats.MatchesGenerated),
		logger.Int("matchesSubmitted", stats.MatchesSubmitted),
		logger.Int("matchesAccepted", stats.MatchesAccepted),
		logger.Int("matchesFailed", stats.MatchesFailed),
		logger.Int("rankingsRetrieved", stats.RankingsRetrieved),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("matchesPerSecond", perSecond))
}
