package rating

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/pkg/logger"
	"github.com/okian/lasertrack/pkg/metrics"
)

// DefaultPageSize is the number of matches fetched per recompute page.
const DefaultPageSize = 50

// Cursor is a position in chronological match order. The zero value is the
// beginning.
type Cursor struct {
	StartTime time.Time
	ID        string
}

// After reports whether m sorts strictly after c.
func (c Cursor) After(m *model.Match) bool {
	if !m.StartTime.Equal(c.StartTime) {
		return m.StartTime.After(c.StartTime)
	}
	return m.ID > c.ID
}

// MatchSource supplies every match in (StartTime, ID) order and accepts the
// refreshed snapshots.
type MatchSource interface {
	ListMatches(ctx context.Context, after Cursor, limit int) ([]*model.Match, error)
	UpdateRatingSnapshots(ctx context.Context, matchID string, snaps []model.RatingSnapshot) error
}

// RecomputeResult summarizes a recompute run.
type RecomputeResult struct {
	Matches   int // ranked matches replayed
	Refreshed int // unranked matches whose snapshots were rewritten
	Pages     int
	Duration  time.Duration
}

// Recompute resets every rating to baseline and replays all ranked matches
// in chronological order. Unranked matches in the same walk get their
// snapshots rewritten against the rebuilt history without moving ratings.
// It always starts from the beginning.
func (e *Engine) Recompute(ctx context.Context, src MatchSource, pageSize int) (RecomputeResult, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	start := time.Now()
	metrics.RecordRecomputeRun()

	var res RecomputeResult
	if err := e.store.ResetRatings(ctx); err != nil {
		return res, fmt.Errorf("reset ratings: %w", err)
	}

	var cur Cursor
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := src.ListMatches(ctx, cur, pageSize)
		if err != nil {
			return res, fmt.Errorf("list matches after %s: %w", cur.ID, err)
		}
		res.Pages++
		for _, m := range page {
			snaps, err := e.ApplyMatch(ctx, m)
			if err != nil {
				return res, fmt.Errorf("recompute match %s: %w", m.ID, err)
			}
			if err := src.UpdateRatingSnapshots(ctx, m.ID, snaps); err != nil {
				return res, fmt.Errorf("update snapshots for %s: %w", m.ID, err)
			}
			if m.Ranked {
				res.Matches++
				metrics.RecordRecomputeMatch()
			} else {
				res.Refreshed++
			}
			cur = Cursor{StartTime: m.StartTime, ID: m.ID}
		}
		if len(page) < pageSize {
			break
		}
	}

	res.Duration = time.Since(start)
	metrics.UpdateRecomputeDuration(res.Duration.Seconds())
	e.logger.Info(ctx, "recompute finished",
		logger.Int("matches", res.Matches),
		logger.Int("refreshed", res.Refreshed),
		logger.Int("pages", res.Pages),
		logger.Duration("duration", res.Duration))
	return res, nil
}
