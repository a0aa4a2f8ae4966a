package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/lasertrack/internal/adapters/repository"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/rating"
	"github.com/okian/lasertrack/internal/domain/registry"
	"github.com/okian/lasertrack/internal/domain/replay"
	"github.com/okian/lasertrack/internal/domain/stats"
	"github.com/okian/lasertrack/internal/domain/types"
	"github.com/okian/lasertrack/pkg/logger"
	"github.com/okian/lasertrack/pkg/metrics"
)

// GetMatch returns a stored match.
func (s *Service) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	return s.store.GetMatch(ctx, id)
}

// Replay returns the replay script of a stored match. Scripts are memoized
// per match id. Unknown ids fail with repository.ErrMatchNotFound.
func (s *Service) Replay(ctx context.Context, id string) (*replay.Script, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Replay", trace.WithAttributes(attribute.String("match_id", id)))
	defer span.End()

	return s.replays.load(ctx, id, func(ctx context.Context) (*replay.Script, error) {
		m, err := s.store.GetMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		reg, err := registry.FromMatch(m, registry.WithLogger(s.logger.Named("registry")), registry.WithTables(s.tables))
		if err != nil {
			return nil, fmt.Errorf("registry for %s: %w", id, err)
		}
		return s.machine.Run(ctx, m, reg)
	})
}

// MatchStats returns the aggregates of a stored match.
func (s *Service) MatchStats(ctx context.Context, id string) (stats.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "Service.MatchStats", trace.WithAttributes(attribute.String("match_id", id)))
	defer span.End()

	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return stats.Summary{}, err
	}
	script, err := s.Replay(ctx, id)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(m, script), nil
}

// Leaderboard returns the top limit accounts of mode.
func (s *Service) Leaderboard(ctx context.Context, mode model.Mode, limit int) ([]repository.Entry, error) {
	if limit < 1 || limit > s.maxLimit {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidLimit, limit, s.maxLimit)
	}
	if mode == model.ModeUnknown {
		return nil, fmt.Errorf("%w: mode is required", ErrInvalidRequest)
	}
	start := time.Now()
	defer func() { metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Microseconds()) / 1000) }()
	return s.leaderboard.TopN(ctx, mode, limit)
}

// Rank returns the leaderboard row of one account.
func (s *Service) Rank(ctx context.Context, mode model.Mode, accountID string) (repository.Entry, error) {
	if mode == model.ModeUnknown {
		return repository.Entry{}, fmt.Errorf("%w: mode is required", ErrInvalidRequest)
	}
	return s.leaderboard.Rank(ctx, mode, accountID)
}

// Rating returns the stored rating of an account, or the baseline for an
// account that has not played a ranked match in mode.
func (s *Service) Rating(ctx context.Context, mode model.Mode, accountID string) (model.Rating, error) {
	r, err := s.store.GetRating(ctx, accountID, mode)
	if errors.Is(err, rating.ErrRatingNotFound) {
		return model.Rating{AccountID: accountID, Mode: mode, General: s.engine.Model().Baseline()}, nil
	}
	if err != nil {
		return model.Rating{}, fmt.Errorf("load rating %s: %w", accountID, err)
	}
	return r, nil
}

// Predict returns the win probability of each team of accounts.
func (s *Service) Predict(ctx context.Context, mode model.Mode, teams [][]string) (types.Prediction, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Predict", trace.WithAttributes(attribute.Int("teams", len(teams))))
	defer span.End()

	if mode == model.ModeUnknown {
		return types.Prediction{}, fmt.Errorf("%w: mode is required", ErrInvalidRequest)
	}
	dists := make([][]model.Distribution, len(teams))
	for i, team := range teams {
		for _, id := range team {
			r, err := s.Rating(ctx, mode, id)
			if err != nil {
				return types.Prediction{}, err
			}
			dists[i] = append(dists[i], r.General)
		}
	}
	probs, err := s.engine.Model().PredictWin(dists)
	if err != nil {
		return types.Prediction{}, err
	}
	return types.Prediction{Mode: mode, Teams: teams, Probabilities: probs}, nil
}

// Balance proposes a fair split of the requested accounts. Elimination
// lineups also get a role per account.
func (s *Service) Balance(ctx context.Context, req types.BalanceRequest) (rating.Lineup, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Balance", trace.WithAttributes(attribute.Int("accounts", len(req.Accounts))))
	defer span.End()

	if req.Mode == model.ModeUnknown {
		return rating.Lineup{}, fmt.Errorf("%w: mode is required", ErrInvalidRequest)
	}
	pool := make([]model.Rating, 0, len(req.Accounts))
	byID := make(map[string]model.Rating, len(req.Accounts))
	for _, id := range req.Accounts {
		if _, dup := byID[id]; dup {
			return rating.Lineup{}, fmt.Errorf("%w: account %s listed twice", ErrInvalidRequest, id)
		}
		r, err := s.Rating(ctx, req.Mode, id)
		if err != nil {
			return rating.Lineup{}, err
		}
		byID[id] = r
		pool = append(pool, r)
	}

	trials := req.Trials
	if trials <= 0 {
		trials = s.trials
	}
	seed := req.Seed
	if seed == 0 {
		seed = uint64(s.now().UnixNano())
	}
	m := s.engine.Model()
	lineup, err := m.Balance(pool, req.Teams, trials, rand.New(rand.NewPCG(seed, seed)))
	if err != nil {
		return rating.Lineup{}, err
	}
	if req.Mode == model.ModeElimination {
		lineup.Roles = m.AssignRoles(lineup.Teams, byID)
	}
	return lineup, nil
}

// Recompute resets every rating and replays all ranked matches in order,
// rewriting unranked snapshots along the way. Imports wait while it runs.
func (s *Service) Recompute(ctx context.Context) (rating.RecomputeResult, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Recompute")
	defer span.End()

	s.rateMu.Lock()
	defer s.rateMu.Unlock()

	s.logger.Info(ctx, "recompute started", logger.Int("pageSize", s.pageSize))
	res, err := s.engine.Recompute(ctx, s.store, s.pageSize)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	if err := s.rebuildLeaderboard(ctx); err != nil {
		return res, fmt.Errorf("rebuild leaderboard: %w", err)
	}
	span.SetAttributes(
		attribute.Int("matches", res.Matches),
		attribute.Int("refreshed", res.Refreshed),
	)
	return res, nil
}
