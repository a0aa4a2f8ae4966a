package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/okian/lasertrack/internal/adapters/repository"
	"github.com/okian/lasertrack/internal/domain/dedupe"
	"github.com/okian/lasertrack/internal/domain/eventlog"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/registry"
	"github.com/okian/lasertrack/internal/domain/replay"
	"github.com/okian/lasertrack/internal/domain/stats"
	"github.com/okian/lasertrack/pkg/logger"
	"github.com/okian/lasertrack/pkg/metrics"
)

// ImportOptions controls how one log is imported.
type ImportOptions struct {
	// Source names the log in results and logs, e.g. a file path.
	Source string
	// Mode is the expected variant. ModeUnknown accepts either.
	Mode model.Mode
	// Ranked asks for rating updates. A match still stays unranked unless
	// at least two playing teams field an account.
	Ranked bool
}

// ImportResult describes the outcome of one import.
type ImportResult struct {
	Source    string                 `json:"source,omitempty"`
	MatchID   string                 `json:"match_id,omitempty"`
	Mode      model.Mode             `json:"mode"`
	Ranked    bool                   `json:"ranked"`
	Winner    int                    `json:"winner"`
	Duplicate bool                   `json:"duplicate"`
	Skipped   int                    `json:"skipped_lines"`
	Snapshots []model.RatingSnapshot `json:"snapshots,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// BatchItem is one log of a batch import.
type BatchItem struct {
	Source string
	Raw    []byte
}

// Import decodes, validates, stores and rates one log. Re-importing a log
// with a known (start time, arena) returns the stored match with Duplicate
// set.
func (s *Service) Import(ctx context.Context, raw []byte, opts ImportOptions) (ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Import", trace.WithAttributes(attribute.String("source", opts.Source)))
	defer span.End()

	start := time.Now()
	defer func() { metrics.RecordImportLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	l, err := s.prepare(ctx, raw, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ImportResult{Source: opts.Source, Winner: model.NoWinner}, err
	}
	res, err := s.commit(ctx, l, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(attribute.String("match_id", res.MatchID), attribute.Bool("duplicate", res.Duplicate))
	return res, nil
}

// ImportBatch decodes items concurrently, then stores and rates them one at
// a time in chronological order so ratings match a one-by-one import. Per
// item failures are reported in the results; the error is only set when
// ctx ends.
func (s *Service) ImportBatch(ctx context.Context, items []BatchItem, opts ImportOptions) ([]ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ImportBatch", trace.WithAttributes(attribute.Int("items", len(items))))
	defer span.End()

	results := make([]ImportResult, len(items))
	logs := make([]*eventlog.Log, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o := opts
			o.Source = item.Source
			l, err := s.prepare(gctx, item.Raw, o)
			if err != nil {
				results[i] = ImportResult{Source: item.Source, Winner: model.NoWinner, Error: err.Error()}
				return nil
			}
			logs[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	order := make([]int, 0, len(items))
	for i, l := range logs {
		if l != nil {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return logs[order[a]].Mission.Start.Before(logs[order[b]].Mission.Start)
	})

	for _, i := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o := opts
		o.Source = items[i].Source
		res, err := s.commit(ctx, logs[i], o)
		if err != nil {
			res.Error = err.Error()
		}
		results[i] = res
	}
	return results, nil
}

// prepare decodes raw and applies the mode and false-start policies.
func (s *Service) prepare(ctx context.Context, raw []byte, opts ImportOptions) (*eventlog.Log, error) {
	l, err := s.decoder.Decode(ctx, bytes.NewReader(raw))
	if err != nil {
		s.reject(ctx, opts.Source, "decode", err)
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	if err := l.Check(opts.Mode, s.minMatchMS); err != nil {
		reason := "policy"
		switch {
		case errors.Is(err, eventlog.ErrModeMismatch):
			reason = "mode_mismatch"
		case errors.Is(err, eventlog.ErrFalseStart):
			reason = "false_start"
		}
		s.reject(ctx, opts.Source, reason, err)
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return l, nil
}

func (s *Service) reject(ctx context.Context, source, reason string, err error) {
	metrics.RecordMatchRejected(reason)
	s.logger.Warn(ctx, "match rejected",
		logger.String("source", source),
		logger.String("reason", reason),
		logger.Error(err),
	)
}

// commit claims the match key, stores the match and applies its ratings.
func (s *Service) commit(ctx context.Context, l *eventlog.Log, opts ImportOptions) (ImportResult, error) {
	res := ImportResult{Source: opts.Source, Mode: l.Mode, Winner: model.NoWinner, Skipped: l.Skipped}
	key := dedupe.Key(l.Key())

	if s.deduper.SeenAndRecord(ctx, key) {
		return s.duplicate(ctx, l.Key(), res), nil
	}
	_, err := s.store.FindMatchByKey(ctx, l.Key())
	switch {
	case err == nil:
		return s.duplicate(ctx, l.Key(), res), nil
	case !errors.Is(err, repository.ErrMatchNotFound):
		s.deduper.Unrecord(ctx, key)
		return res, fmt.Errorf("look up match %s: %w", key, err)
	}

	m, script, err := s.build(ctx, l, opts)
	if err != nil {
		s.deduper.Unrecord(ctx, key)
		return res, err
	}

	// Storing and rating happen under one read lock so a recompute sees
	// the match either not at all or already rated.
	s.rateMu.RLock()
	defer s.rateMu.RUnlock()

	if err := s.store.CreateMatch(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicateMatch) {
			return s.duplicate(ctx, l.Key(), res), nil
		}
		s.deduper.Unrecord(ctx, key)
		return res, fmt.Errorf("store match %s: %w", key, err)
	}
	s.replays.put(m.ID, script)

	res.MatchID, res.Ranked, res.Winner = m.ID, m.Ranked, m.Winner
	metrics.RecordMatchImported(m.Mode.String())

	snaps, err := s.rate(ctx, m)
	if err != nil {
		s.logger.Error(ctx, "rating failed for stored match",
			logger.String("match", m.ID),
			logger.Error(err),
		)
		return res, fmt.Errorf("rate match %s: %w", m.ID, err)
	}
	res.Snapshots = snaps

	s.logger.Info(ctx, "match imported",
		logger.String("match", m.ID),
		logger.String("arena", m.Arena),
		logger.String("mode", m.Mode.String()),
		logger.Bool("ranked", m.Ranked),
		logger.Int("winner", m.Winner),
	)
	return res, nil
}

func (s *Service) duplicate(ctx context.Context, key model.MatchKey, res ImportResult) ImportResult {
	metrics.RecordMatchDuplicate()
	res.Duplicate = true
	existing, err := s.store.FindMatchByKey(ctx, key)
	if err != nil {
		// The first import of this key is still in flight.
		s.logger.Debug(ctx, "duplicate of a match not yet stored", logger.String("key", key.String()))
		return res
	}
	res.MatchID, res.Mode, res.Ranked, res.Winner = existing.ID, existing.Mode, existing.Ranked, existing.Winner
	res.Snapshots = existing.Snapshots
	return res
}

// build resolves entities and replays the match once. A replay that aborts
// on an unknown actor rejects the whole match.
func (s *Service) build(ctx context.Context, l *eventlog.Log, opts ImportOptions) (*model.Match, *replay.Script, error) {
	reg, err := registry.Build(ctx, l, s.directory,
		registry.WithLogger(s.logger.Named("registry")),
		registry.WithTables(s.tables),
	)
	if err != nil {
		s.reject(ctx, opts.Source, "integrity", err)
		return nil, nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	m := l.Match()
	m.ID = uuid.NewString()
	m.ImportedAt = s.now().UTC()
	m.Entities = reg.Snapshot()

	script, err := s.machine.Run(ctx, m, reg)
	if err != nil {
		s.reject(ctx, opts.Source, "integrity", err)
		return nil, nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	m.Winner = stats.DecideWinner(m)
	m.Ranked = opts.Ranked && rankable(reg)
	return m, script, nil
}

// rankable reports whether at least two playing teams field an account.
func rankable(reg *registry.Registry) bool {
	teams := 0
	for _, t := range reg.PlayingTeams() {
		for _, e := range reg.TeamMembers(t) {
			if e.Player() && !e.Guest() {
				teams++
				break
			}
		}
	}
	return teams >= 2
}

// rate applies m to the live ratings, records the snapshots on the stored
// match and refreshes the leaderboard rows it touched. Callers hold
// rateMu for reading.
func (s *Service) rate(ctx context.Context, m *model.Match) ([]model.RatingSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "Service.rate")
	defer span.End()

	snaps, err := s.engine.ApplyMatch(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateRatingSnapshots(ctx, m.ID, snaps); err != nil {
		return nil, fmt.Errorf("record snapshots: %w", err)
	}
	if m.Ranked {
		ids := make([]string, len(snaps))
		for i, snap := range snaps {
			ids[i] = snap.AccountID
		}
		s.refreshLeaderboard(ctx, m.Mode, ids)
	}
	return snaps, nil
}

// refreshLeaderboard re-reads ids from the store while holding their
// account locks.
func (s *Service) refreshLeaderboard(ctx context.Context, mode model.Mode, ids []string) {
	unlock := s.locks.Lock(ids)
	defer unlock()
	for _, id := range ids {
		r, err := s.store.GetRating(ctx, id, mode)
		if err != nil {
			s.logger.Warn(ctx, "leaderboard refresh skipped account",
				logger.String("account", id),
				logger.Error(err),
			)
			continue
		}
		if err := s.leaderboard.Upsert(ctx, r); err != nil {
			s.logger.Warn(ctx, "leaderboard upsert failed",
				logger.String("account", id),
				logger.Error(err),
			)
		}
	}
}
