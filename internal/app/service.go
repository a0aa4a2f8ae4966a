// Package service wires decoding, replay, rating and storage into the
// operations served by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/lasertrack/internal/adapters/mq/queue"
	"github.com/okian/lasertrack/internal/adapters/mq/worker"
	"github.com/okian/lasertrack/internal/adapters/repository"
	"github.com/okian/lasertrack/internal/domain/dedupe"
	"github.com/okian/lasertrack/internal/domain/eventlog"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/rating"
	"github.com/okian/lasertrack/internal/domain/registry"
	"github.com/okian/lasertrack/internal/domain/replay"
	"github.com/okian/lasertrack/pkg/logger"
	"github.com/okian/lasertrack/pkg/metrics"
)

const (
	tracerName = "github.com/okian/lasertrack/internal/app"

	// importJobTimeout bounds one queued import, rating included.
	importJobTimeout = 2 * time.Minute
)

// modes lists the rated variants.
var modes = []model.Mode{model.ModeElimination, model.ModeBall}

// Service implements the dependencies of the HTTP API and the CLI.
type Service struct {
	mu sync.RWMutex
	// rateMu lets imports rate concurrently while a recompute runs alone.
	rateMu sync.RWMutex

	// Core components
	store       repository.Store
	leaderboard repository.Leaderboard
	deduper     dedupe.Deduper
	locks       *rating.AccountLocks
	engine      *rating.Engine
	decoder     *eventlog.Decoder
	machine     *replay.Machine
	directory   registry.AccountDirectory
	tables      registry.Tables
	replays     *replayCache

	// Async ingestion, created on Start
	importQueue *queue.InMemoryQueue
	pool        *worker.Pool

	// Configuration
	workerCount    int
	queueSize      int
	queueBytes     int64
	dedupeSize     int
	parallelism    int
	maxLimit       int
	pageSize       int
	cacheSize      int
	trials         int
	reupMS         int64
	scoreTickMS    int64
	minMatchMS     int64
	eliminationTag string
	ballTag        string
	constants      rating.Constants

	started bool

	logger logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// New constructs a Service. Synchronous operations work right away; Start
// is only needed for queued imports.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      1_024,
		queueBytes:     256 << 20,
		dedupeSize:     100_000,
		parallelism:    4,
		maxLimit:       100,
		pageSize:       rating.DefaultPageSize,
		cacheSize:      128,
		trials:         rating.DefaultTrials,
		reupMS:         8_000,
		scoreTickMS:    30_000,
		minMatchMS:     180_000,
		eliminationTag: "Space Marines 5",
		ballTag:        "Laserball",
		constants:      rating.DefaultConstants(),
		directory:      registry.IdentityDirectory{},
		tables:         registry.DefaultTables(),
		logger:         logger.GetOrNop(),
		tracer:         otel.Tracer(tracerName),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	s.locks = rating.NewAccountLocks()
	s.leaderboard = repository.NewTreapLeaderboard()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.decoder = eventlog.NewDecoder(
		eventlog.WithLogger(s.logger.Named("eventlog")),
		eventlog.WithModeTags(s.eliminationTag, s.ballTag),
	)
	s.machine = replay.New(
		replay.WithReup(s.reupMS),
		replay.WithScoreTick(s.scoreTickMS),
		replay.WithLogger(s.logger.Named("replay")),
	)
	s.engine = rating.NewEngine(s.store,
		rating.WithConstants(s.constants),
		rating.WithLocks(s.locks),
		rating.WithLogger(s.logger.Named("rating")),
		rating.WithClock(s.now),
	)
	s.replays = newReplayCache(s.cacheSize)

	return s
}

// Start rebuilds the leaderboard from stored ratings and launches the
// import workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting lasertrack service...")

	if err := s.rebuildLeaderboard(ctx); err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}

	s.importQueue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithByteBudget(s.queueBytes),
	)
	s.pool = worker.NewPool(s.workerCount, s.importQueue, s, worker.WithJobTimeout(importJobTimeout))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "lasertrack service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the import queue and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.started {
		s.logger.Info(ctx, "stopping lasertrack service...")
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.started = false
	}
	if err := s.store.Close(); err != nil && !errors.Is(err, repository.ErrClosed) {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.logger.Info(ctx, "lasertrack service stopped")
	return errors.Join(errs...)
}

// Process implements worker.Processor for queued imports.
func (s *Service) Process(ctx context.Context, job queue.Job) error {
	res, err := s.Import(ctx, job.Raw, ImportOptions{Source: job.Source, Mode: job.Mode, Ranked: job.Ranked})
	if err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	s.logger.Info(ctx, "queued import finished",
		logger.String("job", job.ID),
		logger.String("match", res.MatchID),
		logger.Bool("duplicate", res.Duplicate),
		logger.Duration("waited", s.now().Sub(job.ReceivedAt)),
	)
	return nil
}

// Submit queues a raw log for asynchronous import and returns the job id.
func (s *Service) Submit(ctx context.Context, raw []byte, opts ImportOptions) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return "", ErrNotStarted
	}
	job := queue.NewJob(opts.Source, raw, opts.Mode, opts.Ranked)
	if err := s.importQueue.Enqueue(ctx, job); err != nil {
		if errors.Is(err, queue.ErrFull) {
			return "", fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return "", fmt.Errorf("enqueue %s: %w", job.ID, err)
	}
	s.logger.Debug(ctx, "import queued",
		logger.String("job", job.ID),
		logger.String("source", job.Source),
		logger.Int("bytes", len(raw)),
	)
	return job.ID, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.deduper.Size(),
		"replayCache": s.replays.len(),
		"lockedIds":   s.locks.Len(),
	}

	if n, err := s.store.CountMatches(ctx); err == nil {
		stats["matches"] = n
	}
	for _, mode := range modes {
		stats["ranked_"+mode.String()] = s.leaderboard.Count(ctx, mode)
	}

	if s.started {
		queueLen := s.importQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["queuedBytes"] = s.importQueue.Bytes()
		stats["processed"] = s.pool.Processed()
		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

// rebuildLeaderboard reloads every stored rating into the leaderboard.
func (s *Service) rebuildLeaderboard(ctx context.Context) error {
	s.leaderboard.Reset(ctx)
	for _, mode := range modes {
		ratings, err := s.store.ListRatings(ctx, mode)
		if err != nil {
			return fmt.Errorf("list %s ratings: %w", mode, err)
		}
		for _, r := range ratings {
			if err := s.leaderboard.Upsert(ctx, r); err != nil {
				return fmt.Errorf("rank %s: %w", r.AccountID, err)
			}
		}
	}
	return nil
}
