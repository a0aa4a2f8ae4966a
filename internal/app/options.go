package service

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/okian/lasertrack/internal/adapters/repository"
	"github.com/okian/lasertrack/internal/domain/rating"
	"github.com/okian/lasertrack/internal/domain/registry"
	"github.com/okian/lasertrack/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of import workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the import queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithQueueByteBudget caps the raw log bytes waiting in the import queue.
func WithQueueByteBudget(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueBytes = n
		}
	}
}

// WithDedupeSize caps the in-process match claim index.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithImportParallelism bounds concurrent decoding in ImportBatch.
func WithImportParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithMaxLeaderboardLimit caps the limit accepted by Leaderboard.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithRecomputePageSize sets the page size of full recomputation.
func WithRecomputePageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithReplayCacheSize bounds the number of memoized replays. Zero disables
// caching.
func WithReplayCacheSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.cacheSize = n
		}
	}
}

// WithBalanceTrials sets the default number of partitions tried by Balance.
func WithBalanceTrials(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.trials = n
		}
	}
}

// WithReplayTiming sets the reup cooldown and the score sampling tick.
func WithReplayTiming(reupMS, scoreTickMS int64) Option {
	return func(s *Service) {
		if reupMS > 0 {
			s.reupMS = reupMS
		}
		if scoreTickMS > 0 {
			s.scoreTickMS = scoreTickMS
		}
	}
}

// WithMinMatchMS sets the false-start floor.
func WithMinMatchMS(ms int64) Option {
	return func(s *Service) {
		if ms >= 0 {
			s.minMatchMS = ms
		}
	}
}

// WithModeTags sets the mission description tags identifying each mode.
func WithModeTags(elimination, ball string) Option {
	return func(s *Service) {
		if elimination != "" {
			s.eliminationTag = elimination
		}
		if ball != "" {
			s.ballTag = ball
		}
	}
}

// WithRatingConstants overrides the rating model constants.
func WithRatingConstants(c rating.Constants) Option {
	return func(s *Service) {
		s.constants = c
	}
}

// WithStore sets the match and rating store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDirectory sets the account directory used to resolve players.
func WithDirectory(dir registry.AccountDirectory) Option {
	return func(s *Service) {
		if dir != nil {
			s.directory = dir
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer used for service spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock sets the clock used for import timestamps and rating updates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
