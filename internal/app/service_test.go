package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lasertrack/internal/adapters/repository"
	service "github.com/okian/lasertrack/internal/app"
	"github.com/okian/lasertrack/internal/domain/eventlog"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/types"
	"github.com/okian/lasertrack/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func newService(opts ...service.Option) *service.Service {
	return service.New(append([]service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
		service.WithClock(fixedClock),
	}, opts...)...)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := newService()

		Convey("Then queued imports are refused before Start", func() {
			_, err := svc.Submit(ctx, newDuel(epoch, "acc-a", "acc-b").bytes(), service.ImportOptions{Ranked: true})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When starting and stopping the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.Start(ctx), ShouldBeNil)

			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Import(t *testing.T) {
	Convey("Given a service and a ranked duel log", t, func() {
		ctx := context.Background()
		svc := newService()
		raw := newDuel(epoch, "acc-a", "acc-b").bytes()

		Convey("When importing it", func() {
			res, err := svc.Import(ctx, raw, service.ImportOptions{Source: "duel.tdf", Ranked: true})
			So(err, ShouldBeNil)

			Convey("Then the match is stored, ranked and rated", func() {
				So(res.Duplicate, ShouldBeFalse)
				So(res.MatchID, ShouldNotBeEmpty)
				So(res.Mode, ShouldEqual, model.ModeElimination)
				So(res.Ranked, ShouldBeTrue)
				So(res.Winner, ShouldEqual, 0)
				So(res.Snapshots, ShouldHaveLength, 2)

				m, err := svc.GetMatch(ctx, res.MatchID)
				So(err, ShouldBeNil)
				So(m.Snapshots, ShouldHaveLength, 2)
				So(m.Entities, ShouldHaveLength, 2)

				winner, err := svc.Rating(ctx, model.ModeElimination, "acc-a")
				So(err, ShouldBeNil)
				loser, err := svc.Rating(ctx, model.ModeElimination, "acc-b")
				So(err, ShouldBeNil)
				So(winner.General.Mu, ShouldBeGreaterThan, 25)
				So(loser.General.Mu, ShouldBeLessThan, 25)
				So(winner.Matches, ShouldEqual, 1)
			})

			Convey("Then the leaderboard ranks the winner first", func() {
				top, err := svc.Leaderboard(ctx, model.ModeElimination, 10)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 2)
				So(top[0].AccountID, ShouldEqual, "acc-a")

				entry, err := svc.Rank(ctx, model.ModeElimination, "acc-b")
				So(err, ShouldBeNil)
				So(entry.Rank, ShouldEqual, 2)

				_, err = svc.Rank(ctx, model.ModeBall, "acc-a")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then importing it again returns the stored match", func() {
				again, err := svc.Import(ctx, raw, service.ImportOptions{Ranked: true})
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				So(again.MatchID, ShouldEqual, res.MatchID)
				So(svc.GetStats()["matches"], ShouldEqual, 1)

				r, err := svc.Rating(ctx, model.ModeElimination, "acc-a")
				So(err, ShouldBeNil)
				So(r.Matches, ShouldEqual, 1)
			})
		})

		Convey("When the expected mode differs", func() {
			_, err := svc.Import(ctx, raw, service.ImportOptions{Mode: model.ModeBall, Ranked: true})

			Convey("Then the log is rejected", func() {
				So(errors.Is(err, service.ErrRejected), ShouldBeTrue)
				So(errors.Is(err, eventlog.ErrModeMismatch), ShouldBeTrue)
			})
		})

		Convey("When the match stopped as a false start", func() {
			d := newDuel(epoch, "acc-a", "acc-b")
			d.elapsedMS = 60_000
			_, err := svc.Import(ctx, d.bytes(), service.ImportOptions{Ranked: true})

			Convey("Then no match is produced", func() {
				So(errors.Is(err, eventlog.ErrFalseStart), ShouldBeTrue)
				So(svc.GetStats()["matches"], ShouldEqual, 0)
			})
		})

		Convey("When an event names an unknown actor", func() {
			d := newDuel(epoch, "acc-a", "acc-b")
			d.ghostShot = true
			_, err := svc.Import(ctx, d.bytes(), service.ImportOptions{Ranked: true})

			Convey("Then the match is rejected and its key released", func() {
				So(errors.Is(err, service.ErrRejected), ShouldBeTrue)
				So(svc.GetStats()["matches"], ShouldEqual, 0)

				res, err := svc.Import(ctx, raw, service.ImportOptions{Ranked: true})
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When one side is a guest", func() {
			res, err := svc.Import(ctx, newDuel(epoch, "acc-a", "").bytes(), service.ImportOptions{Ranked: true})
			So(err, ShouldBeNil)

			Convey("Then the match stays unranked and ratings do not move", func() {
				So(res.Ranked, ShouldBeFalse)
				So(res.Snapshots, ShouldHaveLength, 1)
				So(res.Snapshots[0].After, ShouldResemble, res.Snapshots[0].Before)

				top, err := svc.Leaderboard(ctx, model.ModeElimination, 10)
				So(err, ShouldBeNil)
				So(top, ShouldBeEmpty)
			})
		})

		Convey("When ranking is not requested", func() {
			res, err := svc.Import(ctx, raw, service.ImportOptions{Ranked: false})
			So(err, ShouldBeNil)

			Convey("Then the match is stored unranked", func() {
				So(res.Ranked, ShouldBeFalse)
				r, err := svc.Rating(ctx, model.ModeElimination, "acc-a")
				So(err, ShouldBeNil)
				So(r.General.Mu, ShouldEqual, 25)
			})
		})
	})
}

func TestService_ReadModels(t *testing.T) {
	Convey("Given a service with one imported duel", t, func() {
		ctx := context.Background()
		svc := newService()
		res, err := svc.Import(ctx, newDuel(epoch, "acc-a", "acc-b").bytes(), service.ImportOptions{Ranked: true})
		So(err, ShouldBeNil)

		Convey("When replaying the match twice", func() {
			first, err := svc.Replay(ctx, res.MatchID)
			So(err, ShouldBeNil)
			second, err := svc.Replay(ctx, res.MatchID)
			So(err, ShouldBeNil)

			Convey("Then the memoized script is returned", func() {
				So(first, ShouldNotBeNil)
				So(second, ShouldPointTo, first)
				So(first.Frames, ShouldNotBeEmpty)
			})
		})

		Convey("When replaying an unknown match", func() {
			_, err := svc.Replay(ctx, "missing")

			Convey("Then the store's not-found error is returned", func() {
				So(errors.Is(err, repository.ErrMatchNotFound), ShouldBeTrue)
			})
		})

		Convey("When summarizing the match", func() {
			sum, err := svc.MatchStats(ctx, res.MatchID)
			So(err, ShouldBeNil)

			Convey("Then team totals and the winner are reported", func() {
				So(sum.Winner, ShouldEqual, 0)
				So(sum.Teams, ShouldHaveLength, 2)
				So(sum.Teams[0].Score, ShouldEqual, 100)
				So(sum.States, ShouldContainKey, "#g")
			})
		})

		Convey("When predicting a rematch", func() {
			p, err := svc.Predict(ctx, model.ModeElimination, [][]string{{"acc-a"}, {"acc-b"}})
			So(err, ShouldBeNil)

			Convey("Then the previous winner is favored", func() {
				So(p.Probabilities, ShouldHaveLength, 2)
				So(p.Probabilities[0], ShouldBeGreaterThan, 0.5)
				So(p.Probabilities[0]+p.Probabilities[1], ShouldAlmostEqual, 1, 1e-9)
			})
		})

		Convey("When predicting with unknown accounts", func() {
			p, err := svc.Predict(ctx, model.ModeBall, [][]string{{"x"}, {"y"}})
			So(err, ShouldBeNil)

			Convey("Then both start from the baseline", func() {
				So(p.Probabilities[0], ShouldAlmostEqual, 0.5, 1e-9)
			})
		})

		Convey("When balancing four accounts", func() {
			req := types.BalanceRequest{
				Mode:     model.ModeElimination,
				Accounts: []string{"acc-a", "acc-b", "acc-c", "acc-d"},
				Teams:    2,
				Seed:     42,
			}
			lineup, err := svc.Balance(ctx, req)
			So(err, ShouldBeNil)
			again, err := svc.Balance(ctx, req)
			So(err, ShouldBeNil)

			Convey("Then two teams of two with roles are proposed deterministically", func() {
				So(lineup.Teams, ShouldHaveLength, 2)
				So(lineup.Teams[0], ShouldHaveLength, 2)
				So(lineup.Roles, ShouldHaveLength, 4)
				So(again, ShouldResemble, lineup)
			})
		})

		Convey("When balancing with a repeated account", func() {
			_, err := svc.Balance(ctx, types.BalanceRequest{Mode: model.ModeBall, Accounts: []string{"a", "a"}, Teams: 2})

			Convey("Then the request is invalid", func() {
				So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
			})
		})

		Convey("When asking for an oversized leaderboard", func() {
			_, err := svc.Leaderboard(ctx, model.ModeElimination, 1000)

			Convey("Then the limit is rejected", func() {
				So(errors.Is(err, service.ErrInvalidLimit), ShouldBeTrue)
			})
		})
	})
}

func TestService_BatchAndRecompute(t *testing.T) {
	Convey("Given three duels between the same accounts", t, func() {
		ctx := context.Background()
		logs := []service.BatchItem{
			{Source: "third", Raw: newDuel(epoch.Add(2*time.Hour), "acc-b", "acc-a").bytes()},
			{Source: "first", Raw: newDuel(epoch, "acc-a", "acc-b").bytes()},
			{Source: "broken", Raw: []byte("not a log")},
			{Source: "second", Raw: newDuel(epoch.Add(time.Hour), "acc-a", "acc-c").bytes()},
		}

		Convey("When importing them as a batch", func() {
			batch := newService(service.WithImportParallelism(3))
			results, err := batch.ImportBatch(ctx, logs, service.ImportOptions{Ranked: true})
			So(err, ShouldBeNil)

			sequential := newService()
			for _, i := range []int{1, 3, 0} {
				_, err := sequential.Import(ctx, logs[i].Raw, service.ImportOptions{Ranked: true})
				So(err, ShouldBeNil)
			}

			Convey("Then results line up with the inputs", func() {
				So(results, ShouldHaveLength, 4)
				So(results[0].Source, ShouldEqual, "third")
				So(results[2].Error, ShouldNotBeEmpty)
				So(results[1].MatchID, ShouldNotBeEmpty)
			})

			Convey("Then ratings equal a chronological one-by-one import", func() {
				for _, id := range []string{"acc-a", "acc-b", "acc-c"} {
					got, err := batch.Rating(ctx, model.ModeElimination, id)
					So(err, ShouldBeNil)
					want, err := sequential.Rating(ctx, model.ModeElimination, id)
					So(err, ShouldBeNil)
					So(got.General, ShouldResemble, want.General)
				}
			})

			Convey("Then a full recompute reproduces the live ratings", func() {
				before, err := batch.Rating(ctx, model.ModeElimination, "acc-a")
				So(err, ShouldBeNil)

				res, err := batch.Recompute(ctx)
				So(err, ShouldBeNil)
				So(res.Matches, ShouldEqual, 3)

				after, err := batch.Rating(ctx, model.ModeElimination, "acc-a")
				So(err, ShouldBeNil)
				So(after.General, ShouldResemble, before.General)

				top, err := batch.Leaderboard(ctx, model.ModeElimination, 10)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 3)
			})
		})
	})
}

// recomputeOnCreate starts a recompute as soon as a match is stored and
// gives it a short window to finish before the import carries on.
type recomputeOnCreate struct {
	*repository.MemoryStore
	svc  *service.Service
	done chan error
}

func (s *recomputeOnCreate) CreateMatch(ctx context.Context, m *model.Match) error {
	if err := s.MemoryStore.CreateMatch(ctx, m); err != nil {
		return err
	}
	go func() {
		_, err := s.svc.Recompute(context.Background())
		s.done <- err
	}()
	select {
	case err := <-s.done:
		s.done <- err
	case <-time.After(100 * time.Millisecond):
	}
	return nil
}

func TestService_ImportDuringRecompute(t *testing.T) {
	Convey("Given a store that triggers a recompute between storing and rating", t, func() {
		ctx := context.Background()
		store := &recomputeOnCreate{MemoryStore: repository.NewMemoryStore(), done: make(chan error, 1)}
		svc := newService(service.WithStore(store))
		store.svc = svc

		clean := newService()
		raw := newDuel(epoch, "acc-a", "acc-b").bytes()
		_, err := clean.Import(ctx, raw, service.ImportOptions{Ranked: true})
		So(err, ShouldBeNil)

		Convey("When a duel is imported", func() {
			_, err := svc.Import(ctx, raw, service.ImportOptions{Ranked: true})
			So(err, ShouldBeNil)
			So(<-store.done, ShouldBeNil)

			Convey("Then the match is applied exactly once", func() {
				got, err := svc.Rating(ctx, model.ModeElimination, "acc-a")
				So(err, ShouldBeNil)
				want, err := clean.Rating(ctx, model.ModeElimination, "acc-a")
				So(err, ShouldBeNil)
				So(got.Matches, ShouldEqual, 1)
				So(got.General, ShouldResemble, want.General)
			})
		})
	})
}

// gatedReads holds GetMatch until released and reports the state of the
// context it was given once released.
type gatedReads struct {
	*repository.MemoryStore
	armed   chan struct{}
	entered chan struct{}
	release chan struct{}
	seen    chan error
}

func (s *gatedReads) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	select {
	case <-s.armed:
		s.entered <- struct{}{}
		<-s.release
		s.seen <- ctx.Err()
	default:
	}
	return s.MemoryStore.GetMatch(ctx, id)
}

func TestService_ReplayCallerCancel(t *testing.T) {
	Convey("Given an imported match and an uncached replay", t, func() {
		ctx := context.Background()
		store := &gatedReads{
			MemoryStore: repository.NewMemoryStore(),
			armed:       make(chan struct{}),
			entered:     make(chan struct{}, 1),
			release:     make(chan struct{}),
			seen:        make(chan error, 1),
		}
		svc := newService(service.WithStore(store), service.WithReplayCacheSize(0))
		res, err := svc.Import(ctx, newDuel(epoch, "acc-a", "acc-b").bytes(), service.ImportOptions{Ranked: true})
		So(err, ShouldBeNil)

		Convey("When the caller that started the fill hangs up", func() {
			close(store.armed)
			callerCtx, cancel := context.WithCancel(ctx)
			errs := make(chan error, 1)
			go func() {
				_, err := svc.Replay(callerCtx, res.MatchID)
				errs <- err
			}()
			<-store.entered
			cancel()

			var callerErr error
			select {
			case callerErr = <-errs:
			case <-time.After(5 * time.Second):
			}
			close(store.release)

			Convey("Then only that caller sees the cancellation", func() {
				So(errors.Is(callerErr, context.Canceled), ShouldBeTrue)
				So(<-store.seen, ShouldBeNil)
			})
		})
	})
}

func TestService_QueuedImport(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a log is submitted", func() {
			id, err := svc.Submit(ctx, newDuel(epoch, "acc-a", "acc-b").bytes(), service.ImportOptions{Source: "queued", Ranked: true})
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)

			Convey("Then a worker imports it", func() {
				imported := false
				for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); {
					if svc.GetStats()["matches"] == 1 {
						imported = true
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(imported, ShouldBeTrue)
			})
		})
	})
}
