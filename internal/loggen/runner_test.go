package loggen_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/time/rate"

	"github.com/okian/lasertrack/internal/adapters/http/api"
	service "github.com/okian/lasertrack/internal/app"
	"github.com/okian/lasertrack/internal/loggen"
)

func TestRun_LoadsService(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(64))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(api.NewServer(svc, svc, api.WithIngestRate(rate.Limit(1000), 100)).Routes())
		defer srv.Close()

		Convey("When the generator loads it", func() {
			cfg := smallConfig()
			cfg.BaseURL = srv.URL
			cfg.Workers = 3
			cfg.Timeout = 5 * time.Second
			cfg.DrainTimeout = 20 * time.Second
			cfg.TopN = 10
			stats, err := loggen.Run(ctx, &cfg)

			Convey("Then every match is accepted and the leaderboards verify", func() {
				So(err, ShouldBeNil)
				So(stats.MatchesAccepted, ShouldEqual, 6)
				So(stats.MatchesFailed, ShouldEqual, 0)
				So(stats.LeaderboardEntries, ShouldBeGreaterThan, 0)
				So(svc.GetStats()["matches"], ShouldEqual, 6)
			})
		})
	})

	Convey("Given no reachable service", t, func() {
		cfg := smallConfig()
		cfg.BaseURL = "http://127.0.0.1:1"
		cfg.Timeout = time.Second
		_, err := loggen.Run(context.Background(), &cfg)

		Convey("Then the health check fails", func() {
			So(errors.Is(err, loggen.ErrUnhealthy), ShouldBeTrue)
		})
	})
}
