package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/okian/lasertrack/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1_024)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.ReupMS, convey.ShouldEqual, 8_000)
			convey.So(cfg.ScoreTickMS, convey.ShouldEqual, 30_000)
			convey.So(cfg.MinMatchMS, convey.ShouldEqual, 180_000)
			convey.So(cfg.RecomputePageSize, convey.ShouldEqual, 50)
			convey.So(cfg.BalanceTrials, convey.ShouldEqual, 500)
			convey.So(cfg.RatingMu, convey.ShouldEqual, 25.0)
			convey.So(cfg.RatingSigma, convey.ShouldAlmostEqual, 25.0/3.0)
			convey.So(cfg.RatingZeta, convey.ShouldEqual, 0.09)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a config with a zero reup interval", t, func() {
		cfg := config.New(context.Background())
		cfg.ReupMS = 0

		convey.Convey("Then validation rejects it", func() {
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "reup_ms")
		})
	})
}
