package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/furlong/internal/config"
	"github.com/okian/furlong/internal/domain/rating"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.DefaultTopN, convey.ShouldEqual, 10)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the rating coefficients match the engine defaults", func() {
			convey.So(cfg.RatingParams(), convey.ShouldResemble, rating.DefaultParams())
		})

		convey.Convey("When the top-N default exceeds the limit", func() {
			cfg.DefaultTopN = cfg.MaxTopLimit + 1

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the carried weight range excludes the reference weight", func() {
			cfg.Rating.MinWeightKg = 60

			convey.Convey("Then validation fails with both error kinds", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(errors.Is(err, rating.ErrInvalidParams), convey.ShouldBeTrue)
			})
		})
	})
}
