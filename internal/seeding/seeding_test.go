package seeding

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/furlong/internal/adapters/http/api"
	service "github.com/okian/furlong/internal/app"
	"github.com/okian/furlong/internal/domain/stats"
	"github.com/okian/furlong/pkg/logger"
)

func testConfig(baseURL, mode string) *Config {
	return &Config{
		BaseURL:   baseURL,
		Horses:    20,
		Races:     10,
		FieldSize: 6,
		Workers:   4,
		Timeout:   5 * time.Second,
		Mode:      mode,
		Seed:      7,
		TopN:      5,
		Settle:    5 * time.Second,
	}
}

func startServer(ctx context.Context) (*httptest.Server, *service.Service) {
	svc := service.New(service.WithLogger(logger.Nop()), service.WithWorkerCount(2))
	if err := svc.Start(ctx); err != nil {
		panic(err)
	}
	return httptest.NewServer(api.NewServer(svc, svc).Router()), svc
}

func TestGenerate(t *testing.T) {
	convey.Convey("Given a generator configuration", t, func() {
		cfg := testConfig("", ModeSync)

		convey.Convey("When a plan is generated", func() {
			plan := Generate(cfg)

			convey.Convey("Then it holds the requested horses and races", func() {
				convey.So(len(plan.Horses), convey.ShouldEqual, 20)
				convey.So(len(plan.Races), convey.ShouldEqual, 10)
				convey.So(plan.ResultCount(), convey.ShouldEqual, 60)
			})

			convey.Convey("Then every race has distinct registered runners in finishing order", func() {
				known := make(map[string]bool, len(plan.Horses))
				for _, h := range plan.Horses {
					known[h.ID] = true
				}
				for _, race := range plan.Races {
					seen := make(map[string]bool)
					for i, res := range race.Results {
						convey.So(known[res.HorseID], convey.ShouldBeTrue)
						convey.So(seen[res.HorseID], convey.ShouldBeFalse)
						seen[res.HorseID] = true
						convey.So(res.Position, convey.ShouldEqual, i+1)
						convey.So(res.FieldSize, convey.ShouldEqual, 6)
						convey.So(res.RaceID, convey.ShouldEqual, race.ID)
						convey.So(res.Weight, convey.ShouldBeGreaterThan, 0)
					}
				}
			})

			convey.Convey("Then the same seed reproduces the attributes", func() {
				again := Generate(cfg)
				for i := range plan.Horses {
					convey.So(again.Horses[i].Age, convey.ShouldEqual, plan.Horses[i].Age)
					convey.So(again.Horses[i].Sex, convey.ShouldEqual, plan.Horses[i].Sex)
					convey.So(again.Horses[i].ID, convey.ShouldNotEqual, plan.Horses[i].ID)
				}
			})
		})

		convey.Convey("When the field is larger than the population", func() {
			cfg.Horses = 3
			plan := Generate(cfg)

			convey.Convey("Then the field is capped", func() {
				convey.So(len(plan.Races[0].Results), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When there are no horses", func() {
			cfg.Horses = 0
			plan := Generate(cfg)

			convey.Convey("Then no races are generated", func() {
				convey.So(plan.Races, convey.ShouldBeEmpty)
			})
		})
	})
}

func TestVerifySummary(t *testing.T) {
	convey.Convey("Given a consistent summary", t, func() {
		s := Summary{
			Count:     3,
			Histogram: []stats.Bucket{{Label: "90+", Count: 1}, {Label: "<60", Count: 2}},
			Top: []stats.Entry{
				{Rank: 1, HorseID: "a", Rating: 91, Confidence: 40},
				{Rank: 2, HorseID: "b", Rating: 55, Confidence: 30},
			},
		}

		convey.Convey("Then it verifies", func() {
			convey.So(VerifySummary(s, 3, 2), convey.ShouldBeNil)
		})

		convey.Convey("Then a count mismatch is reported", func() {
			convey.So(errors.Is(VerifySummary(s, 4, 2), ErrInconsistent), convey.ShouldBeTrue)
		})

		convey.Convey("Then an out of order top list is reported", func() {
			s.Top[1].Rating = 95
			convey.So(errors.Is(VerifySummary(s, 3, 2), ErrInconsistent), convey.ShouldBeTrue)
		})

		convey.Convey("Then a short top list is reported", func() {
			convey.So(errors.Is(VerifySummary(s, 3, 3), ErrInconsistent), convey.ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a running rating service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv, svc := startServer(ctx)
		defer svc.Stop()
		defer srv.Close()

		convey.Convey("When races are applied synchronously", func() {
			st, err := Run(ctx, testConfig(srv.URL, ModeSync), logger.Nop())

			convey.Convey("Then every result is applied once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(st.HorsesRegistered, convey.ShouldEqual, 20)
				convey.So(st.ResultsSubmitted, convey.ShouldEqual, 60)
				convey.So(st.ResultsAccepted, convey.ShouldEqual, 60)
				convey.So(st.ResultsDuplicate, convey.ShouldEqual, 0)
				convey.So(st.ResultsFailed, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When results are queued twice", func() {
			cfg := testConfig(srv.URL, ModeAsync)
			cfg.Resubmit = true
			st, err := Run(ctx, cfg, logger.Nop())

			convey.Convey("Then the second copy is reported as a duplicate", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(st.ResultsSubmitted, convey.ShouldEqual, 120)
				convey.So(st.ResultsAccepted, convey.ShouldEqual, 60)
				convey.So(st.ResultsDuplicate, convey.ShouldEqual, 60)
				convey.So(svc.GetStats()["processed"], convey.ShouldEqual, int64(60))
			})
		})

		convey.Convey("When an unknown horse is read", func() {
			_, err := NewClient(srv.URL, time.Second).Rating(ctx, "missing")

			convey.Convey("Then the status is surfaced", func() {
				convey.So(errors.Is(err, ErrUnexpectedStatus), convey.ShouldBeTrue)
			})
		})
	})
}

func TestRunUnreachable(t *testing.T) {
	convey.Convey("Given no service at the base URL", t, func() {
		srv := httptest.NewServer(nil)
		url := srv.URL
		srv.Close()

		convey.Convey("Then the health check fails the run", func() {
			_, err := Run(context.Background(), testConfig(url, ModeSync), logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
