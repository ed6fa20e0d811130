package seeding

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/furlong/pkg/logger"
)

const pollInterval = 100 * time.Millisecond

// ErrSettleTimeout is returned when queued results are still pending after
// Config.Settle.
var ErrSettleTimeout = errors.New("queued results did not settle")

type counters struct {
	registered, regFailed         atomic.Int64
	submitted, accepted, dup, bad atomic.Int64
}

// Run executes a complete seeding run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	st := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting seeding run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("horses", cfg.Horses),
		logger.Int("races", cfg.Races),
		logger.Int("fieldSize", cfg.FieldSize),
		logger.Int("workers", cfg.Workers),
		logger.String("mode", cfg.Mode))

	if err := client.Health(ctx); err != nil {
		return st, fmt.Errorf("service health check failed: %w", err)
	}

	plan := Generate(cfg)
	var c counters

	if err := register(ctx, client, cfg.Workers, plan.Horses, &c); err != nil {
		return st, fmt.Errorf("register horses: %w", err)
	}
	log.Info(ctx, "horses registered",
		logger.Int("registered", int(c.registered.Load())),
		logger.Int("failed", int(c.regFailed.Load())))

	var err error
	switch cfg.Mode {
	case ModeAsync:
		err = submitAsync(ctx, client, cfg, plan, &c)
		if err == nil {
			err = settle(ctx, client, cfg.Settle, c.accepted.Load())
		}
	default:
		err = submitSync(ctx, client, cfg.Workers, plan, &c)
	}
	if err != nil {
		return st, err
	}

	summary, err := client.Summary(ctx, cfg.TopN)
	if err != nil {
		return st, fmt.Errorf("fetch statistics: %w", err)
	}

	st.HorsesRegistered = int(c.registered.Load())
	st.HorsesFailed = int(c.regFailed.Load())
	st.ResultsSubmitted = int(c.submitted.Load())
	st.ResultsAccepted = int(c.accepted.Load())
	st.ResultsDuplicate = int(c.dup.Load())
	st.ResultsFailed = int(c.bad.Load())

	if err := VerifySummary(summary, st.HorsesRegistered, cfg.TopN); err != nil {
		return st, err
	}
	if err := verifyTop(ctx, client, summary); err != nil {
		return st, err
	}

	st.EndTime = time.Now()
	st.Duration = st.EndTime.Sub(st.StartTime)
	logStats(ctx, log, st, summary)
	return st, nil
}

func register(ctx context.Context, client *Client, workers int, horses []Horse, c *counters) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, h := range horses {
		g.Go(func() error {
			if _, err := client.Register(gctx, h); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.regFailed.Add(1)
				return nil
			}
			c.registered.Add(1)
			return nil
		})
	}
	return g.Wait()
}

func submitSync(ctx context.Context, client *Client, workers int, plan Plan, c *counters) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, race := range plan.Races {
		g.Go(func() error {
			c.submitted.Add(int64(len(race.Results)))
			out, err := client.ApplyRace(gctx, race)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.bad.Add(int64(len(race.Results)))
				return nil
			}
			c.accepted.Add(int64(out.Applied))
			c.bad.Add(int64(out.Failed))
			c.dup.Add(int64(len(race.Results) - out.Applied - out.Failed))
			return nil
		})
	}
	return g.Wait()
}

func submitAsync(ctx context.Context, client *Client, cfg *Config, plan Plan, c *counters) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, race := range plan.Races {
		for _, res := range race.Results {
			g.Go(func() error {
				sends := 1
				if cfg.Resubmit {
					sends = 2
				}
				for i := 0; i < sends; i++ {
					c.submitted.Add(1)
					dup, err := client.Submit(gctx, res)
					switch {
					case err != nil && gctx.Err() != nil:
						return gctx.Err()
					case err != nil:
						c.bad.Add(1)
					case dup:
						c.dup.Add(1)
					default:
						c.accepted.Add(1)
					}
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// settle polls /stats until the workers have handled every accepted result.
func settle(ctx context.Context, client *Client, timeout time.Duration, accepted int64) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		s, err := client.stats(ctx)
		if err == nil && s.Processed+s.Failed >= accepted {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %d accepted", ErrSettleTimeout, accepted)
		case <-ticker.C:
		}
	}
}

func logStats(ctx context.Context, log logger.Logger, st *Stats, s Summary) {
	var perSecond float64
	if st.Duration > 0 {
		perSecond = float64(st.ResultsSubmitted) / st.Duration.Seconds()
	}

	fields := []logger.Field{
		logger.Int("horsesRegistered", st.HorsesRegistered),
		logger.Int("horsesFailed", st.HorsesFailed),
		logger.Int("resultsSubmitted", st.ResultsSubmitted),
		logger.Int("resultsAccepted", st.ResultsAccepted),
		logger.Int("resultsDuplicate", st.ResultsDuplicate),
		logger.Int("resultsFailed", st.ResultsFailed),
		logger.Duration("duration", st.Duration),
		logger.Float64("resultsPerSecond", perSecond),
		logger.Float64("meanRating", s.MeanRating),
		logger.Float64("meanConfidence", s.MeanConfidence),
	}
	if len(s.Top) > 0 {
		fields = append(fields,
			logger.String("topHorse", s.Top[0].HorseID),
			logger.Float64("topRating", s.Top[0].Rating))
	}
	log.Info(ctx, "seeding run completed", fields...)
}
