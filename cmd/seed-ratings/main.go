package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/furlong/internal/seeding"
	"github.com/okian/furlong/pkg/logger"
)

// Default configuration constants.
const (
	defaultHorses    = 1000
	defaultRaces     = 500
	defaultFieldSize = 12
	defaultTopN      = 20
	defaultWorkers   = 2 // multiplier for runtime.NumCPU()
	defaultTimeout   = 30 * time.Second
	defaultSettle    = 2 * time.Minute
	defaultRunLimit  = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		horses    = flag.Int("horses", defaultHorses, "Number of horses to register")
		races     = flag.Int("races", defaultRaces, "Number of races to run")
		fieldSize = flag.Int("field", defaultFieldSize, "Runners per race")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent requests")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		mode      = flag.String("mode", seeding.ModeSync, "sync posts whole races, async queues each result")
		resubmit  = flag.Bool("resubmit", false, "Queue every result twice (async mode)")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for generated horse and race attributes")
		topN      = flag.Int("top", defaultTopN, "Number of top entries to fetch and verify")
		settle    = flag.Duration("settle", defaultSettle, "How long to wait for queued results")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get().Named("seed")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunLimit)
	defer cancel()

	cfg := &seeding.Config{
		BaseURL:   *baseURL,
		Horses:    *horses,
		Races:     *races,
		FieldSize: *fieldSize,
		Workers:   *workers,
		Timeout:   *timeout,
		Mode:      *mode,
		Resubmit:  *resubmit,
		Seed:      *seed,
		TopN:      *topN,
		Settle:    *settle,
	}

	if _, err := seeding.Run(ctx, cfg, log); err != nil {
		log.Error(ctx, "seeding run failed", logger.Error(err), logger.Any("seed", *seed))
		os.Exit(1)
	}
}
