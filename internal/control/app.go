// Package control wires the application together and manages its lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/sheetsync/internal/core/classify"
	"github.com/vietddude/sheetsync/internal/core/config"
	"github.com/vietddude/sheetsync/internal/infra/partner"
	redisclient "github.com/vietddude/sheetsync/internal/infra/redis"
	"github.com/vietddude/sheetsync/internal/infra/sheets"
	"github.com/vietddude/sheetsync/internal/infra/source/postgres"
	"github.com/vietddude/sheetsync/internal/sync/health"
	"github.com/vietddude/sheetsync/internal/sync/runner"
	"github.com/vietddude/sheetsync/internal/sync/scheduler"
)

// App is the main application struct that manages the sync lifecycle.
type App struct {
	cfg          *config.AppConfig
	scheduler    *scheduler.Scheduler
	healthMon    *health.Monitor
	healthServer *health.Server
	redisClient  *redisclient.Client
	log          *slog.Logger

	done chan struct{}
}

// NewApp creates a new App instance with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {

	// 1. Destination (fail fast: the spreadsheet must be reachable at startup)
	sheetsClient := sheets.NewClient(cfg.Sheets)
	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sheetsClient.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("failed to connect to spreadsheet: %w", err)
	}

	// 2. Enrichment service
	partnerClient := partner.NewClient(cfg.Partner)

	// 3. Runner shared by all jobs
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	runnerCfg := runner.DefaultConfig()
	runnerCfg.Location = loc
	runnerCfg.PacingBase = cfg.Scheduler.PacingBase
	runnerCfg.PacingJitter = cfg.Scheduler.PacingJitter

	jobRunner := runner.New(runnerCfg, postgres.NewFactory(), sheetsClient, partnerClient, classify.New())

	// 4. Jobs and outcome sinks
	jobs := cfg.BuildJobSpecs()
	names := make([]string, len(jobs))
	for i, job := range jobs {
		names[i] = job.Name
	}

	healthMon := health.NewMonitor(names, cfg.Scheduler.StaleAfter, partnerClient)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	sinks := []scheduler.OutcomeSink{healthMon}

	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, outcome persistence disabled", "error", err)
		} else {
			sinks = append(sinks, redisClient)
			slog.Info("Outcome persistence enabled")
		}
	}

	sched := scheduler.New(cfg.Scheduler.Interval, jobRunner, jobs, sinks...)

	return &App{
		cfg:          cfg,
		scheduler:    sched,
		healthMon:    healthMon,
		healthServer: healthServer,
		redisClient:  redisClient,
		log:          slog.Default(),
	}, nil
}

// Start starts the health server and the sync loop. It returns immediately;
// the loop runs until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	a.done = make(chan struct{})
	go func() {
		a.scheduler.Run(ctx)
		close(a.done)
	}()

	a.log.Info("Sync started", "jobs", len(a.cfg.Jobs), "interval", a.cfg.Scheduler.Interval)
	return nil
}

// Stop waits for in-flight jobs to finish and releases resources. The ctx
// bounds how long the shutdown may take.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping sync...")

	if a.done != nil {
		select {
		case <-a.done:
		case <-ctx.Done():
			a.log.Warn("Shutdown timeout, abandoning in-flight jobs")
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}

	return a.healthServer.Stop(ctx)
}
