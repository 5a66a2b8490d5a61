// Package scheduler drives the periodic fan-out: every tick it launches one
// runner per configured job, waits for all of them, and reports the
// aggregate. A failed job never stops its siblings or the loop.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/sheetsync/internal/core/domain"
	"github.com/vietddude/sheetsync/internal/sync/metrics"
)

// tickWarnThreshold flags ticks that run long enough to crowd the interval.
const tickWarnThreshold = 60 * time.Second

// JobRunner executes one job to completion.
type JobRunner interface {
	Run(ctx context.Context, spec domain.JobSpec) domain.SyncOutcome
}

// OutcomeSink receives every finished outcome. Implementations must be safe
// for concurrent use.
type OutcomeSink interface {
	Record(outcome domain.SyncOutcome)
}

// Scheduler owns the tick loop.
type Scheduler struct {
	interval time.Duration
	runner   JobRunner
	jobs     []domain.JobSpec
	sinks    []OutcomeSink

	wg sync.WaitGroup
}

// New creates a Scheduler. Sinks are optional.
func New(interval time.Duration, runner JobRunner, jobs []domain.JobSpec, sinks ...OutcomeSink) *Scheduler {
	return &Scheduler{
		interval: interval,
		runner:   runner,
		jobs:     jobs,
		sinks:    sinks,
	}
}

// Run blocks until ctx is cancelled. The first tick starts immediately;
// subsequent ticks wait out the full interval after the previous tick
// finished, so overlapping ticks cannot happen.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("Scheduler started", "jobs", len(s.jobs), "interval", s.interval)

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			s.wg.Wait()
			slog.Info("Scheduler stopped")
			return
		case <-time.After(s.interval):
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runID := uuid.NewString()
	start := time.Now()
	log := slog.With("run_id", runID)
	log.Info("Tick started", "jobs", len(s.jobs))

	outcomes := make([]domain.SyncOutcome, len(s.jobs))

	for i, spec := range s.jobs {
		s.wg.Add(1)
		go func(i int, spec domain.JobSpec) {
			defer s.wg.Done()
			out := s.runner.Run(ctx, spec)
			out.RunID = runID
			outcomes[i] = out
		}(i, spec)
	}
	s.wg.Wait()

	succeeded, failed := 0, 0
	for _, out := range outcomes {
		if out.Failed() {
			failed++
			log.Error("Job failed",
				"job", out.JobName,
				"tab", out.SheetTab,
				"duration", out.Duration,
				"error", out.Err,
			)
		} else {
			succeeded++
		}
		for _, sink := range s.sinks {
			sink.Record(out)
		}
	}

	elapsed := time.Since(start)
	metrics.TickDuration.Observe(elapsed.Seconds())
	if elapsed > tickWarnThreshold {
		log.Warn("Slow tick", "duration", elapsed, "threshold", tickWarnThreshold)
	}
	log.Info("Tick finished",
		"succeeded", succeeded,
		"failed", failed,
		"duration", elapsed,
	)
}
