// Package runner executes one source→destination synchronization end to
// end: connect, fetch, merge history, optionally enrich, format, write,
// report status. A runner isolates its own failure; the scheduler never sees
// it as anything but a failed outcome.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/vietddude/sheetsync/internal/core/classify"
	"github.com/vietddude/sheetsync/internal/core/domain"
	"github.com/vietddude/sheetsync/internal/core/retry"
	"github.com/vietddude/sheetsync/internal/infra/source"
	"github.com/vietddude/sheetsync/internal/sync/enrich"
	"github.com/vietddude/sheetsync/internal/sync/funnel"
	"github.com/vietddude/sheetsync/internal/sync/metrics"
)

// Destination is the spreadsheet capability the runner writes to. Must be
// safe for concurrent use across jobs.
type Destination interface {
	Write(ctx context.Context, tab string, grid [][]any, startRow, columnSpan int, clearTail bool) error
	WriteStatus(ctx context.Context, tab, text string) error
}

// Enricher is the partner-service capability.
type Enricher interface {
	FetchRecords(ctx context.Context, subjectIDs []int64) ([]domain.EnrichmentRecord, error)
}

// Config holds runner behavior shared by all jobs.
type Config struct {
	// Location is the clock used for status lines.
	Location *time.Location

	// PacingBase/PacingJitter delay the runner after a completed write as
	// soft rate-limiting courtesy toward the destination service.
	PacingBase   time.Duration
	PacingJitter time.Duration

	// WarnJobAt logs a warning when a whole job takes longer than this.
	WarnJobAt time.Duration

	ConnectRetry retry.Config
	WriteRetry   retry.Config
	StatusRetry  retry.Config
}

// DefaultConfig mirrors production retry budgets: connections get three
// attempts, writes five.
func DefaultConfig() Config {
	return Config{
		Location:     time.UTC,
		PacingBase:   100 * time.Millisecond,
		PacingJitter: 200 * time.Millisecond,
		WarnJobAt:    30 * time.Second,
		ConnectRetry: retry.Config{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiple: 2.0, Jitter: 500 * time.Millisecond},
		WriteRetry:   retry.Config{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 60 * time.Second, BackoffMultiple: 2.0, Jitter: 500 * time.Millisecond},
		StatusRetry:  retry.Config{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiple: 2.0, Jitter: 500 * time.Millisecond},
	}
}

// Runner runs jobs. One Runner serves all jobs; per-job data lives only in
// the stack of Run.
type Runner struct {
	cfg        Config
	sources    source.Factory
	dest       Destination
	enricher   Enricher
	classifier *classify.Classifier
}

// New creates a Runner.
func New(cfg Config, sources source.Factory, dest Destination, enricher Enricher, classifier *classify.Classifier) *Runner {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Runner{
		cfg:        cfg,
		sources:    sources,
		dest:       dest,
		enricher:   enricher,
		classifier: classifier,
	}
}

// Run executes one job and reports its outcome. Errors never escape; they
// are folded into the outcome so sibling jobs stay unaffected.
func (r *Runner) Run(ctx context.Context, spec domain.JobSpec) domain.SyncOutcome {
	start := time.Now()
	rowCount, err := r.run(ctx, spec)

	outcome := domain.SyncOutcome{
		JobName:    spec.Name,
		SheetTab:   spec.SheetTab,
		RowCount:   rowCount,
		Err:        err,
		Duration:   time.Since(start),
		FinishedAt: time.Now(),
	}

	status := "success"
	if err != nil {
		status = "failed"
	}
	if r.cfg.WarnJobAt > 0 && outcome.Duration > r.cfg.WarnJobAt {
		slog.Warn("Slow job", "job", spec.Name, "duration", outcome.Duration, "threshold", r.cfg.WarnJobAt)
	}
	metrics.JobRuns.WithLabelValues(spec.Name, status).Inc()
	metrics.JobDuration.WithLabelValues(spec.Name).Observe(outcome.Duration.Seconds())
	metrics.RowsSynced.WithLabelValues(spec.Name).Set(float64(rowCount))

	return outcome
}

func (r *Runner) run(ctx context.Context, spec domain.JobSpec) (rows int, err error) {
	log := slog.With("job", spec.Name, "tab", spec.SheetTab)
	log.Debug("Job state", "state", domain.JobStateConnecting)

	conn, err := retry.Do(ctx, countRetries(r.cfg.ConnectRetry, "source_connect"), "source connect", func(ctx context.Context) (source.Conn, error) {
		return r.sources.Open(ctx, spec)
	})
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	// The source connection (and any tunnel behind it) is released no
	// matter where the pipeline fails past this point.
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn("Failed to close source", "error", cerr)
		}
	}()

	log.Debug("Job state", "state", domain.JobStateFetching)
	headers, data, ids, err := r.fetch(ctx, log, spec, conn)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	if spec.Enrich && len(ids) > 0 {
		log.Debug("Job state", "state", domain.JobStateEnriching)
		data, headers, err = r.enrichRows(ctx, log, spec, data, headers, ids)
		if err != nil {
			return 0, fmt.Errorf("enrich: %w", err)
		}
	}

	log.Debug("Job state", "state", domain.JobStateWriting)
	grid := make([][]any, 0, len(data)+1)
	grid = append(grid, toAnyRow(headers))
	grid = append(grid, data...)

	_, err = retry.Do(ctx, countRetries(r.cfg.WriteRetry, "sheet_write"), "sheet write", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.dest.Write(ctx, spec.SheetTab, grid, spec.StartRow, spec.ColumnSpan, spec.ClearTail)
	})
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}

	log.Debug("Job state", "state", domain.JobStateReportingStatus)
	status := statusLine(spec.SheetTab, len(data), r.cfg.Location)
	_, err = retry.Do(ctx, r.cfg.StatusRetry, "status write", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.dest.WriteStatus(ctx, spec.SheetTab, status)
	})
	if err != nil {
		return 0, fmt.Errorf("status: %w", err)
	}

	log.Info("Job completed", "rows", len(data))
	r.pace(ctx)

	return len(data), nil
}

// fetch pulls the primary rows and merges in the funnel history, appending
// the three derived columns to every row. This is the most latency-sensitive
// stage: slow fetches are logged, never failed.
func (r *Runner) fetch(ctx context.Context, log *slog.Logger, spec domain.JobSpec, conn source.Conn) ([]string, [][]any, []int64, error) {
	fetchStart := time.Now()

	headers, data, err := conn.FetchRows(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	ids := subjectIDs(data)

	if len(ids) > 0 {
		history, states, err := conn.FetchFunnel(ctx, ids)
		if err != nil {
			return nil, nil, nil, err
		}

		merged := funnel.Merge(history, states)
		for i, row := range data {
			var historyCell, lastAction, label any = "", "", ""
			if s, ok := merged[rowSubjectID(row)]; ok {
				historyCell = funnel.FormatHistory(s, 0)
				if !s.LastEventTime.IsZero() {
					lastAction = s.LastEventTime.Format(funnel.TimeLayout)
				}
				label = s.CurrentLabel
			}
			data[i] = append(row, historyCell, lastAction, label)
		}
		headers = append(headers, "funnel_history", "last_action_date", "max_funnel_action")
	} else {
		log.Warn("No subject ids in fetched rows, skipping funnel merge")
	}

	elapsed := time.Since(fetchStart)
	metrics.FetchDuration.WithLabelValues(spec.Name).Observe(elapsed.Seconds())
	if spec.WarnFetchAt > 0 && elapsed > spec.WarnFetchAt {
		log.Warn("Slow fetch", "elapsed", elapsed, "threshold", spec.WarnFetchAt)
	}

	return headers, data, ids, nil
}

func (r *Runner) enrichRows(ctx context.Context, log *slog.Logger, spec domain.JobSpec, data [][]any, headers []string, ids []int64) ([][]any, []string, error) {
	records, err := r.enricher.FetchRecords(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	metrics.PartnerRecords.WithLabelValues(spec.Name).Set(float64(len(records)))

	if len(records) == 0 {
		log.Warn("No enrichment records received, writing rows as fetched")
		return data, headers, nil
	}

	newData, newHeaders := enrich.Merge(data, headers, records, spec.ColumnSpan, r.classifier)
	return newData, newHeaders, nil
}

// pace sleeps briefly after a completed job as soft rate-limiting toward the
// destination. Interruptible by shutdown.
func (r *Runner) pace(ctx context.Context) {
	delay := r.cfg.PacingBase
	if r.cfg.PacingJitter > 0 {
		delay += time.Duration(rand.Float64() * float64(r.cfg.PacingJitter))
	}
	if delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

// countRetries instruments a retry config so only actual retries, not the
// first attempt, reach the counter.
func countRetries(cfg retry.Config, op string) retry.Config {
	cfg.OnRetry = func(int, time.Duration, error) {
		metrics.RetryAttempts.WithLabelValues(op).Inc()
	}
	return cfg
}

func statusLine(tab string, rows int, loc *time.Location) string {
	return fmt.Sprintf("%s | %s | records: %d", time.Now().In(loc).Format(funnel.TimeLayout), tab, rows)
}

func subjectIDs(rows [][]any) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id := rowSubjectID(row); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func rowSubjectID(row []any) int64 {
	if len(row) == 0 {
		return 0
	}
	switch id := row[0].(type) {
	case int64:
		return id
	case int:
		return int64(id)
	case int32:
		return int64(id)
	case float64:
		return int64(id)
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func toAnyRow(headers []string) []any {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}
