package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/sheetsync/internal/core/domain"
)

// DependencyChecker probes an external dependency.
type DependencyChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Monitor aggregates the last outcome of every job into a health report. It
// receives outcomes from the scheduler and is queried by the HTTP server.
type Monitor struct {
	jobs       []string
	staleAfter time.Duration
	partner    DependencyChecker // optional

	mu            sync.RWMutex
	outcomes      map[string]domain.SyncOutcome
	lastProbe     time.Time
	lastPartnerOK bool
}

// NewMonitor creates a health monitor. staleAfter marks a job unhealthy when
// its last run finished longer ago than this; partner may be nil.
func NewMonitor(jobs []string, staleAfter time.Duration, partner DependencyChecker) *Monitor {
	return &Monitor{
		jobs:       jobs,
		staleAfter: staleAfter,
		partner:    partner,
		outcomes:   make(map[string]domain.SyncOutcome),
	}
}

// Record stores a finished outcome. Implements the scheduler's sink.
func (m *Monitor) Record(out domain.SyncOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[out.JobName] = out
}

// CheckHealth builds the current report.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	partnerOK := m.probePartner(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()

	report := Report{
		SystemStatus: StatusHealthy,
		PartnerOK:    partnerOK,
		Jobs:         make(map[string]JobHealth, len(m.jobs)),
	}

	now := time.Now()
	for _, name := range m.jobs {
		jh := JobHealth{Job: name, Status: StatusHealthy}

		out, ran := m.outcomes[name]
		switch {
		case !ran:
			// No run yet, normal right after startup.
			jh.Status = StatusDegraded
		default:
			jh.LastRunID = out.RunID
			jh.LastFinished = out.FinishedAt
			jh.SinceLastRun = now.Sub(out.FinishedAt)
			jh.Rows = out.RowCount

			stale := m.staleAfter > 0 && jh.SinceLastRun > m.staleAfter
			if out.Failed() {
				jh.LastError = out.Err.Error()
				jh.Status = StatusDegraded
				if stale {
					jh.Status = StatusCritical
				}
			} else if stale {
				jh.Status = StatusDegraded
			}
		}

		report.Jobs[name] = jh
	}

	// Aggregate status (worst case wins)
	for _, jh := range report.Jobs {
		if jh.Status == StatusCritical {
			report.SystemStatus = StatusCritical
			break
		}
		if jh.Status == StatusDegraded {
			report.SystemStatus = StatusDegraded
		}
	}
	if partnerOK != nil && !*partnerOK && report.SystemStatus == StatusHealthy {
		report.SystemStatus = StatusDegraded
	}

	return report
}

// probePartner rate limits dependency probes (max once per 10s) to keep the
// health endpoint cheap. The check itself runs outside the mutex so a slow
// partner never blocks the scheduler from recording outcomes.
func (m *Monitor) probePartner(ctx context.Context) *bool {
	if m.partner == nil {
		return nil
	}

	m.mu.Lock()
	if time.Since(m.lastProbe) < 10*time.Second {
		ok := m.lastPartnerOK
		m.mu.Unlock()
		return &ok
	}
	// Claim the probe slot before releasing the lock so concurrent health
	// requests do not each hit the partner.
	m.lastProbe = time.Now()
	m.mu.Unlock()

	ok := m.partner.HealthCheck(ctx)

	m.mu.Lock()
	m.lastPartnerOK = ok
	m.mu.Unlock()
	return &ok
}
