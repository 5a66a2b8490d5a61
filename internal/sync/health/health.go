// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// JobHealth contains health metrics for one sync job.
type JobHealth struct {
	Job          string        `json:"job"`
	Status       SystemStatus  `json:"status"`
	LastRunID    string        `json:"last_run_id,omitempty"`
	LastFinished time.Time     `json:"last_finished,omitempty"`
	SinceLastRun time.Duration `json:"since_last_run,omitempty"`
	Rows         int           `json:"rows"`
	LastError    string        `json:"last_error,omitempty"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus SystemStatus         `json:"system_status"`
	PartnerOK    *bool                `json:"partner_ok,omitempty"`
	Jobs         map[string]JobHealth `json:"jobs"`
}
