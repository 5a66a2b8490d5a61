package domain

import "time"

// JobSpec describes one source→tab synchronization. Built once at startup
// from configuration and read-only afterward.
type JobSpec struct {
	Name        string
	Query       string
	SheetTab    string
	StartRow    int
	ColumnSpan  int
	ClearTail   bool
	Enrich      bool
	Database    DatabaseSpec
	Tunnel      *TunnelSpec
	WarnFetchAt time.Duration
}

// DatabaseSpec holds connection parameters for a job's source database.
type DatabaseSpec struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// TunnelSpec holds SSH credentials for sources that are not directly reachable.
type TunnelSpec struct {
	Host     string
	Port     int
	User     string
	Password string
	// RemoteHost/RemotePort point at the database from the SSH host's view.
	RemoteHost string
	RemotePort int
}

// JobState tracks where a job is in its per-tick pipeline.
type JobState string

const (
	JobStateIdle            JobState = "idle"
	JobStateConnecting      JobState = "connecting"
	JobStateFetching        JobState = "fetching"
	JobStateMerging         JobState = "merging"
	JobStateEnriching       JobState = "enriching"
	JobStateWriting         JobState = "writing"
	JobStateReportingStatus JobState = "reporting_status"
	JobStateDone            JobState = "done"
	JobStateFailed          JobState = "failed"
)
