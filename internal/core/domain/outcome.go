package domain

import "time"

// SyncOutcome is the result of one job execution within a tick. Produced by
// the runner, consumed by the scheduler for aggregate logging; not persisted
// beyond the optional last-outcome store.
type SyncOutcome struct {
	RunID      string
	JobName    string
	SheetTab   string
	RowCount   int
	Err        error
	Duration   time.Duration
	FinishedAt time.Time
}

// Failed reports whether the job ended in an error.
func (o SyncOutcome) Failed() bool {
	return o.Err != nil
}
