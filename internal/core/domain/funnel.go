package domain

import "time"

// HistoryEvent is a single timestamped label in a subject's funnel timeline.
type HistoryEvent struct {
	SubjectID int64
	Label     string
	Timestamp time.Time
}

// StateEvent is a subject's current funnel label with the time it was set.
type StateEvent struct {
	SubjectID int64
	Label     string
	Timestamp time.Time
}

// SubjectState is the merged funnel view of one subject: the full event
// history ordered ascending by timestamp, plus the latest label.
type SubjectState struct {
	SubjectID     int64
	History       []HistoryEvent
	LastEventTime time.Time
	CurrentLabel  string
}
