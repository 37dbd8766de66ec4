package models

import "time"

// HistoryRecord is an immutable snapshot of a terminal Job written to
// the job history store. Once appended, a record's fields never change.
type HistoryRecord struct {
	JobID         string
	SQL           string
	Engine        string
	State         JobState
	Priority      int
	CreatedAt     time.Time
	StartedAt     time.Time
	CompletedAt   time.Time
	ExecutionMS   float64
	Error         string
	ResultSummary string // JSON-encoded summary (row count, engine, truncated data)
}
