package models

import (
	"context"
	"time"
)

// Ingest run statuses
const (
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusFailed     = "failed"
)

// IngestRunLog is one entry of the ingest run journal
type IngestRunLog struct {
	ID                   string    `json:"id"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	Status               string    `json:"status"` // "success", "failed", "in_progress"
	Source               string    `json:"source"`
	RowsRead             int       `json:"rows_read"`
	RowsSkipped          int       `json:"rows_skipped"`
	RowsChanged          int       `json:"rows_changed"`
	FactsLoaded          int       `json:"facts_loaded"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	ExecutionTimeSeconds float64   `json:"execution_time_seconds"`
}

// RunCounts are the counters written when a run succeeds
type RunCounts struct {
	Source      string
	RowsRead    int
	RowsSkipped int
	RowsChanged int
	FactsLoaded int
}

// IngestRunRepository stores the ingest run journal
type IngestRunRepository interface {
	// CreateLogEntry starts a new run and returns its id
	CreateLogEntry(ctx context.Context, startTime time.Time) (string, error)

	// UpdateLogEntrySuccess marks a run as finished successfully
	UpdateLogEntrySuccess(ctx context.Context, id string, endTime time.Time, counts RunCounts) error

	// UpdateLogEntryFailure marks a run as failed
	UpdateLogEntryFailure(ctx context.Context, id string, endTime time.Time, errorMessage string) error

	// GetLastSuccessfulRun returns nil when no run has succeeded yet
	GetLastSuccessfulRun(ctx context.Context) (*IngestRunLog, error)

	// GetRecentRuns returns the latest runs, newest first
	GetRecentRuns(ctx context.Context, limit int) ([]IngestRunLog, error)
}

// IngestStateMonitor summarizes the journal for the dashboard
type IngestStateMonitor struct {
	LastSuccessfulRun       *IngestRunLog `json:"last_successful_run"`
	LastFailedRun           *IngestRunLog `json:"last_failed_run,omitempty"`
	TotalSuccessfulRuns     int           `json:"total_successful_runs"`
	TotalFailedRuns         int           `json:"total_failed_runs"`
	AvgExecutionTimeSeconds float64       `json:"avg_execution_time_seconds"`
}
