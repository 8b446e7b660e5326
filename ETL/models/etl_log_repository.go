package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DuckDBIngestRunRepository implements IngestRunRepository on the ingest_run_log table.
// The table itself is created by the store migrations.
type DuckDBIngestRunRepository struct {
	db *sql.DB
}

// NewDuckDBIngestRunRepository creates a new repository
func NewDuckDBIngestRunRepository(db *sql.DB) *DuckDBIngestRunRepository {
	return &DuckDBIngestRunRepository{
		db: db,
	}
}

const runColumns = `
	id, start_time, COALESCE(end_time, start_time), status, COALESCE(source, ''),
	rows_read, rows_skipped, rows_changed, facts_loaded,
	COALESCE(error_message, ''), COALESCE(execution_time_seconds, 0)`

// CreateLogEntry starts a new run and returns its id
func (r *DuckDBIngestRunRepository) CreateLogEntry(ctx context.Context, startTime time.Time) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO ingest_run_log (id, start_time, status, rows_read, rows_skipped, rows_changed, facts_loaded)
	VALUES (?, ?, ?, 0, 0, 0, 0)`, id, startTime.UTC(), RunStatusInProgress)
	if err != nil {
		return "", fmt.Errorf("failed to create ingest run entry: %w", err)
	}
	return id, nil
}

// UpdateLogEntrySuccess marks a run as finished successfully
func (r *DuckDBIngestRunRepository) UpdateLogEntrySuccess(ctx context.Context, id string, endTime time.Time, counts RunCounts) error {
	executionTime, err := r.executionSeconds(ctx, id, endTime)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
	UPDATE ingest_run_log
	SET
		end_time = ?,
		status = ?,
		source = ?,
		rows_read = ?,
		rows_skipped = ?,
		rows_changed = ?,
		facts_loaded = ?,
		execution_time_seconds = ?
	WHERE id = ?`,
		endTime.UTC(),
		RunStatusSuccess,
		counts.Source,
		counts.RowsRead,
		counts.RowsSkipped,
		counts.RowsChanged,
		counts.FactsLoaded,
		executionTime,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update ingest run entry: %w", err)
	}
	return nil
}

// UpdateLogEntryFailure marks a run as failed
func (r *DuckDBIngestRunRepository) UpdateLogEntryFailure(ctx context.Context, id string, endTime time.Time, errorMessage string) error {
	executionTime, err := r.executionSeconds(ctx, id, endTime)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
	UPDATE ingest_run_log
	SET
		end_time = ?,
		status = ?,
		error_message = ?,
		execution_time_seconds = ?
	WHERE id = ?`, endTime.UTC(), RunStatusFailed, errorMessage, executionTime, id)
	if err != nil {
		return fmt.Errorf("failed to update ingest run entry: %w", err)
	}
	return nil
}

func (r *DuckDBIngestRunRepository) executionSeconds(ctx context.Context, id string, endTime time.Time) (float64, error) {
	var startTime time.Time
	err := r.db.QueryRowContext(ctx, "SELECT start_time FROM ingest_run_log WHERE id = ?", id).Scan(&startTime)
	if err != nil {
		return 0, fmt.Errorf("failed to read ingest run start time: %w", err)
	}
	return endTime.UTC().Sub(startTime.UTC()).Seconds(), nil
}

// GetLastSuccessfulRun returns nil when no run has succeeded yet
func (r *DuckDBIngestRunRepository) GetLastSuccessfulRun(ctx context.Context) (*IngestRunLog, error) {
	return r.lastWithStatus(ctx, RunStatusSuccess)
}

func (r *DuckDBIngestRunRepository) lastWithStatus(ctx context.Context, status string) (*IngestRunLog, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT `+runColumns+`
	FROM ingest_run_log
	WHERE status = ?
	ORDER BY start_time DESC
	LIMIT 1`, status)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read last %s ingest run: %w", status, err)
	}
	return run, nil
}

// GetRecentRuns returns the latest runs, newest first
func (r *DuckDBIngestRunRepository) GetRecentRuns(ctx context.Context, limit int) ([]IngestRunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT `+runColumns+`
	FROM ingest_run_log
	ORDER BY start_time DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []IngestRunLog
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingest runs: %w", err)
	}
	return runs, nil
}

// GetStateMonitor summarizes the run journal
func (r *DuckDBIngestRunRepository) GetStateMonitor(ctx context.Context) (*IngestStateMonitor, error) {
	lastSuccessful, err := r.GetLastSuccessfulRun(ctx)
	if err != nil {
		return nil, err
	}
	lastFailed, err := r.lastWithStatus(ctx, RunStatusFailed)
	if err != nil {
		return nil, err
	}

	monitor := &IngestStateMonitor{
		LastSuccessfulRun: lastSuccessful,
		LastFailedRun:     lastFailed,
	}
	err = r.db.QueryRowContext(ctx, `
	SELECT
		COUNT(*) FILTER (WHERE status = 'success'),
		COUNT(*) FILTER (WHERE status = 'failed'),
		COALESCE(AVG(execution_time_seconds) FILTER (WHERE status = 'success'), 0)
	FROM ingest_run_log`).Scan(&monitor.TotalSuccessfulRuns, &monitor.TotalFailedRuns, &monitor.AvgExecutionTimeSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to read ingest run totals: %w", err)
	}
	return monitor, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*IngestRunLog, error) {
	var run IngestRunLog
	err := row.Scan(
		&run.ID, &run.StartTime, &run.EndTime, &run.Status, &run.Source,
		&run.RowsRead, &run.RowsSkipped, &run.RowsChanged, &run.FactsLoaded,
		&run.ErrorMessage, &run.ExecutionTimeSeconds,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
