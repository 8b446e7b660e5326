package database

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version    int
	name       string
	statements []string
}

// migrations are applied in order; each statement is idempotent on its own
var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS volunteer (
				volunteer_id VARCHAR PRIMARY KEY,
				display_name VARCHAR NOT NULL,
				first_seen DATE,
				last_seen DATE
			)`,
			`CREATE TABLE IF NOT EXISTS volunteer_alias (
				alias VARCHAR PRIMARY KEY,
				volunteer_id VARCHAR NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS service_type (
				service_type_id VARCHAR PRIMARY KEY,
				column_key VARCHAR NOT NULL,
				sort_order INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS date_dim (
				date DATE PRIMARY KEY,
				year INTEGER NOT NULL,
				quarter INTEGER NOT NULL,
				month INTEGER NOT NULL,
				iso_year INTEGER NOT NULL,
				iso_week INTEGER NOT NULL,
				day_of_week INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS source_row (
				source_row_id VARCHAR PRIMARY KEY,
				spreadsheet_id VARCHAR NOT NULL,
				sheet_name VARCHAR NOT NULL,
				row_index INTEGER NOT NULL,
				checksum VARCHAR NOT NULL,
				first_seen TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS service_fact (
				fact_id VARCHAR PRIMARY KEY,
				volunteer_id VARCHAR NOT NULL,
				service_type_id VARCHAR NOT NULL,
				service_date DATE NOT NULL,
				source_row_id VARCHAR NOT NULL,
				ingested_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS ingest_run_log (
				id VARCHAR PRIMARY KEY,
				start_time TIMESTAMP NOT NULL,
				end_time TIMESTAMP,
				status VARCHAR NOT NULL DEFAULT 'in_progress',
				source VARCHAR,
				rows_read INTEGER DEFAULT 0,
				rows_skipped INTEGER DEFAULT 0,
				rows_changed INTEGER DEFAULT 0,
				facts_loaded INTEGER DEFAULT 0,
				error_message VARCHAR,
				execution_time_seconds DOUBLE
			)`,
		},
	},
	{
		version: 2,
		name:    "post_load_analytics",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS volunteer_rank (
				volunteer_id VARCHAR PRIMARY KEY,
				rank_score DOUBLE NOT NULL,
				rank_position INTEGER NOT NULL,
				category VARCHAR NOT NULL,
				service_count INTEGER NOT NULL,
				partner_count INTEGER NOT NULL,
				calculated_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS coservice_edge (
				volunteer_a VARCHAR NOT NULL,
				volunteer_b VARCHAR NOT NULL,
				shared_dates INTEGER NOT NULL,
				PRIMARY KEY (volunteer_a, volunteer_b)
			)`,
			`CREATE TABLE IF NOT EXISTS participation_forecast (
				week_start DATE PRIMARY KEY,
				predicted_services DOUBLE NOT NULL,
				lower_bound DOUBLE NOT NULL,
				upper_bound DOUBLE NOT NULL,
				trend_slope DOUBLE NOT NULL,
				r_squared DOUBLE NOT NULL,
				is_reliable BOOLEAN NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
		},
	},
}

// Migrate applies every migration not yet recorded in schema_version
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name VARCHAR NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	for _, m := range migrations {
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var applied int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version WHERE version = ?", m.version).Scan(&applied); err != nil {
		return fmt.Errorf("failed to read schema_version: %w", err)
	}
	if applied > 0 {
		return nil
	}

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
		return fmt.Errorf("failed to record version: %w", err)
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}
