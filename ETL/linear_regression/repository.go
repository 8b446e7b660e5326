package linear_regression

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
)

// DuckDBForecastRepository stores forecasts in participation_forecast
type DuckDBForecastRepository struct {
	db *sql.DB
}

// NewDuckDBForecastRepository creates a new DuckDBForecastRepository
func NewDuckDBForecastRepository(db *sql.DB) *DuckDBForecastRepository {
	return &DuckDBForecastRepository{db: db}
}

// SaveForecast replaces the stored forecast in one transaction
func (r *DuckDBForecastRepository) SaveForecast(ctx context.Context, result RegressionResult, forecasts []ForecastPoint, reliable bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM participation_forecast"); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear forecast: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO participation_forecast
		(week_start, predicted_services, lower_bound, upper_bound, trend_slope, r_squared, is_reliable, created_at)
	VALUES
		(CAST(? AS DATE), ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare forecast insert: %w", err)
	}
	defer stmt.Close()

	created := time.Now().UTC()
	for _, f := range forecasts {
		if _, err := stmt.ExecContext(ctx,
			f.WeekStart.Format(models.DateLayout),
			f.ForecastValue,
			f.CILower,
			f.CIUpper,
			result.A,
			result.R2,
			reliable,
			created,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert forecast for %s: %w", f.WeekStart.Format(models.DateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit forecast: %w", err)
	}
	return nil
}
