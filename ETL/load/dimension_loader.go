package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// DateLoader upserts the date dimension. Dates are never deleted.
type DateLoader struct {
	logger *utils.ETLLogger
}

// NewDateLoader creates a new DateLoader
func NewDateLoader(logger *utils.ETLLogger) *DateLoader {
	return &DateLoader{logger: logger}
}

// Load upserts calendar rows
func (l *DateLoader) Load(ctx context.Context, tx *sql.Tx, dates []models.DateDimension) error {
	if len(dates) == 0 {
		l.logger.Debug("No dates to load")
		return nil
	}
	startTime := time.Now()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO date_dim (date, year, quarter, month, iso_year, iso_week, day_of_week)
		VALUES (CAST(? AS DATE), ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare date_dim insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range dates {
		if _, err := stmt.ExecContext(ctx, d.Date.Format(models.DateLayout),
			d.Year, d.Quarter, d.Month, d.ISOYear, d.ISOWeek, d.DayOfWeek); err != nil {
			return fmt.Errorf("failed to upsert date %s: %w", d.Date.Format(models.DateLayout), err)
		}
	}

	l.logger.LogLoadComplete("date_dim", len(dates), time.Since(startTime))
	return nil
}

// ServiceTypeLoader mirrors the configured roles into service_type
type ServiceTypeLoader struct {
	logger *utils.ETLLogger
}

// NewServiceTypeLoader creates a new ServiceTypeLoader
func NewServiceTypeLoader(logger *utils.ETLLogger) *ServiceTypeLoader {
	return &ServiceTypeLoader{logger: logger}
}

// Load upserts the role vocabulary
func (l *ServiceTypeLoader) Load(ctx context.Context, tx *sql.Tx, types []models.ServiceType) error {
	if len(types) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO service_type (service_type_id, column_key, sort_order)
		VALUES (?, ?, ?)
		ON CONFLICT (service_type_id) DO UPDATE SET
			column_key = excluded.column_key,
			sort_order = excluded.sort_order`)
	if err != nil {
		return fmt.Errorf("failed to prepare service_type upsert: %w", err)
	}
	defer stmt.Close()

	for _, st := range types {
		if _, err := stmt.ExecContext(ctx, st.ID, st.ColumnKey, st.SortOrder); err != nil {
			return fmt.Errorf("failed to upsert service type %s: %w", st.ID, err)
		}
	}
	l.logger.Debug("Service types upserted: %d", len(types))
	return nil
}
