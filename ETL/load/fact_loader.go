package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// FactLoader writes service facts. A stored fact with the same
// (date, volunteer, service type) but another fact id is replaced, so the
// uniqueness of that triple holds across imports.
type FactLoader struct {
	logger *utils.ETLLogger
}

// NewFactLoader creates a new FactLoader
func NewFactLoader(logger *utils.ETLLogger) *FactLoader {
	return &FactLoader{logger: logger}
}

// Load upserts facts and returns the number of stale facts removed
func (l *FactLoader) Load(ctx context.Context, tx *sql.Tx, facts []models.ServiceFact) (int, error) {
	if len(facts) == 0 {
		l.logger.Debug("No service facts to load")
		return 0, nil
	}
	startTime := time.Now()
	l.logger.Info("Loading service facts (total: %d)", len(facts))

	deleteStmt, err := tx.PrepareContext(ctx, `
		DELETE FROM service_fact
		WHERE service_date = CAST(? AS DATE) AND volunteer_id = ? AND service_type_id = ? AND fact_id <> ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare stale fact delete: %w", err)
	}
	defer deleteStmt.Close()

	upsertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO service_fact (fact_id, volunteer_id, service_type_id, service_date, source_row_id, ingested_at)
		VALUES (?, ?, ?, CAST(? AS DATE), ?, ?)
		ON CONFLICT (fact_id) DO UPDATE SET
			source_row_id = excluded.source_row_id,
			ingested_at = excluded.ingested_at`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare fact upsert: %w", err)
	}
	defer upsertStmt.Close()

	stale := 0
	for i, f := range facts {
		date := f.ServiceDate.Format(models.DateLayout)

		res, err := deleteStmt.ExecContext(ctx, date, f.VolunteerID, f.ServiceTypeID, f.FactID)
		if err != nil {
			return 0, fmt.Errorf("failed to remove stale facts for %s: %w", f.FactID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			stale += int(n)
		}

		if _, err := upsertStmt.ExecContext(ctx, f.FactID, f.VolunteerID, f.ServiceTypeID, date,
			f.SourceRowID, f.IngestedAt.UTC()); err != nil {
			return 0, fmt.Errorf("failed to upsert fact %s: %w", f.FactID, err)
		}

		if (i+1)%500 == 0 {
			l.logger.Debug("Loaded %d of %d facts...", i+1, len(facts))
		}
	}

	l.logger.LogLoadComplete("service_fact", len(facts), time.Since(startTime))
	if stale > 0 {
		l.logger.Info("Replaced %d stale facts", stale)
	}
	return stale, nil
}
