package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// SourceRowLoader records which spreadsheet rows have been seen. A row whose
// content changed gets a new id because the checksum is part of it.
type SourceRowLoader struct {
	logger *utils.ETLLogger
	now    func() time.Time
}

// NewSourceRowLoader creates a new SourceRowLoader
func NewSourceRowLoader(logger *utils.ETLLogger) *SourceRowLoader {
	return &SourceRowLoader{logger: logger, now: time.Now}
}

// Load inserts unseen source rows and returns their number
func (l *SourceRowLoader) Load(ctx context.Context, tx *sql.Tx, rows []models.SourceRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	startTime := time.Now()

	existsStmt, err := tx.PrepareContext(ctx, "SELECT COUNT(*) FROM source_row WHERE source_row_id = ?")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare source_row lookup: %w", err)
	}
	defer existsStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO source_row (source_row_id, spreadsheet_id, sheet_name, row_index, checksum, first_seen)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare source_row insert: %w", err)
	}
	defer insertStmt.Close()

	seenAt := l.now().UTC()
	changed := 0
	for _, r := range rows {
		var n int
		if err := existsStmt.QueryRowContext(ctx, r.ID).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to look up source row %s: %w", r.ID, err)
		}
		if n > 0 {
			continue
		}
		if _, err := insertStmt.ExecContext(ctx, r.ID, r.SpreadsheetID, r.SheetName, r.RowNumber, r.Checksum, seenAt); err != nil {
			return 0, fmt.Errorf("failed to insert source row %s: %w", r.ID, err)
		}
		changed++
	}

	l.logger.LogLoadComplete("source_row", changed, time.Since(startTime))
	return changed, nil
}
