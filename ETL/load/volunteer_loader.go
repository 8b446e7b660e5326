package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// VolunteerLoader upserts the volunteer registry
type VolunteerLoader struct {
	logger *utils.ETLLogger
}

// NewVolunteerLoader creates a new VolunteerLoader
func NewVolunteerLoader(logger *utils.ETLLogger) *VolunteerLoader {
	return &VolunteerLoader{logger: logger}
}

// Load upserts volunteers, widening their first/last seen dates, then the aliases
func (l *VolunteerLoader) Load(ctx context.Context, tx *sql.Tx, volunteers []models.Volunteer, aliases []models.VolunteerAlias) error {
	if len(volunteers) == 0 && len(aliases) == 0 {
		l.logger.Debug("No volunteers to load")
		return nil
	}
	startTime := time.Now()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO volunteer (volunteer_id, display_name, first_seen, last_seen)
		VALUES (?, ?, CAST(? AS DATE), CAST(? AS DATE))
		ON CONFLICT (volunteer_id) DO UPDATE SET
			display_name = excluded.display_name,
			first_seen = LEAST(first_seen, excluded.first_seen),
			last_seen = GREATEST(last_seen, excluded.last_seen)`)
	if err != nil {
		return fmt.Errorf("failed to prepare volunteer upsert: %w", err)
	}
	defer stmt.Close()

	processed := 0
	for _, v := range volunteers {
		if _, err := stmt.ExecContext(ctx, v.ID, v.DisplayName,
			v.FirstSeen.Format(models.DateLayout), v.LastSeen.Format(models.DateLayout)); err != nil {
			return fmt.Errorf("failed to upsert volunteer %q: %w", v.ID, err)
		}
		processed++
		if processed%100 == 0 {
			l.logger.Debug("Loaded %d of %d volunteers...", processed, len(volunteers))
		}
	}

	if len(aliases) > 0 {
		aliasStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO volunteer_alias (alias, volunteer_id)
			VALUES (?, ?)
			ON CONFLICT (alias) DO UPDATE SET volunteer_id = excluded.volunteer_id`)
		if err != nil {
			return fmt.Errorf("failed to prepare alias upsert: %w", err)
		}
		defer aliasStmt.Close()

		for _, a := range aliases {
			if _, err := aliasStmt.ExecContext(ctx, a.Alias, a.VolunteerID); err != nil {
				return fmt.Errorf("failed to upsert alias %q: %w", a.Alias, err)
			}
		}
	}

	l.logger.LogLoadComplete("volunteer", processed, time.Since(startTime))
	return nil
}
