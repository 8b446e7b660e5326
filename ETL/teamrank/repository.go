package teamrank

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// DuckDBTeamRankRepository stores the ranking in volunteer_rank and coservice_edge
type DuckDBTeamRankRepository struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewDuckDBTeamRankRepository creates a new DuckDBTeamRankRepository
func NewDuckDBTeamRankRepository(db *sql.DB, logger *utils.ETLLogger) *DuckDBTeamRankRepository {
	return &DuckDBTeamRankRepository{db: db, logger: logger}
}

// SaveRanks replaces the stored ranking in one transaction
func (r *DuckDBTeamRankRepository) SaveRanks(ctx context.Context, ranks []VolunteerRank) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM volunteer_rank"); err != nil {
		return fmt.Errorf("failed to clear ranks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO volunteer_rank
		(volunteer_id, rank_score, rank_position, category, service_count, partner_count, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare rank insert: %w", err)
	}
	defer stmt.Close()

	for _, rank := range ranks {
		if _, err = stmt.ExecContext(ctx, rank.VolunteerID, rank.Rank, rank.Position, rank.Category,
			rank.ServiceCount, rank.PartnerCount, rank.CalculationDate); err != nil {
			return fmt.Errorf("failed to insert rank for %q: %w", rank.VolunteerID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ranks: %w", err)
	}
	r.logger.Info("Saved %d volunteer ranks", len(ranks))
	return nil
}

// SaveLinks replaces the stored co-service graph in one transaction
func (r *DuckDBTeamRankRepository) SaveLinks(ctx context.Context, links []CoServiceLink) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM coservice_edge"); err != nil {
		return fmt.Errorf("failed to clear co-service edges: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO coservice_edge (volunteer_a, volunteer_b, shared_dates) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range links {
		if _, err = stmt.ExecContext(ctx, l.VolunteerA, l.VolunteerB, l.SharedDates); err != nil {
			return fmt.Errorf("failed to insert edge %s-%s: %w", l.VolunteerA, l.VolunteerB, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit co-service edges: %w", err)
	}
	r.logger.Info("Saved %d co-service edges", len(links))
	return nil
}
