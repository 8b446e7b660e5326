package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// LoadResult summarizes one load phase
type LoadResult struct {
	FactsLoaded       int
	RowsChanged       int // source rows not seen by an earlier ingest
	StaleFactsRemoved int
}

// LoadManager drives the load phase of an ingest run
type LoadManager struct {
	db     *sql.DB
	logger *utils.ETLLogger
	loader Loader
}

// NewLoadManager creates a new LoadManager
func NewLoadManager(db *sql.DB, logger *utils.ETLLogger) *LoadManager {
	return &LoadManager{
		db:     db,
		logger: logger,
		loader: NewWarehouseLoader(logger),
	}
}

// Load writes the transformed data in one transaction: date dimension first,
// then the other dimensions, source rows and finally the facts. Any failure
// rolls back the whole batch.
func (m *LoadManager) Load(ctx context.Context, data *models.TransformedData) (*LoadResult, error) {
	if data == nil {
		return nil, fmt.Errorf("no data to load")
	}
	startTime := time.Now()
	m.logger.Info("Load phase started")

	result := &LoadResult{}
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		// 1. Date dimension
		if err := m.loader.LoadDateDimension(ctx, tx, data.Dates); err != nil {
			return fmt.Errorf("failed to load date dimension: %w", err)
		}

		// 2. Service types
		if err := m.loader.LoadServiceTypes(ctx, tx, data.ServiceTypes); err != nil {
			return fmt.Errorf("failed to load service types: %w", err)
		}

		// 3. Volunteers and aliases
		if err := m.loader.LoadVolunteers(ctx, tx, data.Volunteers, data.Aliases); err != nil {
			return fmt.Errorf("failed to load volunteers: %w", err)
		}

		// 4. Source rows
		changed, err := m.loader.LoadSourceRows(ctx, tx, data.SourceRows)
		if err != nil {
			return fmt.Errorf("failed to load source rows: %w", err)
		}
		result.RowsChanged = changed

		// 5. Facts
		stale, err := m.loader.LoadServiceFacts(ctx, tx, data.Facts)
		if err != nil {
			return fmt.Errorf("failed to load service facts: %w", err)
		}
		result.StaleFactsRemoved = stale
		result.FactsLoaded = len(data.Facts)
		return nil
	})
	if err != nil {
		m.logger.Error("Load phase failed: %v", err)
		return nil, err
	}

	m.logger.Info("Load phase finished in %v: %d facts, %d changed rows", time.Since(startTime), result.FactsLoaded, result.RowsChanged)
	return result, nil
}

// UpsertDateDim writes calendar rows on their own
func (m *LoadManager) UpsertDateDim(ctx context.Context, dates []models.DateDimension) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		return m.loader.LoadDateDimension(ctx, tx, dates)
	})
}

// InsertFacts writes facts on their own, insert-or-replace by fact id
func (m *LoadManager) InsertFacts(ctx context.Context, facts []models.ServiceFact) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		_, err := m.loader.LoadServiceFacts(ctx, tx, facts)
		return err
	})
}

func (m *LoadManager) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
