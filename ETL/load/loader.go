package load

import (
	"context"
	"database/sql"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// Loader writes transformed data into the warehouse. Every method runs inside
// the caller's transaction.
type Loader interface {
	// LoadDateDimension upserts calendar rows
	LoadDateDimension(ctx context.Context, tx *sql.Tx, dates []models.DateDimension) error

	// LoadServiceTypes upserts the configured role vocabulary
	LoadServiceTypes(ctx context.Context, tx *sql.Tx, types []models.ServiceType) error

	// LoadVolunteers upserts volunteers and their aliases
	LoadVolunteers(ctx context.Context, tx *sql.Tx, volunteers []models.Volunteer, aliases []models.VolunteerAlias) error

	// LoadSourceRows records source rows and returns how many were not seen before
	LoadSourceRows(ctx context.Context, tx *sql.Tx, rows []models.SourceRow) (int, error)

	// LoadServiceFacts upserts facts by fact id and returns how many stale facts were replaced
	LoadServiceFacts(ctx context.Context, tx *sql.Tx, facts []models.ServiceFact) (int, error)
}

// WarehouseLoader is the DuckDB implementation of Loader
type WarehouseLoader struct {
	logger *utils.ETLLogger

	dateLoader        *DateLoader
	serviceTypeLoader *ServiceTypeLoader
	volunteerLoader   *VolunteerLoader
	sourceRowLoader   *SourceRowLoader
	factLoader        *FactLoader
}

// NewWarehouseLoader creates a new WarehouseLoader
func NewWarehouseLoader(logger *utils.ETLLogger) *WarehouseLoader {
	return &WarehouseLoader{
		logger:            logger,
		dateLoader:        NewDateLoader(logger),
		serviceTypeLoader: NewServiceTypeLoader(logger),
		volunteerLoader:   NewVolunteerLoader(logger),
		sourceRowLoader:   NewSourceRowLoader(logger),
		factLoader:        NewFactLoader(logger),
	}
}

// LoadDateDimension upserts calendar rows
func (l *WarehouseLoader) LoadDateDimension(ctx context.Context, tx *sql.Tx, dates []models.DateDimension) error {
	return l.dateLoader.Load(ctx, tx, dates)
}

// LoadServiceTypes upserts the configured role vocabulary
func (l *WarehouseLoader) LoadServiceTypes(ctx context.Context, tx *sql.Tx, types []models.ServiceType) error {
	return l.serviceTypeLoader.Load(ctx, tx, types)
}

// LoadVolunteers upserts volunteers and their aliases
func (l *WarehouseLoader) LoadVolunteers(ctx context.Context, tx *sql.Tx, volunteers []models.Volunteer, aliases []models.VolunteerAlias) error {
	return l.volunteerLoader.Load(ctx, tx, volunteers, aliases)
}

// LoadSourceRows records source rows
func (l *WarehouseLoader) LoadSourceRows(ctx context.Context, tx *sql.Tx, rows []models.SourceRow) (int, error) {
	return l.sourceRowLoader.Load(ctx, tx, rows)
}

// LoadServiceFacts upserts service facts
func (l *WarehouseLoader) LoadServiceFacts(ctx context.Context, tx *sql.Tx, facts []models.ServiceFact) (int, error) {
	return l.factLoader.Load(ctx, tx, facts)
}
