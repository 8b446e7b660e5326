package transform

import (
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// Transformer coordinates turning a raw sheet into facts and dimensions
type Transformer struct {
	cfg                   *config.Config
	logger                *utils.ETLLogger
	factsProcessor        *ServiceFactsProcessor
	dateDimProcessor      *DateDimensionProcessor
	volunteerDimProcessor *VolunteerDimensionProcessor
	now                   func() time.Time
}

// NewTransformer creates a new Transformer for the column layout in cfg
func NewTransformer(cfg *config.Config, logger *utils.ETLLogger) (*Transformer, error) {
	factsProcessor, err := NewServiceFactsProcessor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid column layout: %w", err)
	}
	return &Transformer{
		cfg:                   cfg,
		logger:                logger,
		factsProcessor:        factsProcessor,
		dateDimProcessor:      NewDateDimensionProcessor(logger),
		volunteerDimProcessor: NewVolunteerDimensionProcessor(cfg.Volunteers.Aliases, logger),
		now:                   time.Now,
	}, nil
}

// Transform runs the whole transform phase
func (t *Transformer) Transform(sheet *models.RawSheet) (*models.TransformedData, error) {
	if sheet == nil {
		return nil, fmt.Errorf("no sheet to transform")
	}
	startTime := time.Now()
	t.logger.Info("Transform phase started (%d raw rows)", len(sheet.Rows))

	data := &models.TransformedData{}

	// 1. Service facts and their source rows
	facts, sourceRows, stats := t.factsProcessor.ProcessServiceFacts(sheet.Rows, t.now().UTC())
	data.Facts = facts
	data.SourceRows = sourceRows
	data.Stats = stats

	// 2. Date dimension
	data.Dates = t.dateDimProcessor.ProcessDateDimension(facts)

	// 3. Volunteers and aliases
	data.Volunteers, data.Aliases = t.volunteerDimProcessor.ProcessVolunteerDimension(facts)

	// 4. Service types come from the configuration
	data.ServiceTypes = ServiceTypesFromConfig(t.cfg)

	t.logger.LogTransformComplete(len(data.Facts), stats.RowsSkipped, time.Since(startTime))
	return data, nil
}
