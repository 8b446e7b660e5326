package teamrank

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// TeamRankProcessor computes and stores the co-service ranking after each ingest
type TeamRankProcessor struct {
	logger      *utils.ETLLogger
	dataService DataService
	repository  TeamRankRepository
	config      TeamRankConfig
	now         func() time.Time
}

// NewTeamRankProcessor creates a processor over the store connection
func NewTeamRankProcessor(db *sql.DB, logger *utils.ETLLogger, cfg TeamRankConfig) *TeamRankProcessor {
	return &TeamRankProcessor{
		logger:      logger,
		dataService: NewDuckDBDataService(db, logger, cfg.ServiceTypes),
		repository:  NewDuckDBTeamRankRepository(db, logger),
		config:      cfg,
		now:         time.Now,
	}
}

// SetClock overrides the end of the lookback window
func (p *TeamRankProcessor) SetClock(now func() time.Time) {
	p.now = now
}

// Process ranks the last LookbackMonths of services
func (p *TeamRankProcessor) Process(ctx context.Context) (*TeamRankResult, error) {
	startTime := time.Now()
	p.logger.Info("Team rank started")

	result, err := Run(ctx, p.dataService, p.repository, p.logger, p.config, p.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("team rank failed: %w", err)
	}

	p.logger.Info("Team rank finished in %v", time.Since(startTime))
	return result, nil
}
