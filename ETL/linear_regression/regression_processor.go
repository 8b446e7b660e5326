package linear_regression

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// Config holds the forecast parameters
type Config struct {
	AnalysisWeeks   int
	ForecastWeeks   int
	ConfidenceLevel float64 // 0.90, 0.95, 0.99
	MinR2Threshold  float64 // below this the forecast is stored but flagged unreliable

	// ServiceTypes limits the counted services; empty means all
	ServiceTypes []string
}

// DefaultConfig returns the default parameters
func DefaultConfig() Config {
	return Config{
		AnalysisWeeks:   26,
		ForecastWeeks:   8,
		ConfidenceLevel: 0.95,
		MinR2Threshold:  0.30,
	}
}

// ConfigFrom converts the forecast section of the configuration
func ConfigFrom(cfg config.ForecastConfig) Config {
	out := DefaultConfig()
	if cfg.AnalysisWeeks > 0 {
		out.AnalysisWeeks = cfg.AnalysisWeeks
	}
	if cfg.ForecastWeeks > 0 {
		out.ForecastWeeks = cfg.ForecastWeeks
	}
	if cfg.ConfidenceLevel > 0 {
		out.ConfidenceLevel = cfg.ConfidenceLevel
	}
	if cfg.MinR2Threshold > 0 {
		out.MinR2Threshold = cfg.MinR2Threshold
	}
	return out
}

// ForecastSummary is the outcome of one Process call
type ForecastSummary struct {
	Regression *RegressionResult
	Forecasts  []ForecastPoint
	Reliable   bool
}

// RegressionProcessor fits the weekly trend and stores the forecast
type RegressionProcessor struct {
	dataService DataService
	repository  ForecastRepository
	logger      *utils.ETLLogger
	config      Config
	now         func() time.Time
}

// NewRegressionProcessor creates a processor from its parts
func NewRegressionProcessor(dataService DataService, repository ForecastRepository, logger *utils.ETLLogger, cfg Config) *RegressionProcessor {
	return &RegressionProcessor{
		dataService: dataService,
		repository:  repository,
		logger:      logger,
		config:      cfg,
		now:         time.Now,
	}
}

// NewDuckDBRegressionProcessor creates a processor over the store connection
func NewDuckDBRegressionProcessor(db *sql.DB, logger *utils.ETLLogger, cfg Config) *RegressionProcessor {
	return NewRegressionProcessor(NewDuckDBDataService(db, cfg.ServiceTypes), NewDuckDBForecastRepository(db), logger, cfg)
}

// SetClock overrides the latest date considered
func (p *RegressionProcessor) SetClock(now func() time.Time) {
	p.now = now
}

// Process reads weekly counts, fits the trend and saves the forecast
func (p *RegressionProcessor) Process(ctx context.Context) (*ForecastSummary, error) {
	startTime := time.Now()
	p.logger.Info("Participation forecast started")

	// 1. Weekly counts
	p.logger.Info("Reading weekly service counts for the last %d weeks", p.config.AnalysisWeeks)
	points, err := p.dataService.GetWeeklyServiceData(ctx, p.config.AnalysisWeeks, p.now().UTC())
	if err != nil {
		return nil, p.clearOnInsufficient(ctx, fmt.Errorf("failed to read weekly data: %w", err))
	}

	// 2. Fit
	result, err := LinearRegression(points)
	if err != nil {
		return nil, p.clearOnInsufficient(ctx, fmt.Errorf("failed to fit trend: %w", err))
	}
	p.logger.Info("Trend: slope=%.3f intercept=%.3f R=%.3f R2=%.3f over %s..%s",
		result.A, result.B, result.R, result.R2,
		result.PeriodStart.Format("2006-01-02"), result.PeriodEnd.Format("2006-01-02"))

	reliable := result.R2 >= p.config.MinR2Threshold
	if !reliable {
		p.logger.Warn("Low model quality (R2=%.3f < %.3f), forecast flagged unreliable", result.R2, p.config.MinR2Threshold)
	}

	// 3. Forecast
	forecasts := GenerateForecasts(result, p.config.ForecastWeeks, p.config.ConfidenceLevel)

	// 4. Persist
	if err := p.repository.SaveForecast(ctx, *result, forecasts, reliable); err != nil {
		return nil, fmt.Errorf("failed to save forecast: %w", err)
	}

	p.logger.Info("Participation forecast finished in %v: %d weeks", time.Since(startTime), len(forecasts))
	return &ForecastSummary{Regression: result, Forecasts: forecasts, Reliable: reliable}, nil
}

// clearOnInsufficient drops the stored forecast when there is too little data
// for a new one, so an outdated forecast is not shown
func (p *RegressionProcessor) clearOnInsufficient(ctx context.Context, err error) error {
	if !errors.Is(err, ErrInsufficientData) {
		return err
	}
	if clearErr := p.repository.SaveForecast(ctx, RegressionResult{}, nil, false); clearErr != nil {
		p.logger.Error("Failed to clear stored forecast: %v", clearErr)
	}
	return err
}
