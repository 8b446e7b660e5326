// Package runner drives one ingest run end to end and, optionally, on a schedule.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/extractors"
	"github.com/LilVoxy/ministry_analytics/ETL/linear_regression"
	"github.com/LilVoxy/ministry_analytics/ETL/load"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/teamrank"
	"github.com/LilVoxy/ministry_analytics/ETL/transform"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// ErrSchedulerDisabled is returned by StartScheduler when no refresh interval is configured
var ErrSchedulerDisabled = errors.New("scheduled refresh is disabled")

// Summary describes a finished ingest run
type Summary struct {
	RunID             string        `json:"run_id"`
	Source            string        `json:"source"`
	RowsRead          int           `json:"rows_read"`
	RowsSkipped       int           `json:"rows_skipped"`
	RowsChanged       int           `json:"rows_changed"`
	FactsLoaded       int           `json:"facts_loaded"`
	StaleFactsRemoved int           `json:"stale_facts_removed"`
	Duration          time.Duration `json:"duration"`
}

// Event is published to listeners after every run, successful or not
type Event struct {
	Type       string    `json:"type"` // "ingest_finished"
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Source     string    `json:"source,omitempty"`
	FactsCount int       `json:"facts_loaded"`
	FinishedAt time.Time `json:"finished_at"`
}

// Runner executes ingest runs. Runs are serialized.
type Runner struct {
	mu sync.Mutex

	cfg         *config.Config
	logger      *utils.ETLLogger
	extractor   *extractors.Extractor
	transformer *transform.Transformer
	loadManager *load.LoadManager
	runLog      models.IngestRunRepository
	teamRank    *teamrank.TeamRankProcessor
	forecast    *linear_regression.RegressionProcessor

	listenersMu sync.RWMutex
	listeners   []func(Event)
}

// New wires a Runner over an open store connection and a source
func New(cfg *config.Config, db *sql.DB, source extractors.Source, logger *utils.ETLLogger) (*Runner, error) {
	transformer, err := transform.NewTransformer(cfg, logger)
	if err != nil {
		return nil, err
	}
	// the allow-list shapes the derived tables too, not just the reads
	rankCfg := teamrank.ConfigFrom(cfg.Rank)
	rankCfg.ServiceTypes = cfg.Stats.IncludeServiceTypes
	forecastCfg := linear_regression.ConfigFrom(cfg.Forecast)
	forecastCfg.ServiceTypes = cfg.Stats.IncludeServiceTypes

	return &Runner{
		cfg:         cfg,
		logger:      logger,
		extractor:   extractors.NewExtractor(source, logger),
		transformer: transformer,
		loadManager: load.NewLoadManager(db, logger),
		runLog:      models.NewDuckDBIngestRunRepository(db),
		teamRank:    teamrank.NewTeamRankProcessor(db, logger, rankCfg),
		forecast:    linear_regression.NewDuckDBRegressionProcessor(db, logger, forecastCfg),
	}, nil
}

// NewFromConfig builds the configured source and wires a Runner over it
func NewFromConfig(ctx context.Context, cfg *config.Config, db *sql.DB, logger *utils.ETLLogger) (*Runner, error) {
	source, err := extractors.NewSourceFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}
	return New(cfg, db, source, logger)
}

// OnFinish registers a listener called after each run
func (r *Runner) OnFinish(fn func(Event)) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Runner) publish(e Event) {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()
	for _, fn := range r.listeners {
		fn(e)
	}
}

// Execute runs extract, transform and load, then the post-load analytics.
// Extract and write failures are returned; analytics failures are only logged.
func (r *Runner) Execute(ctx context.Context) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	startTime := time.Now()
	runID, err := r.runLog.CreateLogEntry(ctx, startTime)
	if err != nil {
		r.logger.Error("Failed to create ingest run entry: %v", err)
		return nil, fmt.Errorf("failed to create ingest run entry: %w", err)
	}
	r.logger.LogETLStart(runID)
	summary := &Summary{RunID: runID}

	// 1. Extract
	sheet, err := r.extractor.Extract(ctx)
	if err != nil {
		return nil, r.fail(ctx, summary, startTime, "extract", err)
	}
	summary.Source = sheet.Source

	// 2. Transform
	data, err := r.transformer.Transform(sheet)
	if err != nil {
		return nil, r.fail(ctx, summary, startTime, "transform", err)
	}
	summary.RowsRead = data.Stats.RowsRead
	summary.RowsSkipped = data.Stats.RowsSkipped

	// 3. Load
	loaded, err := r.loadManager.Load(ctx, data)
	if err != nil {
		return nil, r.fail(ctx, summary, startTime, "load", err)
	}
	summary.FactsLoaded = loaded.FactsLoaded
	summary.RowsChanged = loaded.RowsChanged
	summary.StaleFactsRemoved = loaded.StaleFactsRemoved

	// 4. Post-load analytics, not critical for the run
	r.runAnalytics(ctx)

	summary.Duration = time.Since(startTime)
	if err := r.runLog.UpdateLogEntrySuccess(ctx, runID, time.Now(), models.RunCounts{
		Source:      summary.Source,
		RowsRead:    summary.RowsRead,
		RowsSkipped: summary.RowsSkipped,
		RowsChanged: summary.RowsChanged,
		FactsLoaded: summary.FactsLoaded,
	}); err != nil {
		r.logger.Error("Failed to update ingest run entry: %v", err)
	}

	utils.RecordIngestRun(models.RunStatusSuccess, startTime, summary.FactsLoaded, summary.RowsSkipped)
	r.logger.LogETLComplete(startTime, summary.RowsRead, summary.RowsSkipped, summary.FactsLoaded)
	r.publish(Event{
		Type:       "ingest_finished",
		RunID:      runID,
		Status:     models.RunStatusSuccess,
		Source:     summary.Source,
		FactsCount: summary.FactsLoaded,
		FinishedAt: time.Now().UTC(),
	})
	return summary, nil
}

func (r *Runner) fail(ctx context.Context, summary *Summary, startTime time.Time, phase string, cause error) error {
	err := fmt.Errorf("%s phase failed: %w", phase, cause)
	r.logger.WithField("run_id", summary.RunID).Error("%v", err)

	// the run log is updated even when the request context is already gone
	logCtx := context.WithoutCancel(ctx)
	if updateErr := r.runLog.UpdateLogEntryFailure(logCtx, summary.RunID, time.Now(), err.Error()); updateErr != nil {
		r.logger.Error("Failed to update ingest run entry: %v", updateErr)
	}

	utils.RecordIngestRun(models.RunStatusFailed, startTime, 0, 0)
	r.publish(Event{
		Type:       "ingest_finished",
		RunID:      summary.RunID,
		Status:     models.RunStatusFailed,
		FinishedAt: time.Now().UTC(),
	})
	return err
}

func (r *Runner) runAnalytics(ctx context.Context) {
	if _, err := r.teamRank.Process(ctx); err != nil {
		r.logger.Error("Team rank failed: %v", err)
	}
	if _, err := r.forecast.Process(ctx); err != nil {
		if errors.Is(err, linear_regression.ErrInsufficientData) {
			r.logger.Info("Forecast skipped: %v", err)
			return
		}
		r.logger.Error("Forecast failed: %v", err)
	}
}

// RunForecast recomputes only the participation forecast
func (r *Runner) RunForecast(ctx context.Context) (*linear_regression.ForecastSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forecast.Process(ctx)
}

// RunLog returns the ingest run journal
func (r *Runner) RunLog() models.IngestRunRepository {
	return r.runLog
}

// StartScheduler runs Execute every ingest.refresh_interval until ctx is done
func (r *Runner) StartScheduler(ctx context.Context) error {
	interval := r.cfg.Ingest.RefreshInterval
	if interval <= 0 {
		return ErrSchedulerDisabled
	}

	scheduler := gocron.NewScheduler(time.UTC)
	r.logger.Info("Starting ingest scheduler with interval %v", interval)

	_, err := scheduler.Every(interval).Do(func() {
		r.logger.Info("Scheduled ingest run")
		if _, err := r.Execute(ctx); err != nil {
			r.logger.Error("Scheduled ingest run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to configure scheduler: %w", err)
	}

	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()
	r.logger.Info("Ingest scheduler stopped")
	return nil
}
