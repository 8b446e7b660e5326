package extractors

import (
	"context"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/processor"
)

// Source returns the raw cell range of the schedule sheet
type Source interface {
	Fetch(ctx context.Context) (*models.RawSheet, error)
	Name() string
}

// Extractor runs the extract phase over one Source
type Extractor struct {
	source Source
	logger *utils.ETLLogger
}

// NewExtractor creates a new Extractor
func NewExtractor(source Source, logger *utils.ETLLogger) *Extractor {
	return &Extractor{source: source, logger: logger}
}

// Extract fetches the raw rows. No retries: a failed fetch fails the run.
func (e *Extractor) Extract(ctx context.Context) (*models.RawSheet, error) {
	startTime := time.Now()
	e.logger.LogExtractStart(e.source.Name())

	sheet, err := e.source.Fetch(ctx)
	if err != nil {
		e.logger.Error("Extract phase failed: %v", err)
		return nil, fmt.Errorf("failed to fetch %s: %w", e.source.Name(), err)
	}

	e.logger.LogExtractComplete(sheet.RowCount(), time.Since(startTime))
	return sheet, nil
}

// NewSourceFromConfig builds the configured source: the Sheets API or a local
// workbook, wrapped in a snapshot writer when a snapshot file is configured
func NewSourceFromConfig(ctx context.Context, cfg *config.Config, logger *utils.ETLLogger) (Source, error) {
	var source Source
	switch cfg.Source.Kind {
	case "xlsx":
		x, err := NewXLSXExtractor(cfg, logger)
		if err != nil {
			return nil, err
		}
		source = x
	default:
		resolver := NewCredentialResolver(cfg.Auth, logger)
		s, err := NewSheetsExtractorFromResolver(ctx, cfg, resolver, logger)
		if err != nil {
			if !cfg.Source.FallbackToSnapshot || cfg.Source.SnapshotFile == "" {
				return nil, err
			}
			// credentials are unusable but a snapshot may still serve the dashboard
			logger.Warn("Sheets client unavailable, serving snapshot only: %v", err)
			return NewSnapshotReader(processor.NewSnapshotStore(cfg.Source.SnapshotFile)), nil
		}
		source = s
	}

	if cfg.Source.SnapshotFile == "" {
		return source, nil
	}
	return NewSnapshotSource(source, processor.NewSnapshotStore(cfg.Source.SnapshotFile), cfg.Source.FallbackToSnapshot, logger), nil
}
