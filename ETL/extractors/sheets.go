package extractors

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// SheetsExtractor reads the schedule through the Google Sheets API v4
type SheetsExtractor struct {
	spreadsheetID string
	sheetName     string
	rangeA1       string
	opts          []option.ClientOption
	logger        *utils.ETLLogger
}

// NewSheetsExtractor creates a SheetsExtractor; opts carry credentials or a test endpoint
func NewSheetsExtractor(cfg *config.Config, logger *utils.ETLLogger, opts ...option.ClientOption) *SheetsExtractor {
	return &SheetsExtractor{
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		rangeA1:       cfg.RangeA1(),
		opts:          opts,
		logger:        logger,
	}
}

// NewSheetsExtractorFromResolver resolves credentials and creates a SheetsExtractor
func NewSheetsExtractorFromResolver(ctx context.Context, cfg *config.Config, resolver *CredentialResolver, logger *utils.ETLLogger) (*SheetsExtractor, error) {
	client, err := resolver.Client(ctx)
	if err != nil {
		return nil, err
	}
	return NewSheetsExtractor(cfg, logger, option.WithHTTPClient(client)), nil
}

// Name implements Source
func (e *SheetsExtractor) Name() string {
	return "sheets"
}

// Fetch reads the configured range with formatted values
func (e *SheetsExtractor) Fetch(ctx context.Context) (*models.RawSheet, error) {
	srv, err := sheets.NewService(ctx, e.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	resp, err := srv.Spreadsheets.Values.Get(e.spreadsheetID, e.rangeA1).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from spreadsheet %s: %w", e.rangeA1, e.spreadsheetID, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				cells[j] = fmt.Sprint(cell)
			}
		}
		rows[i] = cells
	}
	e.logger.Debug("Sheets API returned %d rows for %s", len(rows), resp.Range)

	return &models.RawSheet{
		SpreadsheetID: e.spreadsheetID,
		SheetName:     e.sheetName,
		Range:         e.rangeA1,
		Rows:          rows,
		FetchedAt:     time.Now().UTC(),
		Source:        e.Name(),
	}, nil
}
