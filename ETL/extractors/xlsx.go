package extractors

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// XLSXExtractor reads the schedule sheet from a local workbook export
type XLSXExtractor struct {
	path          string
	spreadsheetID string
	sheetName     string
	lastColumn    int
	logger        *utils.ETLLogger
}

// NewXLSXExtractor creates an XLSXExtractor for source.workbook_path
func NewXLSXExtractor(cfg *config.Config, logger *utils.ETLLogger) (*XLSXExtractor, error) {
	if cfg.Source.WorkbookPath == "" {
		return nil, fmt.Errorf("source.workbook_path is required for xlsx sources")
	}
	last, err := config.ColumnIndex(cfg.Columns.RangeEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid range end: %w", err)
	}
	return &XLSXExtractor{
		path:          cfg.Source.WorkbookPath,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		lastColumn:    last,
		logger:        logger,
	}, nil
}

// Name implements Source
func (e *XLSXExtractor) Name() string {
	return "xlsx"
}

// Fetch reads every row of the sheet up to the configured last column
func (e *XLSXExtractor) Fetch(ctx context.Context) (*models.RawSheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(e.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", e.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(e.sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", e.sheetName, err)
	}
	for i, row := range rows {
		if len(row) > e.lastColumn+1 {
			rows[i] = row[:e.lastColumn+1]
		}
	}

	return &models.RawSheet{
		SpreadsheetID: e.spreadsheetID,
		SheetName:     e.sheetName,
		Range:         e.path,
		Rows:          rows,
		FetchedAt:     time.Now().UTC(),
		Source:        e.Name(),
	}, nil
}
