package models

import (
	"time"
)

// RawSheet is the raw two-dimensional cell range fetched from the spreadsheet
type RawSheet struct {
	SpreadsheetID string     `json:"spreadsheet_id"`
	SheetName     string     `json:"sheet_name"`
	Range         string     `json:"range"`
	Rows          [][]string `json:"rows"`
	FetchedAt     time.Time  `json:"fetched_at"`
	Source        string     `json:"source"` // "sheets", "xlsx" or "snapshot"
}

// RowCount returns the number of raw rows
func (s *RawSheet) RowCount() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}
