package transform

import (
	"fmt"
	"sort"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// roleColumn is a configured role with its resolved column index
type roleColumn struct {
	index       int
	key         string
	serviceType string
	validRows   *config.RowRange
}

// ServiceFactsProcessor turns raw sheet rows into service facts
type ServiceFactsProcessor struct {
	logger        *utils.ETLLogger
	spreadsheetID string
	sheetName     string
	dateIdx       int
	lastIdx       int
	roles         []roleColumn
	aliases       map[string]string
}

// NewServiceFactsProcessor resolves the column layout of cfg
func NewServiceFactsProcessor(cfg *config.Config, logger *utils.ETLLogger) (*ServiceFactsProcessor, error) {
	dateIdx, err := config.ColumnIndex(cfg.Columns.Date)
	if err != nil {
		return nil, fmt.Errorf("date column: %w", err)
	}

	p := &ServiceFactsProcessor{
		logger:        logger,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		dateIdx:       dateIdx,
		lastIdx:       dateIdx,
		aliases:       normalizeAliases(cfg.Volunteers.Aliases),
	}

	for _, r := range cfg.Columns.Roles {
		idx, err := config.ColumnIndex(r.Key)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", r.ServiceType, err)
		}
		p.roles = append(p.roles, roleColumn{
			index:       idx,
			key:         r.Key,
			serviceType: r.ServiceType,
			validRows:   r.ValidRows,
		})
		if idx > p.lastIdx {
			p.lastIdx = idx
		}
	}
	return p, nil
}

// ProcessServiceFacts parses, deduplicates and orders the facts of a sheet
func (p *ServiceFactsProcessor) ProcessServiceFacts(rows [][]string, ingestedAt time.Time) ([]models.ServiceFact, []models.SourceRow, models.TransformStats) {
	stats := models.TransformStats{RowsRead: len(rows)}
	var candidates []models.ServiceFact
	var sourceRows []models.SourceRow

	for i, row := range rows {
		rowNumber := i + 1

		serviceDate, ok := ParseServiceDate(cellAt(row, p.dateIdx))
		if !ok {
			// header and garbage rows
			stats.RowsSkipped++
			continue
		}

		checksum := RowChecksum(row, p.lastIdx)
		sourceRowID := fmt.Sprintf("%s:%s:%d:%s", p.spreadsheetID, p.sheetName, rowNumber, checksum)
		sourceRows = append(sourceRows, models.SourceRow{
			ID:            sourceRowID,
			SpreadsheetID: p.spreadsheetID,
			SheetName:     p.sheetName,
			RowNumber:     rowNumber,
			Checksum:      checksum,
		})

		for _, role := range p.roles {
			if !role.validRows.Contains(rowNumber) {
				continue
			}
			name := NormalizeName(cellAt(row, role.index))
			if name == "" {
				continue
			}
			volunteerID := p.resolve(name)
			candidates = append(candidates, models.ServiceFact{
				FactID:        fmt.Sprintf("%s:%s:%s:%d", serviceDate.Format(models.DateLayout), role.serviceType, volunteerID, rowNumber),
				VolunteerID:   volunteerID,
				ServiceTypeID: role.serviceType,
				ServiceDate:   serviceDate,
				SourceRowID:   sourceRowID,
				IngestedAt:    ingestedAt,
				RowNumber:     rowNumber,
				ColumnIndex:   role.index,
			})
		}
	}

	stats.CandidateFacts = len(candidates)
	facts := Deduplicate(candidates)
	stats.DuplicatesDropped = len(candidates) - len(facts)

	p.logger.Debug("Parsed %d rows: %d candidate facts, %d duplicates dropped, %d rows skipped",
		stats.RowsRead, stats.CandidateFacts, stats.DuplicatesDropped, stats.RowsSkipped)
	return facts, sourceRows, stats
}

func (p *ServiceFactsProcessor) resolve(name string) string {
	if canonical, ok := p.aliases[name]; ok {
		return canonical
	}
	return name
}

// Deduplicate keeps one fact per (date, volunteer, service type): the one from the
// highest sheet row, then the later column. Output is ordered by date, service type, volunteer.
func Deduplicate(facts []models.ServiceFact) []models.ServiceFact {
	latest := make(map[string]models.ServiceFact, len(facts))
	for _, f := range facts {
		prev, exists := latest[f.Key()]
		if !exists || f.RowNumber > prev.RowNumber ||
			(f.RowNumber == prev.RowNumber && f.ColumnIndex > prev.ColumnIndex) {
			latest[f.Key()] = f
		}
	}

	out := make([]models.ServiceFact, 0, len(latest))
	for _, f := range latest {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ServiceDate.Equal(b.ServiceDate) {
			return a.ServiceDate.Before(b.ServiceDate)
		}
		if a.ServiceTypeID != b.ServiceTypeID {
			return a.ServiceTypeID < b.ServiceTypeID
		}
		return a.VolunteerID < b.VolunteerID
	})
	return out
}

func normalizeAliases(aliases map[string]string) map[string]string {
	out := make(map[string]string, len(aliases))
	for alias, canonical := range aliases {
		a, c := NormalizeName(alias), NormalizeName(canonical)
		if a == "" || c == "" || a == c {
			continue
		}
		out[a] = c
	}
	return out
}
