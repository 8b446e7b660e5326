package teamrank

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// DuckDBDataService reads co-service input from service_fact
type DuckDBDataService struct {
	db           *sql.DB
	logger       *utils.ETLLogger
	serviceTypes []string
}

// NewDuckDBDataService creates a new DuckDBDataService reading only serviceTypes
// (all service types when empty)
func NewDuckDBDataService(db *sql.DB, logger *utils.ETLLogger, serviceTypes []string) *DuckDBDataService {
	return &DuckDBDataService{db: db, logger: logger, serviceTypes: serviceTypes}
}

// GetCoServiceData implements DataService
func (s *DuckDBDataService) GetCoServiceData(ctx context.Context, since, until time.Time) (*CoServiceData, error) {
	query := `
		SELECT CAST(service_date AS VARCHAR), volunteer_id, COUNT(*)
		FROM service_fact
		WHERE service_date >= CAST(? AS DATE) AND service_date <= CAST(? AS DATE)`
	args := []any{since.Format(models.DateLayout), until.Format(models.DateLayout)}
	if len(s.serviceTypes) > 0 {
		query += " AND service_type_id IN (?" + strings.Repeat(", ?", len(s.serviceTypes)-1) + ")"
		for _, t := range s.serviceTypes {
			args = append(args, t)
		}
	}
	query += `
		GROUP BY 1, 2
		ORDER BY 1, 2`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("co-service query failed: %w", err)
	}
	defer rows.Close()

	data := &CoServiceData{
		DateVolunteers: make(map[string][]string),
		ServiceCounts:  make(map[string]int),
	}
	for rows.Next() {
		var date, volunteer string
		var count int
		if err := rows.Scan(&date, &volunteer, &count); err != nil {
			return nil, fmt.Errorf("failed to scan co-service row: %w", err)
		}
		data.DateVolunteers[date] = append(data.DateVolunteers[date], volunteer)
		data.ServiceCounts[volunteer] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for date := range data.DateVolunteers {
		sort.Strings(data.DateVolunteers[date])
	}

	s.logger.Debug("Co-service input: %d dates, %d volunteers", len(data.DateVolunteers), len(data.ServiceCounts))
	return data, nil
}
