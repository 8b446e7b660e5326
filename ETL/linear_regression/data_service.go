package linear_regression

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
)

// DuckDBDataService reads weekly service counts from service_fact
type DuckDBDataService struct {
	db           *sql.DB
	serviceTypes []string
}

// NewDuckDBDataService creates a new DuckDBDataService counting only
// serviceTypes (all service types when empty)
func NewDuckDBDataService(db *sql.DB, serviceTypes []string) *DuckDBDataService {
	return &DuckDBDataService{db: db, serviceTypes: serviceTypes}
}

// typePredicate returns the service type condition and its arguments
func (s *DuckDBDataService) typePredicate() (string, []any) {
	if len(s.serviceTypes) == 0 {
		return "", nil
	}
	args := make([]any, 0, len(s.serviceTypes))
	for _, t := range s.serviceTypes {
		args = append(args, t)
	}
	return " AND service_type_id IN (?" + strings.Repeat(", ?", len(s.serviceTypes)-1) + ")", args
}

// GetWeeklyServiceData implements DataService
func (s *DuckDBDataService) GetWeeklyServiceData(ctx context.Context, weeks int, until time.Time) ([]DataPoint, error) {
	// The window ends at the latest service, not at today, so a sheet that
	// stopped being filled in does not drag the trend to zero.
	typeCond, typeArgs := s.typePredicate()

	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT CAST(MAX(service_date) AS VARCHAR) FROM service_fact WHERE service_date <= CAST(? AS DATE)"+typeCond,
		append([]any{until.Format(models.DateLayout)}, typeArgs...)...).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to find the latest service date: %w", err)
	}
	if !last.Valid {
		return nil, fmt.Errorf("%w: no services on or before %s", ErrInsufficientData, until.Format(models.DateLayout))
	}
	lastDate, err := time.Parse(models.DateLayout, last.String)
	if err != nil {
		return nil, fmt.Errorf("unexpected date %q: %w", last.String, err)
	}

	lastWeek := weekStart(lastDate)
	firstWeek := lastWeek.AddDate(0, 0, -7*(weeks-1))

	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(CAST(date_trunc('week', service_date) AS DATE) AS VARCHAR), COUNT(*)
		FROM service_fact
		WHERE service_date >= CAST(? AS DATE) AND service_date <= CAST(? AS DATE)`+typeCond+`
		GROUP BY 1`,
		append([]any{firstWeek.Format(models.DateLayout), lastDate.Format(models.DateLayout)}, typeArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("weekly service query failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var week string
		var n int
		if err := rows.Scan(&week, &n); err != nil {
			return nil, fmt.Errorf("failed to scan weekly count: %w", err)
		}
		counts[week] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	points := make([]DataPoint, 0, weeks)
	for i, w := 0, firstWeek; !w.After(lastWeek); i, w = i+1, w.AddDate(0, 0, 7) {
		points = append(points, DataPoint{
			X:         float64(i),
			Y:         float64(counts[w.Format(models.DateLayout)]),
			WeekStart: w,
		})
	}
	return points, nil
}

// weekStart returns the Monday of t's ISO week
func weekStart(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}
