package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
)

// VolunteerStatsRecentWeeks ranks volunteers over the last N weeks up to today
func (s *Store) VolunteerStatsRecentWeeks(ctx context.Context, weeks int, f Filter) ([]VolunteerStats, error) {
	if weeks <= 0 {
		return nil, fmt.Errorf("weeks must be positive, got %d", weeks)
	}
	return s.volunteerStats(ctx, f.WithStart(s.Today().AddDate(0, 0, -7*weeks)))
}

// VolunteerStatsRecentMonths ranks volunteers over the last N months up to today
func (s *Store) VolunteerStatsRecentMonths(ctx context.Context, months int, f Filter) ([]VolunteerStats, error) {
	if months <= 0 {
		return nil, fmt.Errorf("months must be positive, got %d", months)
	}
	return s.volunteerStats(ctx, f.WithStart(s.Today().AddDate(0, -months, 0)))
}

func (s *Store) volunteerStats(ctx context.Context, f Filter) ([]VolunteerStats, error) {
	cte, args := s.factsCTE(f)
	query := cte + `
	SELECT
		volunteer_id,
		COUNT(*) AS total_services,
		COUNT(DISTINCT service_type_id) AS service_types_count,
		MIN(service_date) AS first_service_date,
		MAX(service_date) AS last_service_date,
		STRING_AGG(DISTINCT service_type_id, '|' ORDER BY service_type_id) AS service_types
	FROM facts
	GROUP BY volunteer_id
	ORDER BY total_services DESC, volunteer_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("volunteer stats query failed: %w", err)
	}
	defer rows.Close()

	var out []VolunteerStats
	for rows.Next() {
		var r VolunteerStats
		var types string
		if err := rows.Scan(&r.VolunteerID, &r.TotalServices, &r.ServiceTypesCount,
			&r.FirstServiceDate, &r.LastServiceDate, &types); err != nil {
			return nil, fmt.Errorf("failed to scan volunteer stats: %w", err)
		}
		r.FirstServiceDate = dateOnly(r.FirstServiceDate)
		r.LastServiceDate = dateOnly(r.LastServiceDate)
		r.ServiceTypes = strings.Split(types, "|")
		out = append(out, r)
	}
	return out, rows.Err()
}

// VolunteerWeeklyTrend returns per-volunteer counts per ISO week over the last N weeks
func (s *Store) VolunteerWeeklyTrend(ctx context.Context, weeks int, f Filter) ([]WeeklyVolunteerCount, error) {
	if weeks <= 0 {
		return nil, fmt.Errorf("weeks must be positive, got %d", weeks)
	}
	cte, args := s.factsCTE(f.WithStart(s.Today().AddDate(0, 0, -7*weeks)))
	query := cte + fmt.Sprintf(`
	SELECT volunteer_id, %s AS week_start, COUNT(*) AS services_count
	FROM facts
	GROUP BY 1, 2
	ORDER BY week_start DESC, services_count DESC, volunteer_id`, bucketExpr(GranularityWeek, "service_date"))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("weekly trend query failed: %w", err)
	}
	defer rows.Close()

	var out []WeeklyVolunteerCount
	for rows.Next() {
		var r WeeklyVolunteerCount
		if err := rows.Scan(&r.VolunteerID, &r.WeekStart, &r.ServicesCount); err != nil {
			return nil, fmt.Errorf("failed to scan weekly trend row: %w", err)
		}
		r.WeekStart = dateOnly(r.WeekStart)
		r.WeekLabel = GranularityWeek.Label(r.WeekStart)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ServiceTypeDistributionRecent returns each role's share of the last N weeks
func (s *Store) ServiceTypeDistributionRecent(ctx context.Context, weeks int, f Filter) ([]ServiceTypeShare, error) {
	if weeks <= 0 {
		return nil, fmt.Errorf("weeks must be positive, got %d", weeks)
	}
	cte, args := s.factsCTE(f.WithStart(s.Today().AddDate(0, 0, -7*weeks)))
	query := cte + `
	SELECT service_type_id, COUNT(*) AS total_services, COUNT(DISTINCT volunteer_id) AS unique_volunteers
	FROM facts
	GROUP BY service_type_id
	ORDER BY total_services DESC, service_type_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("service type distribution query failed: %w", err)
	}
	defer rows.Close()

	var out []ServiceTypeShare
	total := 0
	for rows.Next() {
		var r ServiceTypeShare
		if err := rows.Scan(&r.ServiceTypeID, &r.TotalServices, &r.UniqueVolunteers); err != nil {
			return nil, fmt.Errorf("failed to scan distribution row: %w", err)
		}
		total += r.TotalServices
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Percentage = roundTo(float64(out[i].TotalServices)*100/float64(total), 2)
	}
	return out, nil
}

// PeriodComparison compares each volunteer's last N weeks with the N weeks before them.
// The current window starts on today minus N weeks inclusive.
func (s *Store) PeriodComparison(ctx context.Context, weeks int, f Filter) ([]PeriodComparison, error) {
	if weeks <= 0 {
		return nil, fmt.Errorf("weeks must be positive, got %d", weeks)
	}
	today := s.Today()
	currentStart := today.AddDate(0, 0, -7*weeks)
	previousStart := today.AddDate(0, 0, -14*weeks)

	cte, args := s.factsCTE(f.WithStart(previousStart))
	query := cte + `
	SELECT
		volunteer_id,
		COUNT(*) FILTER (WHERE service_date >= CAST(? AS DATE)) AS current_count,
		COUNT(*) FILTER (WHERE service_date < CAST(? AS DATE)) AS previous_count
	FROM facts
	GROUP BY volunteer_id`
	cutoff := currentStart.Format(models.DateLayout)
	args = append(args, cutoff, cutoff)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("period comparison query failed: %w", err)
	}
	defer rows.Close()

	var out []PeriodComparison
	for rows.Next() {
		var r PeriodComparison
		if err := rows.Scan(&r.VolunteerID, &r.CurrentCount, &r.PreviousCount); err != nil {
			return nil, fmt.Errorf("failed to scan comparison row: %w", err)
		}
		r.Change = r.CurrentCount - r.PreviousCount
		r.ChangePct = percentChange(r.PreviousCount, r.CurrentCount)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentCount != out[j].CurrentCount {
			return out[i].CurrentCount > out[j].CurrentCount
		}
		return out[i].VolunteerID < out[j].VolunteerID
	})
	return out, nil
}

func percentChange(previous, current int) *float64 {
	if previous == 0 {
		return nil
	}
	pct := roundTo(float64(current-previous)*100/float64(previous), 2)
	return &pct
}
