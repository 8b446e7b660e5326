package database

import (
	"context"
	"fmt"
	"time"
)

// QueryAggregation returns the total services and active volunteers per bucket
func (s *Store) QueryAggregation(ctx context.Context, g Granularity, f Filter) ([]PeriodAggregate, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	cte, args := s.factsCTE(f)
	query := cte + fmt.Sprintf(`
	SELECT %s AS bucket, COUNT(*) AS service_count, COUNT(DISTINCT volunteer_id) AS volunteer_count
	FROM facts
	GROUP BY 1
	ORDER BY 1`, bucketExpr(g, "service_date"))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregation query failed: %w", err)
	}
	defer rows.Close()

	var out []PeriodAggregate
	for rows.Next() {
		var r PeriodAggregate
		if err := rows.Scan(&r.PeriodStart, &r.ServiceCount, &r.VolunteerCount); err != nil {
			return nil, fmt.Errorf("failed to scan aggregation row: %w", err)
		}
		r.PeriodStart = dateOnly(r.PeriodStart)
		r.Period = g.Label(r.PeriodStart)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DistinctVolunteers lists the volunteers with at least one visible fact
func (s *Store) DistinctVolunteers(ctx context.Context, f Filter) ([]string, error) {
	cte, args := s.factsCTE(f)
	return s.queryStrings(ctx, cte+`SELECT DISTINCT volunteer_id FROM facts ORDER BY 1`, args...)
}

// AvailableServiceTypes lists the roles with at least one visible fact
func (s *Store) AvailableServiceTypes(ctx context.Context, f Filter) ([]string, error) {
	cte, args := s.factsCTE(f)
	return s.queryStrings(ctx, cte+`SELECT DISTINCT service_type_id FROM facts ORDER BY 1`, args...)
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ParticipantsTable returns the service count per bucket and volunteer
func (s *Store) ParticipantsTable(ctx context.Context, g Granularity, f Filter) ([]ParticipantCount, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	cte, args := s.factsCTE(f)
	query := cte + fmt.Sprintf(`
	SELECT %s AS bucket, volunteer_id, COUNT(*) AS cnt
	FROM facts
	GROUP BY 1, 2
	ORDER BY 1, 2`, bucketExpr(g, "service_date"))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("participants query failed: %w", err)
	}
	defer rows.Close()

	var out []ParticipantCount
	for rows.Next() {
		var r ParticipantCount
		if err := rows.Scan(&r.PeriodStart, &r.VolunteerID, &r.ServiceCount); err != nil {
			return nil, fmt.Errorf("failed to scan participants row: %w", err)
		}
		r.PeriodStart = dateOnly(r.PeriodStart)
		r.Period = g.Label(r.PeriodStart)
		out = append(out, r)
	}
	return out, rows.Err()
}

// VolunteerTrend returns one volunteer's service count per bucket
func (s *Store) VolunteerTrend(ctx context.Context, volunteerID string, g Granularity, f Filter) ([]PeriodCount, error) {
	aggs, err := s.QueryAggregation(ctx, g, f.WithVolunteer(volunteerID))
	if err != nil {
		return nil, err
	}
	out := make([]PeriodCount, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, PeriodCount{Period: a.Period, PeriodStart: a.PeriodStart, ServiceCount: a.ServiceCount})
	}
	return out, nil
}

// VolunteerServiceTypes returns one volunteer's service count per bucket and role
func (s *Store) VolunteerServiceTypes(ctx context.Context, volunteerID string, g Granularity, f Filter) ([]ServiceTypeCount, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	cte, args := s.factsCTE(f.WithVolunteer(volunteerID))
	query := cte + fmt.Sprintf(`
	SELECT %s AS bucket, service_type_id, COUNT(*) AS cnt
	FROM facts
	GROUP BY 1, 2
	ORDER BY 1, 2`, bucketExpr(g, "service_date"))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("volunteer service types query failed: %w", err)
	}
	defer rows.Close()

	var out []ServiceTypeCount
	for rows.Next() {
		var r ServiceTypeCount
		if err := rows.Scan(&r.PeriodStart, &r.ServiceTypeID, &r.ServiceCount); err != nil {
			return nil, fmt.Errorf("failed to scan service type row: %w", err)
		}
		r.PeriodStart = dateOnly(r.PeriodStart)
		r.Period = g.Label(r.PeriodStart)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RawData returns the visible facts, newest first
func (s *Store) RawData(ctx context.Context, f Filter) ([]RawFact, error) {
	cte, args := s.factsCTE(f)
	query := cte + `
	SELECT f.fact_id, f.volunteer_id, f.service_type_id, f.service_date, f.source_row_id, f.ingested_at,
		COALESCE(d.year, year(f.service_date)),
		COALESCE(d.quarter, quarter(f.service_date)),
		COALESCE(d.month, month(f.service_date))
	FROM facts f
	LEFT JOIN date_dim d ON f.service_date = d.date
	ORDER BY f.service_date DESC, f.volunteer_id, f.service_type_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("raw data query failed: %w", err)
	}
	defer rows.Close()

	var out []RawFact
	for rows.Next() {
		var r RawFact
		if err := rows.Scan(&r.FactID, &r.VolunteerID, &r.ServiceTypeID, &r.ServiceDate, &r.SourceRowID,
			&r.IngestedAt, &r.Year, &r.Quarter, &r.Month); err != nil {
			return nil, fmt.Errorf("failed to scan raw fact: %w", err)
		}
		r.ServiceDate = dateOnly(r.ServiceDate)
		out = append(out, r)
	}
	return out, rows.Err()
}

// FactCount counts every stored fact, ignoring filters and the as-of date
func (s *Store) FactCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM service_fact").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count facts: %w", err)
	}
	return n, nil
}

// DataSpan returns the first and last visible service dates; ok is false when there are none
func (s *Store) DataSpan(ctx context.Context, f Filter) (first, last time.Time, ok bool, err error) {
	cte, args := s.factsCTE(f)
	var count int
	var minDate, maxDate *time.Time
	err = s.db.QueryRowContext(ctx, cte+`SELECT COUNT(*), MIN(service_date), MAX(service_date) FROM facts`, args...).
		Scan(&count, &minDate, &maxDate)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("data span query failed: %w", err)
	}
	if count == 0 || minDate == nil || maxDate == nil {
		return time.Time{}, time.Time{}, false, nil
	}
	return dateOnly(*minDate), dateOnly(*maxDate), true, nil
}
