package database

import (
	"context"
	"fmt"
)

// VolunteerRanks returns the latest co-service ranking, best first. limit <= 0 returns all rows.
func (s *Store) VolunteerRanks(ctx context.Context, limit int) ([]VolunteerRank, error) {
	query := `
	SELECT volunteer_id, rank_score, rank_position, category, service_count, partner_count, calculated_at
	FROM volunteer_rank
	ORDER BY rank_position`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("volunteer rank query failed: %w", err)
	}
	defer rows.Close()

	var out []VolunteerRank
	for rows.Next() {
		var r VolunteerRank
		if err := rows.Scan(&r.VolunteerID, &r.Score, &r.Position, &r.Category,
			&r.ServiceCount, &r.PartnerCount, &r.CalculatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan volunteer rank: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CoServiceEdges returns the co-service graph, strongest links first
func (s *Store) CoServiceEdges(ctx context.Context, minShared int) ([]CoServiceEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT volunteer_a, volunteer_b, shared_dates
	FROM coservice_edge
	WHERE shared_dates >= ?
	ORDER BY shared_dates DESC, volunteer_a, volunteer_b`, minShared)
	if err != nil {
		return nil, fmt.Errorf("co-service edge query failed: %w", err)
	}
	defer rows.Close()

	var out []CoServiceEdge
	for rows.Next() {
		var e CoServiceEdge
		if err := rows.Scan(&e.VolunteerA, &e.VolunteerB, &e.SharedDates); err != nil {
			return nil, fmt.Errorf("failed to scan co-service edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LatestForecast returns the stored weekly forecast in date order
func (s *Store) LatestForecast(ctx context.Context) ([]ForecastPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT week_start, predicted_services, lower_bound, upper_bound, trend_slope, r_squared, is_reliable
	FROM participation_forecast
	ORDER BY week_start`)
	if err != nil {
		return nil, fmt.Errorf("forecast query failed: %w", err)
	}
	defer rows.Close()

	var out []ForecastPoint
	for rows.Next() {
		var p ForecastPoint
		if err := rows.Scan(&p.WeekStart, &p.PredictedServices, &p.LowerBound, &p.UpperBound,
			&p.TrendSlope, &p.RSquared, &p.IsReliable); err != nil {
			return nil, fmt.Errorf("failed to scan forecast point: %w", err)
		}
		p.WeekStart = dateOnly(p.WeekStart)
		out = append(out, p)
	}
	return out, rows.Err()
}
