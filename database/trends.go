package database

import (
	"context"
	"fmt"
	"math"
	"time"
)

// periodActivity is the shared result behind the count, cumulative and join/leave trends
type periodActivity struct {
	start      time.Time
	services   int
	volunteers int
	joined     int
	lastSeen   int // volunteers whose last active bucket is this one
}

func (s *Store) periodActivity(ctx context.Context, g Granularity, f Filter) ([]periodActivity, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	cte, args := s.factsCTE(f)
	query := cte + fmt.Sprintf(`,
	bucketed AS (
		SELECT volunteer_id, %s AS bucket FROM facts
	),
	spans AS (
		SELECT volunteer_id, MIN(bucket) AS first_bucket, MAX(bucket) AS last_bucket
		FROM bucketed
		GROUP BY volunteer_id
	),
	periods AS (
		SELECT bucket, COUNT(*) AS services, COUNT(DISTINCT volunteer_id) AS volunteers
		FROM bucketed
		GROUP BY bucket
	),
	joins AS (
		SELECT first_bucket AS bucket, COUNT(*) AS joined FROM spans GROUP BY 1
	),
	leaves AS (
		SELECT last_bucket AS bucket, COUNT(*) AS last_seen FROM spans GROUP BY 1
	)
	SELECT p.bucket, p.services, p.volunteers, COALESCE(j.joined, 0), COALESCE(l.last_seen, 0)
	FROM periods p
	LEFT JOIN joins j ON j.bucket = p.bucket
	LEFT JOIN leaves l ON l.bucket = p.bucket
	ORDER BY p.bucket`, bucketExpr(g, "service_date"))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("period activity query failed: %w", err)
	}
	defer rows.Close()

	var out []periodActivity
	for rows.Next() {
		var p periodActivity
		if err := rows.Scan(&p.start, &p.services, &p.volunteers, &p.joined, &p.lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan period activity: %w", err)
		}
		p.start = dateOnly(p.start)
		out = append(out, p)
	}
	return out, rows.Err()
}

// VolunteerCountTrend returns the active volunteer count per bucket and its change
// against the previous bucket
func (s *Store) VolunteerCountTrend(ctx context.Context, g Granularity, f Filter) ([]VolunteerCountPoint, error) {
	periods, err := s.periodActivity(ctx, g, f)
	if err != nil {
		return nil, err
	}
	out := make([]VolunteerCountPoint, 0, len(periods))
	for i, p := range periods {
		point := VolunteerCountPoint{
			Period:         g.Label(p.start),
			PeriodStart:    p.start,
			VolunteerCount: p.volunteers,
		}
		if i > 0 {
			point.ChangePct = percentChange(periods[i-1].volunteers, p.volunteers)
		}
		out = append(out, point)
	}
	return out, nil
}

// CumulativeParticipation returns running totals of services and distinct volunteers
func (s *Store) CumulativeParticipation(ctx context.Context, g Granularity, f Filter) ([]CumulativePoint, error) {
	periods, err := s.periodActivity(ctx, g, f)
	if err != nil {
		return nil, err
	}
	out := make([]CumulativePoint, 0, len(periods))
	services, volunteers := 0, 0
	for _, p := range periods {
		services += p.services
		volunteers += p.joined
		out = append(out, CumulativePoint{
			Period:               g.Label(p.start),
			PeriodStart:          p.start,
			ServiceCount:         p.services,
			CumulativeServices:   services,
			CumulativeVolunteers: volunteers,
		})
	}
	return out, nil
}

// JoinLeaveAnalysis returns new and departed volunteers per bucket. A volunteer is
// counted as left in the bucket after their last active one.
func (s *Store) JoinLeaveAnalysis(ctx context.Context, g Granularity, f Filter) ([]JoinLeavePoint, error) {
	periods, err := s.periodActivity(ctx, g, f)
	if err != nil {
		return nil, err
	}
	out := make([]JoinLeavePoint, 0, len(periods))
	for i, p := range periods {
		left := 0
		if i > 0 {
			left = periods[i-1].lastSeen
		}
		out = append(out, JoinLeavePoint{
			Period:           g.Label(p.start),
			PeriodStart:      p.start,
			ActiveVolunteers: p.volunteers,
			NewVolunteers:    p.joined,
			LeftVolunteers:   left,
			Retained:         p.volunteers - p.joined,
			NetChange:        p.joined - left,
		})
	}
	return out, nil
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
