package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
)

// ErrInvalidGranularity is returned for a granularity outside year|quarter|month|week
var ErrInvalidGranularity = errors.New("granularity must be one of year|quarter|month|week")

// Granularity is the bucket size of a time series
type Granularity string

const (
	GranularityYear    Granularity = "year"
	GranularityQuarter Granularity = "quarter"
	GranularityMonth   Granularity = "month"
	GranularityWeek    Granularity = "week"
)

// ParseGranularity validates a user supplied granularity
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case GranularityYear, GranularityQuarter, GranularityMonth, GranularityWeek:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
}

func (g Granularity) validate() error {
	_, err := ParseGranularity(string(g))
	return err
}

// Label formats the start of a bucket: "2024", "2024-Q1", "2024-01" or "2024-W02"
func (g Granularity) Label(start time.Time) string {
	switch g {
	case GranularityYear:
		return fmt.Sprintf("%d", start.Year())
	case GranularityQuarter:
		return fmt.Sprintf("%d-Q%d", start.Year(), (int(start.Month())-1)/3+1)
	case GranularityWeek:
		y, w := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	default:
		return start.Format("2006-01")
	}
}

// Next returns the start of the following bucket
func (g Granularity) Next(start time.Time) time.Time {
	switch g {
	case GranularityYear:
		return start.AddDate(1, 0, 0)
	case GranularityQuarter:
		return start.AddDate(0, 3, 0)
	case GranularityWeek:
		return start.AddDate(0, 0, 7)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// Filter narrows every read. Empty fields mean "no restriction".
type Filter struct {
	ServiceTypes []string
	Volunteers   []string
	Start        time.Time
	End          time.Time
}

// WithStart returns a copy whose start is the later of f.Start and start
func (f Filter) WithStart(start time.Time) Filter {
	if f.Start.IsZero() || start.After(f.Start) {
		f.Start = start
	}
	return f
}

// WithVolunteer returns a copy restricted to one volunteer
func (f Filter) WithVolunteer(volunteerID string) Filter {
	f.Volunteers = []string{volunteerID}
	return f
}

// factsCTE returns a "WITH facts AS (...)" prefix selecting the visible facts
func (s *Store) factsCTE(f Filter) (string, []any) {
	var b strings.Builder
	args := []any{s.Today().Format(models.DateLayout)}

	b.WriteString(`WITH facts AS (
		SELECT fact_id, volunteer_id, service_type_id, service_date, source_row_id, ingested_at
		FROM service_fact
		WHERE service_date <= CAST(? AS DATE)`)

	if len(f.ServiceTypes) > 0 {
		b.WriteString(" AND service_type_id IN (" + placeholders(len(f.ServiceTypes)) + ")")
		for _, t := range f.ServiceTypes {
			args = append(args, t)
		}
	}
	if len(f.Volunteers) > 0 {
		b.WriteString(" AND volunteer_id IN (" + placeholders(len(f.Volunteers)) + ")")
		for _, v := range f.Volunteers {
			args = append(args, v)
		}
	}
	if !f.Start.IsZero() {
		b.WriteString(" AND service_date >= CAST(? AS DATE)")
		args = append(args, f.Start.Format(models.DateLayout))
	}
	if !f.End.IsZero() {
		b.WriteString(" AND service_date <= CAST(? AS DATE)")
		args = append(args, f.End.Format(models.DateLayout))
	}
	b.WriteString(")\n")
	return b.String(), args
}

// bucketExpr truncates service_date to the start of its bucket; g must be validated
func bucketExpr(g Granularity, column string) string {
	return fmt.Sprintf("CAST(date_trunc('%s', %s) AS DATE)", string(g), column)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
