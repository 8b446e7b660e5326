// routes/params.go
package routes

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/LilVoxy/ministry_analytics/database"
)

// listParam collects a repeated and/or comma separated query parameter
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func dateParam(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date %q", name, raw)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// filterParams reads service_types, volunteers, start and end
func filterParams(r *http.Request) (database.Filter, error) {
	start, err := dateParam(r, "start")
	if err != nil {
		return database.Filter{}, err
	}
	end, err := dateParam(r, "end")
	if err != nil {
		return database.Filter{}, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return database.Filter{}, fmt.Errorf("end date is before start date")
	}
	return database.Filter{
		ServiceTypes: listParam(r, "service_types"),
		Volunteers:   listParam(r, "volunteers"),
		Start:        start,
		End:          end,
	}, nil
}

// granularityParam defaults to month
func granularityParam(r *http.Request) (database.Granularity, error) {
	raw := r.URL.Query().Get("granularity")
	if raw == "" {
		return database.GranularityMonth, nil
	}
	return database.ParseGranularity(raw)
}

// intParam reads an integer of at least lowest, def when absent
func intParam(r *http.Request, name string, def, lowest int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lowest {
		return 0, fmt.Errorf("%s must be an integer of at least %d", name, lowest)
	}
	return n, nil
}

func boolParam(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}
