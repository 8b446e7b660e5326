// routes/dashboard.go
package routes

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/database"
)

//go:embed templates/dashboard.html
var dashboardHTML string

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

type dashboardPage struct {
	Volunteers    []string
	ServiceTypes  []string
	Granularities []database.Granularity
	Start         string
	End           string
	Notice        string
}

// dashboard renders the page shell; charts are loaded by the page from the JSON API
func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := dashboardPage{
		Granularities: []database.Granularity{
			database.GranularityMonth,
			database.GranularityWeek,
			database.GranularityQuarter,
			database.GranularityYear,
		},
	}

	volunteers := h.deps.Facade.Volunteers(ctx, database.Filter{})
	page.Volunteers = volunteers.Rows
	page.ServiceTypes = h.deps.Facade.ServiceTypes(ctx, database.Filter{}).Rows
	if span, ok := h.deps.Facade.DataSpan(ctx, database.Filter{}).One(); ok {
		page.Start = span.First.Format(models.DateLayout)
		page.End = span.Last.Format(models.DateLayout)
	}
	if volunteers.Err != nil {
		page.Notice = msgUnavailable
	} else if len(volunteers.Rows) == 0 {
		page.Notice = "No data yet, run a refresh to load the schedule"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, page); err != nil {
		h.logger.Error("Failed to render dashboard: %v", err)
	}
}
