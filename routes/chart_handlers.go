// routes/chart_handlers.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/ministry_analytics/database"
	"github.com/LilVoxy/ministry_analytics/metrics"
	"github.com/LilVoxy/ministry_analytics/visualizations"
)

// Default windows of the ranking tab
const (
	defaultRecentWeeks     = 4
	defaultRecentMonths    = 3
	defaultTrendWeeks      = 12
	defaultComparisonWeeks = 4
)

// seriesParams reads the granularity and the filter shared by the time series endpoints
func (h *handlers) seriesParams(w http.ResponseWriter, r *http.Request) (database.Granularity, database.Filter, bool) {
	g, err := granularityParam(r)
	if err != nil {
		badRequest(w, h.logger, err)
		return "", database.Filter{}, false
	}
	f, err := filterParams(r)
	if err != nil {
		badRequest(w, h.logger, err)
		return "", database.Filter{}, false
	}
	return g, f, true
}

func (h *handlers) filter(w http.ResponseWriter, r *http.Request) (database.Filter, bool) {
	f, err := filterParams(r)
	if err != nil {
		badRequest(w, h.logger, err)
		return database.Filter{}, false
	}
	return f, true
}

func (h *handlers) intOr(w http.ResponseWriter, r *http.Request, name string, def, lowest int) (int, bool) {
	n, err := intParam(r, name, def, lowest)
	if err != nil {
		badRequest(w, h.logger, err)
		return 0, false
	}
	return n, true
}

func (h *handlers) volunteers(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.Volunteers(r.Context(), f), nil)
}

func (h *handlers) serviceTypes(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.ServiceTypes(r.Context(), f), nil)
}

func (h *handlers) span(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.DataSpan(r.Context(), f), nil)
}

func (h *handlers) participants(w http.ResponseWriter, r *http.Request) {
	g, f, ok := h.seriesParams(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.Participants(r.Context(), g, f), nil)
}

func (h *handlers) rawData(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.RawData(r.Context(), f), nil)
}

func (h *handlers) aggregation(w http.ResponseWriter, r *http.Request) {
	g, f, ok := h.seriesParams(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.Aggregation(r.Context(), g, f), func(rows []database.PeriodAggregate) visualizations.Chart {
		return visualizations.AggregationLine(rows, "Services per "+string(g))
	})
}

func (h *handlers) volunteerCount(w http.ResponseWriter, r *http.Request) {
	g, f, ok := h.seriesParams(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.VolunteerCountTrend(r.Context(), g, f), func(rows []database.VolunteerCountPoint) visualizations.Chart {
		return visualizations.VolunteerCountLine(rows, "Active volunteers per "+string(g))
	})
}

func (h *handlers) cumulative(w http.ResponseWriter, r *http.Request) {
	g, f, ok := h.seriesParams(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.CumulativeParticipation(r.Context(), g, f), func(rows []database.CumulativePoint) visualizations.Chart {
		return visualizations.CumulativeLine(rows, "Cumulative participation")
	})
}

func (h *handlers) joinLeave(w http.ResponseWriter, r *http.Request) {
	g, f, ok := h.seriesParams(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.JoinLeave(r.Context(), g, f), func(rows []database.JoinLeavePoint) visualizations.Chart {
		return visualizations.JoinLeaveBar(rows, "Volunteers joining and leaving")
	})
}

func (h *handlers) volunteerTrend(w http.ResponseWriter, r *http.Request) {
	g, f, ok := h.seriesParams(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	writeResult(w, h.logger, h.deps.Facade.VolunteerTrend(r.Context(), id, g, f), func(rows []database.PeriodCount) visualizations.Chart {
		return visualizations.VolunteerTrendLine(rows, id)
	})
}

func (h *handlers) volunteerServiceTypes(w http.ResponseWriter, r *http.Request) {
	g, f, ok := h.seriesParams(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	writeResult(w, h.logger, h.deps.Facade.VolunteerServiceTypes(r.Context(), id, g, f), func(rows []database.ServiceTypeCount) visualizations.Chart {
		return visualizations.ServiceTypeStack(rows, "Services of "+id+" by role")
	})
}

// overviewData is the payload of the overview tab
type overviewData struct {
	Insights   []visualizations.Insight      `json:"insights"`
	Performers []visualizations.PerformerRow `json:"performers"`
}

// overview compares the last weeks with the last quarter and adds the headline cards
func (h *handlers) overview(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	recent := h.deps.Facade.RecentWeeks(r.Context(), defaultRecentWeeks, f)
	quarter := h.deps.Facade.RecentMonths(r.Context(), defaultRecentMonths, f)
	if recent.Status() == metrics.StatusFailed || quarter.Status() == metrics.StatusFailed {
		writeJSON(w, h.logger, http.StatusOK, Response{Status: metrics.StatusFailed.String(), Message: msgUnavailable})
		return
	}

	resp := Response{
		Status: metrics.StatusOK.String(),
		Data: overviewData{
			Insights:   visualizations.Insights(recent.Rows, quarter.Rows),
			Performers: visualizations.TopPerformers(recent.Rows),
		},
	}
	if len(recent.Rows) == 0 && len(quarter.Rows) == 0 {
		resp.Status = metrics.StatusNoData.String()
		resp.Message = msgNoData
	} else {
		chart := visualizations.ComparisonBar(recent.Rows, quarter.Rows)
		resp.Chart = &chart
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *handlers) recentRanking(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	weeks, ok := h.intOr(w, r, "weeks", defaultRecentWeeks, 1)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.RecentWeeks(r.Context(), weeks, f), func(rows []database.VolunteerStats) visualizations.Chart {
		return visualizations.RankingBar(rows, "Most active volunteers, recent weeks")
	})
}

func (h *handlers) monthlyRanking(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	months, ok := h.intOr(w, r, "months", defaultRecentMonths, 1)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.RecentMonths(r.Context(), months, f), func(rows []database.VolunteerStats) visualizations.Chart {
		return visualizations.RankingBar(rows, "Most active volunteers, recent months")
	})
}

func (h *handlers) weeklyTrend(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	weeks, ok := h.intOr(w, r, "weeks", defaultTrendWeeks, 1)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.WeeklyTrend(r.Context(), weeks, f), func(rows []database.WeeklyVolunteerCount) visualizations.Chart {
		return visualizations.WeeklyTrendLines(rows, "Weekly services of the top volunteers")
	})
}

func (h *handlers) heatmap(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	weeks, ok := h.intOr(w, r, "weeks", defaultTrendWeeks, 1)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.WeeklyTrend(r.Context(), weeks, f), func(rows []database.WeeklyVolunteerCount) visualizations.Chart {
		return visualizations.ActivityHeatmap(rows, "Weekly activity")
	})
}

func (h *handlers) distribution(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	weeks, ok := h.intOr(w, r, "weeks", defaultRecentWeeks, 1)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.ServiceTypeDistribution(r.Context(), weeks, f), func(rows []database.ServiceTypeShare) visualizations.Chart {
		return visualizations.ServiceTypePie(rows, "Services by role")
	})
}

func (h *handlers) comparison(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	weeks, ok := h.intOr(w, r, "weeks", defaultComparisonWeeks, 1)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.PeriodComparison(r.Context(), weeks, f), nil)
}

func (h *handlers) network(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intOr(w, r, "limit", 0, 0)
	if !ok {
		return
	}
	minShared, ok := h.intOr(w, r, "min_shared", 1, 1)
	if !ok {
		return
	}
	ranks := h.deps.Facade.VolunteerRanks(r.Context(), limit)
	edges := h.deps.Facade.CoServiceEdges(r.Context(), minShared)
	if edges.Status() == metrics.StatusFailed {
		writeResult(w, h.logger, edges, nil)
		return
	}
	writeResult(w, h.logger, ranks, func(rows []database.VolunteerRank) visualizations.Chart {
		return visualizations.CoServiceNetwork(rows, edges.Rows)
	})
}

func (h *handlers) forecast(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.logger, h.deps.Facade.Forecast(r.Context()), visualizations.ForecastLine)
}
