// routes/api_routes.go
package routes

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LilVoxy/ministry_analytics/ETL/runner"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/metrics"
	"github.com/LilVoxy/ministry_analytics/websocket"
)

// Refresher runs one ingest synchronously
type Refresher interface {
	Execute(ctx context.Context) (*runner.Summary, error)
}

// Deps are the components the dashboard handlers read from
type Deps struct {
	Facade *metrics.Facade
	Runner Refresher
	Hub    *websocket.Manager // nil disables /ws
	Logger *utils.ETLLogger
}

// SetupRoutes registers the dashboard page, the JSON API, exports, /metrics and /ws
func SetupRoutes(router *mux.Router, deps Deps) {
	h := &handlers{deps: deps, logger: deps.Logger}

	router.Use(AccessLogMiddleware(deps.Logger))
	router.Use(CORSMiddleware)

	// Dashboard page
	router.HandleFunc("/", h.dashboard).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// Filters and raw tables
	api.HandleFunc("/volunteers", h.volunteers).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/service-types", h.serviceTypes).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/span", h.span).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/participants", h.participants).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/raw", h.rawData).Methods(http.MethodGet, http.MethodOptions)

	// Trends
	api.HandleFunc("/aggregation", h.aggregation).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/trends/volunteer-count", h.volunteerCount).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/trends/cumulative", h.cumulative).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/trends/join-leave", h.joinLeave).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/volunteer/{id}/trend", h.volunteerTrend).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/volunteer/{id}/service-types", h.volunteerServiceTypes).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/volunteer/{id}/path", h.volunteerPath).Methods(http.MethodGet, http.MethodOptions)

	// Rankings
	api.HandleFunc("/overview", h.overview).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/rankings/recent", h.recentRanking).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/rankings/months", h.monthlyRanking).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/rankings/weekly-trend", h.weeklyTrend).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/rankings/heatmap", h.heatmap).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/rankings/distribution", h.distribution).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/rankings/comparison", h.comparison).Methods(http.MethodGet, http.MethodOptions)

	// Flows
	api.HandleFunc("/flows/transitions", h.transitions).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flows/monthly", h.monthlyFlow).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flows/ministry/{ministry}", h.ministryFlow).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flows/volunteers", h.volunteerFlows).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flows/activity-levels", h.activityLevels).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flows/seasonal", h.seasonal).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flows/experience", h.experience).Methods(http.MethodGet, http.MethodOptions)

	// Post-load analytics
	api.HandleFunc("/network", h.network).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/forecast", h.forecast).Methods(http.MethodGet, http.MethodOptions)

	// Ingest
	api.HandleFunc("/refresh", h.refresh).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/runs", h.runs).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/state", h.state).Methods(http.MethodGet, http.MethodOptions)

	// Exports
	router.HandleFunc("/export/raw.csv", h.exportRawCSV).Methods(http.MethodGet)
	router.HandleFunc("/export/flows.csv", h.exportFlowsCSV).Methods(http.MethodGet)
	router.HandleFunc("/export/raw.xlsx", h.exportRawXLSX).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// WebSocket connections
	if deps.Hub != nil {
		router.HandleFunc("/ws", deps.Hub.HandleConnections)
		router.HandleFunc("/ws/status", deps.Hub.HandleStatus).Methods(http.MethodGet)
	}
}

type handlers struct {
	deps   Deps
	logger *utils.ETLLogger
}
