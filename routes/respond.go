// routes/respond.go
package routes

import (
	"encoding/json"
	"net/http"

	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/metrics"
	"github.com/LilVoxy/ministry_analytics/visualizations"
)

// Messages shown to the dashboard; details stay in the server log
const (
	msgNoData        = "No data for the selected filters"
	msgUnavailable   = "Data is temporarily unavailable"
	msgRefreshFailed = "Refresh failed, see server logs"
)

// Response is the envelope of every JSON endpoint
type Response struct {
	Status  string                `json:"status"` // ok, no_data, failed, error
	Message string                `json:"message,omitempty"`
	Chart   *visualizations.Chart `json:"chart,omitempty"`
	Rows    any                   `json:"rows,omitempty"`
	Data    any                   `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *utils.ETLLogger, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

func badRequest(w http.ResponseWriter, logger *utils.ETLLogger, err error) {
	writeJSON(w, logger, http.StatusBadRequest, Response{Status: "error", Message: err.Error()})
}

// envelope maps a Result onto the response; NoData and Failed are still 200
func envelope[T any](res metrics.Result[T]) Response {
	switch res.Status() {
	case metrics.StatusFailed:
		return Response{Status: metrics.StatusFailed.String(), Message: msgUnavailable}
	case metrics.StatusNoData:
		return Response{Status: metrics.StatusNoData.String(), Message: msgNoData}
	}
	return Response{Status: metrics.StatusOK.String(), Rows: res.Rows}
}

// writeResult sends the rows of res and, when build is set, the chart made from them
func writeResult[T any](w http.ResponseWriter, logger *utils.ETLLogger, res metrics.Result[T], build func([]T) visualizations.Chart) {
	resp := envelope(res)
	if build != nil && res.Status() == metrics.StatusOK {
		chart := build(res.Rows)
		resp.Chart = &chart
	}
	writeJSON(w, logger, http.StatusOK, resp)
}
