// routes/ingest_handlers.go
package routes

import (
	"net/http"

	"github.com/LilVoxy/ministry_analytics/metrics"
)

// refresh runs one ingest and blocks until it finishes
func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	if h.deps.Runner == nil {
		writeJSON(w, h.logger, http.StatusServiceUnavailable, Response{Status: "error", Message: "Refresh is not configured"})
		return
	}
	summary, err := h.deps.Runner.Execute(r.Context())
	if err != nil {
		h.logger.Error("Refresh failed: %v", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, Response{Status: metrics.StatusFailed.String(), Message: msgRefreshFailed})
		return
	}
	writeJSON(w, h.logger, http.StatusOK, Response{Status: metrics.StatusOK.String(), Data: summary})
}

func (h *handlers) runs(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intOr(w, r, "limit", 10, 1)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.RecentRuns(r.Context(), limit), nil)
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.logger, h.deps.Facade.IngestState(r.Context()), nil)
}
