// routes/flow_handlers.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/ministry_analytics/database"
	"github.com/LilVoxy/ministry_analytics/visualizations"
)

const (
	defaultTransitionMonths = 6
	defaultLevelPeriods     = 6
)

func (h *handlers) transitions(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	months, ok := h.intOr(w, r, "months", defaultTransitionMonths, 1)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.ServiceTransitions(r.Context(), months, f), func(rows []database.Transition) visualizations.Chart {
		return visualizations.TransitionSankey(rows, "Role transitions")
	})
}

// flowOptions reads strategy, top_k and include_inactive
func (h *handlers) flowOptions(w http.ResponseWriter, r *http.Request) (database.FlowOptions, bool) {
	strategy, err := database.ParseStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		badRequest(w, h.logger, err)
		return database.FlowOptions{}, false
	}
	topK, ok := h.intOr(w, r, "top_k", 0, 0)
	if !ok {
		return database.FlowOptions{}, false
	}
	return database.FlowOptions{
		Strategy:        strategy,
		TopK:            topK,
		IncludeInactive: boolParam(r, "include_inactive", true),
	}, true
}

func (h *handlers) monthlyFlow(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	opts, ok := h.flowOptions(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.MonthlyMinistryFlow(r.Context(), opts, f), func(rows []database.MonthlyFlow) visualizations.Chart {
		return visualizations.MonthlyFlowSankey(rows, "Monthly ministry flow")
	})
}

func (h *handlers) ministryFlow(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	ministry := mux.Vars(r)["ministry"]
	writeResult(w, h.logger, h.deps.Facade.MinistrySpecificFlow(r.Context(), ministry, f), func(rows []database.MinistryFlow) visualizations.Chart {
		return visualizations.MinistryFlowSankey(rows, ministry)
	})
}

func (h *handlers) volunteerPath(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	writeResult(w, h.logger, h.deps.Facade.VolunteerPath(r.Context(), id, f), func(rows []database.PathStep) visualizations.Chart {
		return visualizations.PathLine(rows, id)
	})
}

func (h *handlers) volunteerFlows(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.VolunteerFlowData(r.Context(), f), nil)
}

func (h *handlers) activityLevels(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	periods, ok := h.intOr(w, r, "periods", defaultLevelPeriods, 2)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.ActivityLevelJourney(r.Context(), periods, f), func(rows []database.LevelTransition) visualizations.Chart {
		return visualizations.LevelSankey(rows, "Activity level journey")
	})
}

func (h *handlers) seasonal(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.SeasonalFlow(r.Context(), f), func(rows []database.SeasonalFlow) visualizations.Chart {
		return visualizations.SeasonalSankey(rows, "Seasonal service flow")
	})
}

func (h *handlers) experience(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	writeResult(w, h.logger, h.deps.Facade.ExperienceProgression(r.Context(), f), func(rows []database.ExperienceFlow) visualizations.Chart {
		return visualizations.ExperienceSankey(rows, "Experience progression")
	})
}
