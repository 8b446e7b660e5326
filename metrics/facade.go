// Package metrics is the read side used by the dashboard. Every method wraps one
// store query, applies the service-type allow-list and reports failures as a
// StatusFailed result instead of an empty one.
package metrics

import (
	"context"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/database"
)

// RunHistory is the part of the ingest run journal the dashboard reads
type RunHistory interface {
	GetRecentRuns(ctx context.Context, limit int) ([]models.IngestRunLog, error)
	GetStateMonitor(ctx context.Context) (*models.IngestStateMonitor, error)
}

// Span is the date range covered by the visible facts
type Span struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// Facade exposes the store queries to the dashboard
type Facade struct {
	store      *database.Store
	runs       RunHistory
	allow      map[string]bool
	allowList  []string
	thresholds database.ActivityThresholds
	logger     *utils.ETLLogger
}

// NewFacade creates a Facade. runs may be nil when no run journal is available.
func NewFacade(store *database.Store, runs RunHistory, cfg *config.Config, logger *utils.ETLLogger) *Facade {
	f := &Facade{
		store:  store,
		runs:   runs,
		logger: logger,
		thresholds: database.ActivityThresholds{
			High:   cfg.Stats.ActivityThresholds.High,
			Medium: cfg.Stats.ActivityThresholds.Medium,
		},
	}
	if f.thresholds.High == 0 {
		f.thresholds.High = 4
	}
	if f.thresholds.Medium == 0 {
		f.thresholds.Medium = 2
	}
	if len(cfg.Stats.IncludeServiceTypes) > 0 {
		f.allow = make(map[string]bool, len(cfg.Stats.IncludeServiceTypes))
		for _, t := range cfg.Stats.IncludeServiceTypes {
			if !f.allow[t] {
				f.allow[t] = true
				f.allowList = append(f.allowList, t)
			}
		}
	}
	return f
}

// Thresholds returns the activity level thresholds in use
func (f *Facade) Thresholds() database.ActivityThresholds {
	return f.thresholds
}

// Allowed reports whether a service type passes the allow-list
func (f *Facade) Allowed(serviceType string) bool {
	return f.allow == nil || f.allow[serviceType]
}

// keepLabel is Allowed for flow endpoints, where the pseudo ministries always pass
func (f *Facade) keepLabel(label string) bool {
	return label == database.FlowInactive || label == database.FlowOther || f.Allowed(label)
}

// restrict intersects the requested service types with the allow-list. ok is
// false when nothing requested is allowed, so the read can only be empty.
func (f *Facade) restrict(filter database.Filter) (database.Filter, bool) {
	if f.allow == nil {
		return filter, true
	}
	if len(filter.ServiceTypes) == 0 {
		filter.ServiceTypes = append([]string(nil), f.allowList...)
		return filter, true
	}
	var kept []string
	for _, t := range filter.ServiceTypes {
		if f.allow[t] {
			kept = append(kept, t)
		}
	}
	filter.ServiceTypes = kept
	return filter, len(kept) > 0
}

// read runs one query, logs and counts a failure
func read[T any](f *Facade, name string, query func() ([]T, error)) Result[T] {
	rows, err := query()
	if err != nil {
		f.logger.Error("Query %s failed: %v", name, err)
		utils.RecordQueryFailure(name)
		return Result[T]{Err: err}
	}
	return Result[T]{Rows: rows}
}

// keep drops rows rejected by pred
func keep[T any](rows []T, pred func(T) bool) []T {
	out := rows[:0]
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// filtered runs query with the allow-list applied to filter
func filtered[T any](f *Facade, name string, filter database.Filter, query func(database.Filter) ([]T, error)) Result[T] {
	restricted, ok := f.restrict(filter)
	if !ok {
		return Result[T]{}
	}
	return read(f, name, func() ([]T, error) { return query(restricted) })
}

// Aggregation returns services and distinct volunteers per bucket
func (f *Facade) Aggregation(ctx context.Context, g database.Granularity, filter database.Filter) Result[database.PeriodAggregate] {
	return filtered(f, "aggregation", filter, func(fl database.Filter) ([]database.PeriodAggregate, error) {
		return f.store.QueryAggregation(ctx, g, fl)
	})
}

func (f *Facade) Volunteers(ctx context.Context, filter database.Filter) Result[string] {
	return filtered(f, "volunteers", filter, func(fl database.Filter) ([]string, error) {
		return f.store.DistinctVolunteers(ctx, fl)
	})
}

func (f *Facade) ServiceTypes(ctx context.Context, filter database.Filter) Result[string] {
	return filtered(f, "service_types", filter, func(fl database.Filter) ([]string, error) {
		rows, err := f.store.AvailableServiceTypes(ctx, fl)
		return keep(rows, f.Allowed), err
	})
}

func (f *Facade) Participants(ctx context.Context, g database.Granularity, filter database.Filter) Result[database.ParticipantCount] {
	return filtered(f, "participants", filter, func(fl database.Filter) ([]database.ParticipantCount, error) {
		return f.store.ParticipantsTable(ctx, g, fl)
	})
}

func (f *Facade) VolunteerTrend(ctx context.Context, volunteerID string, g database.Granularity, filter database.Filter) Result[database.PeriodCount] {
	return filtered(f, "volunteer_trend", filter, func(fl database.Filter) ([]database.PeriodCount, error) {
		return f.store.VolunteerTrend(ctx, volunteerID, g, fl)
	})
}

func (f *Facade) VolunteerServiceTypes(ctx context.Context, volunteerID string, g database.Granularity, filter database.Filter) Result[database.ServiceTypeCount] {
	return filtered(f, "volunteer_service_types", filter, func(fl database.Filter) ([]database.ServiceTypeCount, error) {
		rows, err := f.store.VolunteerServiceTypes(ctx, volunteerID, g, fl)
		return keep(rows, func(r database.ServiceTypeCount) bool { return f.Allowed(r.ServiceTypeID) }), err
	})
}

func (f *Facade) RawData(ctx context.Context, filter database.Filter) Result[database.RawFact] {
	return filtered(f, "raw_data", filter, func(fl database.Filter) ([]database.RawFact, error) {
		rows, err := f.store.RawData(ctx, fl)
		return keep(rows, func(r database.RawFact) bool { return f.Allowed(r.ServiceTypeID) }), err
	})
}

// DataSpan returns a single row with the first and last visible service date
func (f *Facade) DataSpan(ctx context.Context, filter database.Filter) Result[Span] {
	return filtered(f, "data_span", filter, func(fl database.Filter) ([]Span, error) {
		first, last, ok, err := f.store.DataSpan(ctx, fl)
		if err != nil || !ok {
			return nil, err
		}
		return []Span{{First: first, Last: last}}, nil
	})
}

func (f *Facade) RecentWeeks(ctx context.Context, weeks int, filter database.Filter) Result[database.VolunteerStats] {
	return filtered(f, "recent_weeks", filter, func(fl database.Filter) ([]database.VolunteerStats, error) {
		return f.store.VolunteerStatsRecentWeeks(ctx, weeks, fl)
	})
}

func (f *Facade) RecentMonths(ctx context.Context, months int, filter database.Filter) Result[database.VolunteerStats] {
	return filtered(f, "recent_months", filter, func(fl database.Filter) ([]database.VolunteerStats, error) {
		return f.store.VolunteerStatsRecentMonths(ctx, months, fl)
	})
}

func (f *Facade) WeeklyTrend(ctx context.Context, weeks int, filter database.Filter) Result[database.WeeklyVolunteerCount] {
	return filtered(f, "weekly_trend", filter, func(fl database.Filter) ([]database.WeeklyVolunteerCount, error) {
		return f.store.VolunteerWeeklyTrend(ctx, weeks, fl)
	})
}

func (f *Facade) ServiceTypeDistribution(ctx context.Context, weeks int, filter database.Filter) Result[database.ServiceTypeShare] {
	return filtered(f, "service_type_distribution", filter, func(fl database.Filter) ([]database.ServiceTypeShare, error) {
		rows, err := f.store.ServiceTypeDistributionRecent(ctx, weeks, fl)
		return keep(rows, func(r database.ServiceTypeShare) bool { return f.Allowed(r.ServiceTypeID) }), err
	})
}

func (f *Facade) PeriodComparison(ctx context.Context, weeks int, filter database.Filter) Result[database.PeriodComparison] {
	return filtered(f, "period_comparison", filter, func(fl database.Filter) ([]database.PeriodComparison, error) {
		return f.store.PeriodComparison(ctx, weeks, fl)
	})
}

func (f *Facade) VolunteerCountTrend(ctx context.Context, g database.Granularity, filter database.Filter) Result[database.VolunteerCountPoint] {
	return filtered(f, "volunteer_count_trend", filter, func(fl database.Filter) ([]database.VolunteerCountPoint, error) {
		return f.store.VolunteerCountTrend(ctx, g, fl)
	})
}

func (f *Facade) CumulativeParticipation(ctx context.Context, g database.Granularity, filter database.Filter) Result[database.CumulativePoint] {
	return filtered(f, "cumulative_participation", filter, func(fl database.Filter) ([]database.CumulativePoint, error) {
		return f.store.CumulativeParticipation(ctx, g, fl)
	})
}

func (f *Facade) JoinLeave(ctx context.Context, g database.Granularity, filter database.Filter) Result[database.JoinLeavePoint] {
	return filtered(f, "join_leave", filter, func(fl database.Filter) ([]database.JoinLeavePoint, error) {
		return f.store.JoinLeaveAnalysis(ctx, g, fl)
	})
}

func (f *Facade) ServiceTransitions(ctx context.Context, months int, filter database.Filter) Result[database.Transition] {
	return filtered(f, "service_transitions", filter, func(fl database.Filter) ([]database.Transition, error) {
		rows, err := f.store.ServiceTransitions(ctx, months, fl)
		return keep(rows, func(r database.Transition) bool { return f.keepLabel(r.From) && f.keepLabel(r.To) }), err
	})
}

func (f *Facade) MonthlyMinistryFlow(ctx context.Context, opts database.FlowOptions, filter database.Filter) Result[database.MonthlyFlow] {
	return filtered(f, "monthly_ministry_flow", filter, func(fl database.Filter) ([]database.MonthlyFlow, error) {
		rows, err := f.store.MonthlyMinistryFlow(ctx, opts, fl)
		return keep(rows, func(r database.MonthlyFlow) bool {
			return f.keepLabel(r.FromMinistry) && f.keepLabel(r.ToMinistry)
		}), err
	})
}

// MinistrySpecificFlow is empty for a ministry outside the allow-list
func (f *Facade) MinistrySpecificFlow(ctx context.Context, ministry string, filter database.Filter) Result[database.MinistryFlow] {
	if !f.Allowed(ministry) {
		return Result[database.MinistryFlow]{}
	}
	return filtered(f, "ministry_specific_flow", filter, func(fl database.Filter) ([]database.MinistryFlow, error) {
		rows, err := f.store.MinistrySpecificFlow(ctx, ministry, fl)
		return keep(rows, func(r database.MinistryFlow) bool { return f.keepLabel(r.Counterpart) }), err
	})
}

func (f *Facade) VolunteerPath(ctx context.Context, volunteerID string, filter database.Filter) Result[database.PathStep] {
	return filtered(f, "volunteer_path", filter, func(fl database.Filter) ([]database.PathStep, error) {
		return f.store.VolunteerMinistryPath(ctx, volunteerID, fl)
	})
}

func (f *Facade) VolunteerFlowData(ctx context.Context, filter database.Filter) Result[database.VolunteerTransition] {
	return filtered(f, "volunteer_flow_data", filter, func(fl database.Filter) ([]database.VolunteerTransition, error) {
		rows, err := f.store.VolunteerMinistryFlowData(ctx, fl)
		return keep(rows, func(r database.VolunteerTransition) bool {
			return f.keepLabel(r.FromMinistry) && f.keepLabel(r.ToMinistry)
		}), err
	})
}

func (f *Facade) ActivityLevelJourney(ctx context.Context, periods int, filter database.Filter) Result[database.LevelTransition] {
	return filtered(f, "activity_level_journey", filter, func(fl database.Filter) ([]database.LevelTransition, error) {
		return f.store.ActivityLevelJourney(ctx, periods, f.thresholds, fl)
	})
}

func (f *Facade) SeasonalFlow(ctx context.Context, filter database.Filter) Result[database.SeasonalFlow] {
	return filtered(f, "seasonal_flow", filter, func(fl database.Filter) ([]database.SeasonalFlow, error) {
		rows, err := f.store.SeasonalServiceFlow(ctx, fl)
		return keep(rows, func(r database.SeasonalFlow) bool {
			return f.keepLabel(r.FromService) && f.keepLabel(r.ToService)
		}), err
	})
}

func (f *Facade) ExperienceProgression(ctx context.Context, filter database.Filter) Result[database.ExperienceFlow] {
	return filtered(f, "experience_progression", filter, func(fl database.Filter) ([]database.ExperienceFlow, error) {
		return f.store.ExperienceProgression(ctx, fl)
	})
}

// VolunteerRanks, CoServiceEdges and Forecast are computed over every service
// type at ingest time, so the allow-list does not apply to them.

func (f *Facade) VolunteerRanks(ctx context.Context, limit int) Result[database.VolunteerRank] {
	return read(f, "volunteer_ranks", func() ([]database.VolunteerRank, error) {
		return f.store.VolunteerRanks(ctx, limit)
	})
}

func (f *Facade) CoServiceEdges(ctx context.Context, minShared int) Result[database.CoServiceEdge] {
	return read(f, "coservice_edges", func() ([]database.CoServiceEdge, error) {
		return f.store.CoServiceEdges(ctx, minShared)
	})
}

func (f *Facade) Forecast(ctx context.Context) Result[database.ForecastPoint] {
	return read(f, "forecast", func() ([]database.ForecastPoint, error) {
		return f.store.LatestForecast(ctx)
	})
}

func (f *Facade) RecentRuns(ctx context.Context, limit int) Result[models.IngestRunLog] {
	if f.runs == nil {
		return Result[models.IngestRunLog]{}
	}
	return read(f, "recent_runs", func() ([]models.IngestRunLog, error) {
		return f.runs.GetRecentRuns(ctx, limit)
	})
}

func (f *Facade) IngestState(ctx context.Context) Result[models.IngestStateMonitor] {
	if f.runs == nil {
		return Result[models.IngestStateMonitor]{}
	}
	return read(f, "ingest_state", func() ([]models.IngestStateMonitor, error) {
		state, err := f.runs.GetStateMonitor(ctx)
		if err != nil || state == nil {
			return nil, err
		}
		return []models.IngestStateMonitor{*state}, nil
	})
}
