package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type seedFact struct {
	date      time.Time
	volunteer string
	role      string
}

// fixture:
//
//	Alice: Jan sound x2 + camera, Feb camera
//	Bob:   Jan camera
//	Carol: Feb sound, Mar sound
var fixture = []seedFact{
	{day(2024, 1, 7), "Alice", "sound"},
	{day(2024, 1, 14), "Alice", "sound"},
	{day(2024, 1, 21), "Alice", "camera"},
	{day(2024, 2, 4), "Alice", "camera"},
	{day(2024, 1, 7), "Bob", "camera"},
	{day(2024, 2, 11), "Carol", "sound"},
	{day(2024, 3, 3), "Carol", "sound"},
}

func newTestStore(t *testing.T, facts []seedFact) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	store.SetClock(func() time.Time { return day(2024, 3, 31) })

	for i, f := range facts {
		_, err := store.DB().ExecContext(ctx, `
			INSERT INTO service_fact (fact_id, volunteer_id, service_type_id, service_date, source_row_id, ingested_at)
			VALUES (?, ?, ?, CAST(? AS DATE), ?, ?)`,
			f.date.Format("2006-01-02")+":"+f.role+":"+f.volunteer, f.volunteer, f.role,
			f.date.Format("2006-01-02"), "sheet:Schedule:"+string(rune('a'+i)), day(2024, 4, 1))
		require.NoError(t, err)
	}
	return store
}

func TestMigrate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	require.NoError(t, Migrate(ctx, store.DB()))
	require.NoError(t, Migrate(ctx, store.DB()))

	version, err := SchemaVersion(ctx, store.DB())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestParseGranularity(t *testing.T) {
	for _, s := range []string{"year", "quarter", "month", "week", " Month "} {
		_, err := ParseGranularity(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseGranularity("day")
	assert.ErrorIs(t, err, ErrInvalidGranularity)
}

func TestQueryAggregation_RejectsUnknownGranularity(t *testing.T) {
	store := newTestStore(t, fixture)
	_, err := store.QueryAggregation(context.Background(), Granularity("decade"), Filter{})
	assert.ErrorIs(t, err, ErrInvalidGranularity)

	_, err = store.JoinLeaveAnalysis(context.Background(), Granularity(""), Filter{})
	assert.ErrorIs(t, err, ErrInvalidGranularity)
}

func TestQueryAggregation_Monthly(t *testing.T) {
	store := newTestStore(t, fixture)
	aggs, err := store.QueryAggregation(context.Background(), GranularityMonth, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []PeriodAggregate{
		{Period: "2024-01", PeriodStart: day(2024, 1, 1), ServiceCount: 4, VolunteerCount: 2},
		{Period: "2024-02", PeriodStart: day(2024, 2, 1), ServiceCount: 2, VolunteerCount: 2},
		{Period: "2024-03", PeriodStart: day(2024, 3, 1), ServiceCount: 1, VolunteerCount: 1},
	}, aggs)
}

func TestQueryAggregation_Labels(t *testing.T) {
	store := newTestStore(t, fixture)
	ctx := context.Background()

	quarters, err := store.QueryAggregation(ctx, GranularityQuarter, Filter{})
	require.NoError(t, err)
	require.Len(t, quarters, 1)
	assert.Equal(t, "2024-Q1", quarters[0].Period)
	assert.Equal(t, 7, quarters[0].ServiceCount)

	weeks, err := store.QueryAggregation(ctx, GranularityWeek, Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, weeks)
	assert.Equal(t, "2024-W01", weeks[0].Period)
	assert.Equal(t, day(2024, 1, 1), weeks[0].PeriodStart)
	assert.Equal(t, 2, weeks[0].ServiceCount)

	years, err := store.QueryAggregation(ctx, GranularityYear, Filter{})
	require.NoError(t, err)
	require.Len(t, years, 1)
	assert.Equal(t, "2024", years[0].Period)
}

func TestFilter_ServiceTypesAndVolunteers(t *testing.T) {
	store := newTestStore(t, fixture)
	ctx := context.Background()

	aggs, err := store.QueryAggregation(ctx, GranularityMonth, Filter{ServiceTypes: []string{"sound"}})
	require.NoError(t, err)
	require.Len(t, aggs, 3)
	assert.Equal(t, 2, aggs[0].ServiceCount)
	assert.Equal(t, 1, aggs[0].VolunteerCount)

	vols, err := store.DistinctVolunteers(ctx, Filter{ServiceTypes: []string{"camera"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, vols)

	types, err := store.AvailableServiceTypes(ctx, Filter{Volunteers: []string{"Carol"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"sound"}, types)

	ranged, err := store.RawData(ctx, Filter{Start: day(2024, 2, 1), End: day(2024, 2, 29)})
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "Carol", ranged[0].VolunteerID)
	assert.Equal(t, 2, ranged[0].Month)
	assert.Equal(t, 1, ranged[0].Quarter)
}

func TestAsOfDateHidesFutureFacts(t *testing.T) {
	store := newTestStore(t, fixture)
	store.SetClock(func() time.Time { return time.Date(2024, 2, 5, 18, 30, 0, 0, time.UTC) })
	ctx := context.Background()

	aggs, err := store.QueryAggregation(ctx, GranularityMonth, Filter{})
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, 1, aggs[1].ServiceCount)

	total, err := store.FactCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}

func TestDataSpan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, fixture)
	first, last, ok, err := store.DataSpan(ctx, Filter{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day(2024, 1, 7), first)
	assert.Equal(t, day(2024, 3, 3), last)

	empty := newTestStore(t, nil)
	_, _, ok, err = empty.DataSpan(ctx, Filter{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParticipantsAndVolunteerTrend(t *testing.T) {
	store := newTestStore(t, fixture)
	ctx := context.Background()

	participants, err := store.ParticipantsTable(ctx, GranularityMonth, Filter{})
	require.NoError(t, err)
	assert.Len(t, participants, 5)
	assert.Equal(t, ParticipantCount{Period: "2024-01", PeriodStart: day(2024, 1, 1), VolunteerID: "Alice", ServiceCount: 3}, participants[0])

	trend, err := store.VolunteerTrend(ctx, "Alice", GranularityMonth, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []PeriodCount{
		{Period: "2024-01", PeriodStart: day(2024, 1, 1), ServiceCount: 3},
		{Period: "2024-02", PeriodStart: day(2024, 2, 1), ServiceCount: 1},
	}, trend)
}

func TestJoinLeaveAnalysis(t *testing.T) {
	store := newTestStore(t, fixture)
	points, err := store.JoinLeaveAnalysis(context.Background(), GranularityMonth, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []JoinLeavePoint{
		{Period: "2024-01", PeriodStart: day(2024, 1, 1), ActiveVolunteers: 2, NewVolunteers: 2, LeftVolunteers: 0, Retained: 0, NetChange: 2},
		{Period: "2024-02", PeriodStart: day(2024, 2, 1), ActiveVolunteers: 2, NewVolunteers: 1, LeftVolunteers: 1, Retained: 1, NetChange: 0},
		{Period: "2024-03", PeriodStart: day(2024, 3, 1), ActiveVolunteers: 1, NewVolunteers: 0, LeftVolunteers: 1, Retained: 1, NetChange: -1},
	}, points)
}

func TestVolunteerCountTrendAndCumulative(t *testing.T) {
	store := newTestStore(t, fixture)
	ctx := context.Background()

	trend, err := store.VolunteerCountTrend(ctx, GranularityMonth, Filter{})
	require.NoError(t, err)
	require.Len(t, trend, 3)
	assert.Nil(t, trend[0].ChangePct)
	require.NotNil(t, trend[1].ChangePct)
	assert.Equal(t, 0.0, *trend[1].ChangePct)
	require.NotNil(t, trend[2].ChangePct)
	assert.Equal(t, -50.0, *trend[2].ChangePct)

	cumulative, err := store.CumulativeParticipation(ctx, GranularityMonth, Filter{})
	require.NoError(t, err)
	require.Len(t, cumulative, 3)
	assert.Equal(t, 4, cumulative[0].CumulativeServices)
	assert.Equal(t, 6, cumulative[1].CumulativeServices)
	assert.Equal(t, 7, cumulative[2].CumulativeServices)
	assert.Equal(t, 3, cumulative[2].CumulativeVolunteers)
}

func TestVolunteerStatsRecentWeeks(t *testing.T) {
	store := newTestStore(t, fixture)
	ctx := context.Background()

	stats, err := store.VolunteerStatsRecentWeeks(ctx, 12, Filter{})
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, "Alice", stats[0].VolunteerID)
	assert.Equal(t, 4, stats[0].TotalServices)
	assert.Equal(t, 2, stats[0].ServiceTypesCount)
	assert.Equal(t, []string{"camera", "sound"}, stats[0].ServiceTypes)
	assert.Equal(t, day(2024, 1, 7), stats[0].FirstServiceDate)
	assert.Equal(t, "Carol", stats[1].VolunteerID)
	assert.Equal(t, "Bob", stats[2].VolunteerID)

	recent, err := store.VolunteerStatsRecentWeeks(ctx, 4, Filter{})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Carol", recent[0].VolunteerID)

	_, err = store.VolunteerStatsRecentWeeks(ctx, 0, Filter{})
	assert.Error(t, err)
}

func TestServiceTypeDistributionRecent(t *testing.T) {
	store := newTestStore(t, fixture)
	shares, err := store.ServiceTypeDistributionRecent(context.Background(), 12, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []ServiceTypeShare{
		{ServiceTypeID: "sound", TotalServices: 4, UniqueVolunteers: 2, Percentage: 57.14},
		{ServiceTypeID: "camera", TotalServices: 3, UniqueVolunteers: 2, Percentage: 42.86},
	}, shares)
}

func TestPeriodComparison(t *testing.T) {
	store := newTestStore(t, fixture)
	rows, err := store.PeriodComparison(context.Background(), 4, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Carol", rows[0].VolunteerID)
	assert.Equal(t, 1, rows[0].CurrentCount)
	assert.Equal(t, 1, rows[0].PreviousCount)
	require.NotNil(t, rows[0].ChangePct)
	assert.Equal(t, 0.0, *rows[0].ChangePct)

	assert.Equal(t, "Alice", rows[1].VolunteerID)
	assert.Equal(t, -1, rows[1].Change)
	require.NotNil(t, rows[1].ChangePct)
	assert.Equal(t, -100.0, *rows[1].ChangePct)
}

func TestMonthlyMinistryFlow(t *testing.T) {
	store := newTestStore(t, fixture)
	ctx := context.Background()

	flows, err := store.MonthlyMinistryFlow(ctx, FlowOptions{}, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []MonthlyFlow{
		{FromMonth: "2024-01", ToMonth: "2024-02", FromMinistry: "sound", ToMinistry: "camera", VolunteerCount: 1, Volunteers: []string{"Alice"}},
		{FromMonth: "2024-02", ToMonth: "2024-03", FromMinistry: "sound", ToMinistry: "sound", VolunteerCount: 1, Volunteers: []string{"Carol"}},
	}, flows)

	withInactive, err := store.MonthlyMinistryFlow(ctx, FlowOptions{IncludeInactive: true}, Filter{})
	require.NoError(t, err)
	assert.Len(t, withInactive, 5)
	assert.Contains(t, withInactive, MonthlyFlow{
		FromMonth: "2024-01", ToMonth: "2024-02", FromMinistry: "camera", ToMinistry: FlowInactive, VolunteerCount: 1, Volunteers: []string{"Bob"},
	})

	recent, err := store.MonthlyMinistryFlow(ctx, FlowOptions{Strategy: StrategyMostRecent}, Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, "camera", recent[0].FromMinistry)
	assert.Equal(t, "camera", recent[0].ToMinistry)

	topOne, err := store.MonthlyMinistryFlow(ctx, FlowOptions{TopK: 1}, Filter{})
	require.NoError(t, err)
	for _, f := range topOne {
		assert.Contains(t, []string{"sound", FlowOther}, f.FromMinistry)
		assert.Contains(t, []string{"sound", FlowOther}, f.ToMinistry)
	}

	_, err = store.MonthlyMinistryFlow(ctx, FlowOptions{Strategy: "loudest"}, Filter{})
	assert.ErrorIs(t, err, ErrInvalidStrategy)
}

func TestServiceTransitions(t *testing.T) {
	store := newTestStore(t, fixture)
	transitions, err := store.ServiceTransitions(context.Background(), 12, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []Transition{
		{From: "sound", To: "camera", VolunteerCount: 1},
		{From: "sound", To: "sound", VolunteerCount: 1},
	}, transitions)
}

func TestMinistrySpecificFlow(t *testing.T) {
	store := newTestStore(t, fixture)
	flows, err := store.MinistrySpecificFlow(context.Background(), "sound", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []MinistryFlow{
		{Direction: "in", Counterpart: FlowInactive, VolunteerCount: 1},
		{Direction: "out", Counterpart: "camera", VolunteerCount: 1},
		{Direction: "stay", Counterpart: "sound", VolunteerCount: 1},
	}, flows)
}

func TestVolunteerMinistryPath(t *testing.T) {
	store := newTestStore(t, fixture)
	path, err := store.VolunteerMinistryPath(context.Background(), "Alice", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []PathStep{
		{Month: "2024-01", MainMinistry: "sound", ServiceCount: 3, Ministries: map[string]int{"sound": 2, "camera": 1}},
		{Month: "2024-02", MainMinistry: "camera", ServiceCount: 1, Ministries: map[string]int{"camera": 1}},
	}, path)
}

func TestVolunteerMinistryFlowData(t *testing.T) {
	store := newTestStore(t, fixture)
	rows, err := store.VolunteerMinistryFlowData(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []VolunteerTransition{
		{VolunteerID: "Alice", FromMonth: "2024-01", ToMonth: "2024-02", FromMinistry: "sound", ToMinistry: "camera", FlowIntensity: 1},
		{VolunteerID: "Carol", FromMonth: "2024-02", ToMonth: "2024-03", FromMinistry: "sound", ToMinistry: "sound", FlowIntensity: 1},
	}, rows)
}

func TestActivityLevelJourney(t *testing.T) {
	store := newTestStore(t, fixture)
	levels, err := store.ActivityLevelJourney(context.Background(), 3, ActivityThresholds{High: 3, Medium: 2}, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []LevelTransition{
		{FromPeriod: "2024-01", ToPeriod: "2024-02", FromLevel: "high", ToLevel: "low", VolunteerCount: 1},
		{FromPeriod: "2024-01", ToPeriod: "2024-02", FromLevel: FlowInactive, ToLevel: "low", VolunteerCount: 1},
		{FromPeriod: "2024-01", ToPeriod: "2024-02", FromLevel: "low", ToLevel: FlowInactive, VolunteerCount: 1},
		{FromPeriod: "2024-02", ToPeriod: "2024-03", FromLevel: "low", ToLevel: FlowInactive, VolunteerCount: 1},
		{FromPeriod: "2024-02", ToPeriod: "2024-03", FromLevel: "low", ToLevel: "low", VolunteerCount: 1},
	}, levels)

	_, err = store.ActivityLevelJourney(context.Background(), 1, ActivityThresholds{High: 3, Medium: 2}, Filter{})
	assert.Error(t, err)
}

func TestSeasonalServiceFlow(t *testing.T) {
	facts := append([]seedFact{}, fixture...)
	facts = append(facts, seedFact{day(2024, 3, 10), "Carol", "camera"}, seedFact{day(2024, 4, 7), "Carol", "camera"})
	store := newTestStore(t, facts)
	store.SetClock(func() time.Time { return day(2024, 6, 30) })

	flows, err := store.SeasonalServiceFlow(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []SeasonalFlow{
		{FromQuarter: "2024-Q1", ToQuarter: "2024-Q2", FromService: "sound", ToService: "camera", VolunteerCount: 1},
	}, flows)
}

func TestExperienceProgression(t *testing.T) {
	store := newTestStore(t, fixture)
	flows, err := store.ExperienceProgression(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []ExperienceFlow{
		{DiversityCategory: DiversitySpecialist, VolumeCategory: VolumeNewcomer, VolunteerCount: 2},
		{DiversityCategory: DiversityVersatile, VolumeCategory: VolumeNewcomer, VolunteerCount: 1},
	}, flows)
}

func TestAnalyticsTables(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()
	calculated := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

	_, err := store.DB().ExecContext(ctx, `INSERT INTO volunteer_rank VALUES
		('Alice', 0.6, 1, 'high', 4, 2, ?), ('Bob', 0.4, 2, 'low', 1, 1, ?)`, calculated, calculated)
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx, `INSERT INTO coservice_edge VALUES ('Alice', 'Bob', 1)`)
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx, `INSERT INTO participation_forecast VALUES
		(CAST('2024-04-08' AS DATE), 3.5, 1.0, 6.0, 0.1, 0.42, true, ?)`, calculated)
	require.NoError(t, err)

	ranks, err := store.VolunteerRanks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ranks, 1)
	assert.Equal(t, "Alice", ranks[0].VolunteerID)
	assert.Equal(t, "high", ranks[0].Category)

	edges, err := store.CoServiceEdges(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []CoServiceEdge{{VolunteerA: "Alice", VolunteerB: "Bob", SharedDates: 1}}, edges)

	forecast, err := store.LatestForecast(ctx)
	require.NoError(t, err)
	require.Len(t, forecast, 1)
	assert.Equal(t, day(2024, 4, 8), forecast[0].WeekStart)
	assert.True(t, forecast[0].IsReliable)
}

func TestQueryFailurePropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("WITH facts AS").WillReturnError(errors.New("database is locked"))

	store := NewStoreWithoutMigrations(db)
	_, err = store.QueryAggregation(context.Background(), GranularityMonth, Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
