package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/database"
	"github.com/LilVoxy/ministry_analytics/metrics"
)

type stubSource struct {
	rows [][]string
	err  error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(context.Context) (*models.RawSheet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.RawSheet{SpreadsheetID: "sheet-1", SheetName: "Schedule", Rows: s.rows, Source: "stub"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		SpreadsheetID: "sheet-1",
		SheetName:     "Schedule",
		Columns: config.ColumnsConfig{
			Date:     "A",
			RangeEnd: "U",
			Roles: []config.RoleColumn{
				{Key: "C", ServiceType: "sound"},
				{Key: "D", ServiceType: "camera"},
			},
		},
	}
}

// post-load analytics look back from today, so fixtures are dated recently
func daysAgo(n int) string {
	return time.Now().UTC().AddDate(0, 0, -n).Format(models.DateLayout)
}

func setup(t *testing.T, source *stubSource) (*database.Store, *Runner) {
	t.Helper()
	store, err := database.Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r, err := New(testConfig(), store.DB(), source, utils.NewDiscardLogger())
	require.NoError(t, err)
	return store, r
}

func TestExecute_LoadsAndLogsRun(t *testing.T) {
	ctx := context.Background()
	source := &stubSource{rows: [][]string{
		{daysAgo(14), "", "Alice", "Bob"},
		{daysAgo(7), "", "Alice", "Bob"},
		{"not a date", "", "Carol", ""},
	}}
	store, r := setup(t, source)

	var events []Event
	r.OnFinish(func(e Event) { events = append(events, e) })

	summary, err := r.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.FactsLoaded)
	assert.Equal(t, 3, summary.RowsRead)
	assert.Equal(t, 1, summary.RowsSkipped)
	assert.Equal(t, "stub", summary.Source)

	n, err := store.FactCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	last, err := r.RunLog().GetLastSuccessfulRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, summary.RunID, last.ID)
	assert.Equal(t, 1, last.RowsSkipped)
	assert.Equal(t, 4, last.FactsLoaded)

	// the co-service ranking ran after the load
	ranks, err := store.VolunteerRanks(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, ranks, 2)

	require.Len(t, events, 1)
	assert.Equal(t, models.RunStatusSuccess, events[0].Status)
	assert.Equal(t, "ingest_finished", events[0].Type)
}

func TestExecute_ReingestKeepsFactCount(t *testing.T) {
	ctx := context.Background()
	store, r := setup(t, &stubSource{rows: [][]string{{"2024-01-07", "", "Alice", "Bob"}}})

	_, err := r.Execute(ctx)
	require.NoError(t, err)
	second, err := r.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.RowsChanged)

	n, err := store.FactCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExecute_ExtractFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	_, r := setup(t, &stubSource{err: errors.New("quota exceeded")})

	var events []Event
	r.OnFinish(func(e Event) { events = append(events, e) })

	_, err := r.Execute(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	runs, err := r.RunLog().GetRecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "extract phase failed")

	require.Len(t, events, 1)
	assert.Equal(t, models.RunStatusFailed, events[0].Status)
}

func TestStartScheduler_DisabledWithoutInterval(t *testing.T) {
	_, r := setup(t, &stubSource{})
	err := r.StartScheduler(context.Background())
	assert.ErrorIs(t, err, ErrSchedulerDisabled)
}

func TestExecute_AllowListShapesDerivedTables(t *testing.T) {
	ctx := context.Background()
	store, err := database.Open(ctx, "")
	require.NoError(t, err)
	defer store.Close()

	cfg := testConfig()
	cfg.Stats.IncludeServiceTypes = []string{"sound"}
	source := &stubSource{rows: [][]string{
		{daysAgo(21), "", "Alice", "Bob"},
		{daysAgo(14), "", "Alice", "Bob"},
		{daysAgo(7), "", "Alice", "Bob"},
	}}
	r, err := New(cfg, store.DB(), source, utils.NewDiscardLogger())
	require.NoError(t, err)

	_, err = r.Execute(ctx)
	require.NoError(t, err)

	// camera facts stay in the store
	n, err := store.FactCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	facade := metrics.NewFacade(store, nil, cfg, utils.NewDiscardLogger())

	ranks := facade.VolunteerRanks(ctx, 0)
	require.NoError(t, ranks.Err)
	require.Len(t, ranks.Rows, 1)
	assert.Equal(t, "Alice", ranks.Rows[0].VolunteerID)
	assert.Equal(t, 3, ranks.Rows[0].ServiceCount)

	// Bob only served on camera, so Alice has no partner
	edges := facade.CoServiceEdges(ctx, 1)
	require.NoError(t, edges.Err)
	assert.Empty(t, edges.Rows)

	forecast := facade.Forecast(ctx)
	require.NoError(t, forecast.Err)
	assert.NotEmpty(t, forecast.Rows)

	summary, err := r.RunForecast(ctx)
	require.NoError(t, err)
	total := 0.0
	for _, p := range summary.Regression.DataPoints {
		total += p.Y
	}
	assert.Equal(t, 3.0, total)
}
