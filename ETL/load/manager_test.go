package load

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/transform"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/database"
)

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

func setup(t *testing.T) (*database.Store, *LoadManager, *transform.Transformer) {
	t.Helper()
	ctx := context.Background()
	store, err := database.Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := utils.NewDiscardLogger()
	tr, err := transform.NewTransformer(testConfig(), logger)
	require.NoError(t, err)
	return store, NewLoadManager(store.DB(), logger), tr
}

func ingest(t *testing.T, m *LoadManager, tr *transform.Transformer, rows [][]string) *LoadResult {
	t.Helper()
	data, err := tr.Transform(&models.RawSheet{SpreadsheetID: "sheet-1", SheetName: "Schedule", Rows: rows})
	require.NoError(t, err)
	result, err := m.Load(context.Background(), data)
	require.NoError(t, err)
	return result
}

var scenarioRows = [][]string{
	{"2024-01-01", "Alice", "Alice", "", ""},
	{"2024-01-08", "Bob", "", "Bob", ""},
}

func TestLoad_ScenarioMonthlyAggregation(t *testing.T) {
	ctx := context.Background()
	store, m, tr := setup(t)

	result := ingest(t, m, tr, scenarioRows)
	assert.Equal(t, 2, result.FactsLoaded)
	assert.Equal(t, 2, result.RowsChanged)

	aggs, err := store.QueryAggregation(ctx, database.GranularityMonth, database.Filter{})
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, "2024-01", aggs[0].Period)
	assert.Equal(t, 2, aggs[0].ServiceCount)
	assert.Equal(t, 2, aggs[0].VolunteerCount)
}

func TestLoad_ReingestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, m, tr := setup(t)

	ingest(t, m, tr, scenarioRows)
	second := ingest(t, m, tr, scenarioRows)
	assert.Equal(t, 0, second.RowsChanged)
	assert.Equal(t, 0, second.StaleFactsRemoved)

	n, err := store.FactCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoad_MovedRowReplacesStaleFact(t *testing.T) {
	ctx := context.Background()
	store, m, tr := setup(t)

	ingest(t, m, tr, scenarioRows)

	// A header row shifts every row down by one, which changes the fact ids
	shifted := append([][]string{{"Date", "Name", "Sound", "Camera"}}, scenarioRows...)
	result := ingest(t, m, tr, shifted)
	assert.Equal(t, 2, result.StaleFactsRemoved)

	n, err := store.FactCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw, err := store.RawData(ctx, database.Filter{})
	require.NoError(t, err)
	for _, f := range raw {
		assert.Contains(t, []string{"2024-01-08:camera:Bob:3", "2024-01-01:sound:Alice:2"}, f.FactID)
	}
}

func TestLoad_RoundTripThroughVolunteerServiceTypes(t *testing.T) {
	ctx := context.Background()
	store, m, tr := setup(t)
	ingest(t, m, tr, [][]string{
		{"2024-01-07", "", "Carol", "", ""},
		{"2024-01-14", "", "", "Carol", ""},
		{"2024-02-04", "", "Carol", "", ""},
	})

	rows, err := store.VolunteerServiceTypes(ctx, "Carol", database.GranularityMonth, database.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []database.ServiceTypeCount{
		{Period: "2024-01", PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ServiceTypeID: "camera", ServiceCount: 1},
		{Period: "2024-01", PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ServiceTypeID: "sound", ServiceCount: 1},
		{Period: "2024-02", PeriodStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), ServiceTypeID: "sound", ServiceCount: 1},
	}, rows)
}

func TestLoad_VolunteerSeenDatesWiden(t *testing.T) {
	ctx := context.Background()
	store, m, tr := setup(t)
	ingest(t, m, tr, [][]string{{"2024-03-03", "", "Dana", "", ""}})
	ingest(t, m, tr, [][]string{{"2024-01-07", "", "Dana", "", ""}})

	var first, last time.Time
	err := store.DB().QueryRowContext(ctx,
		"SELECT first_seen, last_seen FROM volunteer WHERE volunteer_id = ?", "Dana").Scan(&first, &last)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-07", first.Format(models.DateLayout))
	assert.Equal(t, "2024-03-03", last.Format(models.DateLayout))
}

func TestLoad_NilData(t *testing.T) {
	_, m, _ := setup(t)
	_, err := m.Load(context.Background(), nil)
	assert.Error(t, err)
}

func TestLoad_StandaloneWritesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	store, m, _ := setup(t)

	day := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	dates := []models.DateDimension{transform.NewDateDimension(day)}
	require.NoError(t, m.UpsertDateDim(ctx, dates))
	require.NoError(t, m.UpsertDateDim(ctx, dates))

	var n int
	require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM date_dim").Scan(&n))
	assert.Equal(t, 1, n)

	fact := models.ServiceFact{
		FactID:        "2024-05-05:sound:Eve:4",
		VolunteerID:   "Eve",
		ServiceTypeID: "sound",
		ServiceDate:   day,
		SourceRowID:   "sheet-1:Schedule:4:abc",
		IngestedAt:    time.Now(),
	}
	require.NoError(t, m.InsertFacts(ctx, []models.ServiceFact{fact}))

	// same triple from another row replaces the earlier fact
	moved := fact
	moved.FactID = "2024-05-05:sound:Eve:5"
	require.NoError(t, m.InsertFacts(ctx, []models.ServiceFact{moved}))
	require.NoError(t, m.InsertFacts(ctx, []models.ServiceFact{moved}))

	count, err := store.FactCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
