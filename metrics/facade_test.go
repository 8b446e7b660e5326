package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/database"
)

func newStore(t *testing.T) *database.Store {
	t.Helper()
	ctx := context.Background()
	store, err := database.Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	store.SetClock(func() time.Time { return time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC) })

	facts := []struct{ vol, role, date string }{
		{"Alice", "sound", "2024-01-07"},
		{"Alice", "camera", "2024-02-04"},
		{"Bob", "camera", "2024-01-07"},
		{"Carol", "sound", "2024-02-11"},
		{"Carol", "lights", "2024-03-03"},
	}
	for i, f := range facts {
		_, err := store.DB().ExecContext(ctx, `INSERT INTO service_fact VALUES (?, ?, ?, CAST(? AS DATE), 'row', ?)`,
			string(rune('a'+i)), f.vol, f.role, f.date, time.Now().UTC())
		require.NoError(t, err)
	}
	return store
}

func newFacade(store *database.Store, allow ...string) *Facade {
	cfg := &config.Config{}
	cfg.Stats.IncludeServiceTypes = allow
	return NewFacade(store, nil, cfg, utils.NewDiscardLogger())
}

func TestResultStatus(t *testing.T) {
	assert.Equal(t, StatusOK, Result[int]{Rows: []int{1}}.Status())
	assert.Equal(t, StatusNoData, Result[int]{}.Status())
	assert.Equal(t, StatusFailed, Result[int]{Err: errors.New("boom")}.Status())
	assert.Equal(t, "no_data", StatusNoData.String())
}

func TestFacade_NoAllowListSeesEverything(t *testing.T) {
	f := newFacade(newStore(t))
	res := f.ServiceTypes(context.Background(), database.Filter{})
	require.NoError(t, res.Err)
	assert.ElementsMatch(t, []string{"camera", "lights", "sound"}, res.Rows)
}

func TestFacade_AllowListRestrictsAggregates(t *testing.T) {
	ctx := context.Background()
	f := newFacade(newStore(t), "sound", "camera")

	types := f.ServiceTypes(ctx, database.Filter{})
	assert.ElementsMatch(t, []string{"camera", "sound"}, types.Rows)

	agg := f.Aggregation(ctx, database.GranularityMonth, database.Filter{})
	require.Equal(t, StatusOK, agg.Status())
	total := 0
	for _, p := range agg.Rows {
		total += p.ServiceCount
	}
	assert.Equal(t, 4, total)

	// requesting only a disallowed type can only be empty
	none := f.Aggregation(ctx, database.GranularityMonth, database.Filter{ServiceTypes: []string{"lights"}})
	assert.Equal(t, StatusNoData, none.Status())

	// an allowed subset is kept
	sound := f.Aggregation(ctx, database.GranularityMonth, database.Filter{ServiceTypes: []string{"sound", "lights"}})
	total = 0
	for _, p := range sound.Rows {
		total += p.ServiceCount
	}
	assert.Equal(t, 2, total)
}

func TestFacade_MinistrySpecificFlowOutsideAllowList(t *testing.T) {
	f := newFacade(newStore(t), "sound")
	res := f.MinistrySpecificFlow(context.Background(), "camera", database.Filter{})
	assert.Equal(t, StatusNoData, res.Status())
}

func TestFacade_FlowsKeepPseudoMinistries(t *testing.T) {
	f := newFacade(newStore(t), "sound", "camera")
	res := f.MonthlyMinistryFlow(context.Background(), database.FlowOptions{IncludeInactive: true}, database.Filter{})
	require.NoError(t, res.Err)

	sawInactive := false
	for _, r := range res.Rows {
		assert.NotEqual(t, "lights", r.FromMinistry)
		assert.NotEqual(t, "lights", r.ToMinistry)
		if r.FromMinistry == database.FlowInactive || r.ToMinistry == database.FlowInactive {
			sawInactive = true
		}
	}
	assert.True(t, sawInactive)
}

func TestFacade_DataSpan(t *testing.T) {
	f := newFacade(newStore(t))
	span, ok := f.DataSpan(context.Background(), database.Filter{}).One()
	require.True(t, ok)
	assert.Equal(t, "2024-01-07", span.First.Format(models.DateLayout))
	assert.Equal(t, "2024-03-03", span.Last.Format(models.DateLayout))
}

func TestFacade_FailureIsReported(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("WITH facts AS").WillReturnError(errors.New("database is locked"))

	f := newFacade(database.NewStoreWithoutMigrations(db))
	res := f.Aggregation(context.Background(), database.GranularityMonth, database.Filter{})
	assert.Equal(t, StatusFailed, res.Status())
	assert.Empty(t, res.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_RunHistory(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	runs := models.NewDuckDBIngestRunRepository(store.DB())
	f := NewFacade(store, runs, &config.Config{}, utils.NewDiscardLogger())

	assert.Equal(t, StatusNoData, f.RecentRuns(ctx, 10).Status())

	id, err := runs.CreateLogEntry(ctx, time.Now())
	require.NoError(t, err)
	require.NoError(t, runs.UpdateLogEntrySuccess(ctx, id, time.Now(), models.RunCounts{Source: "sheets", FactsLoaded: 5}))

	recent := f.RecentRuns(ctx, 10)
	require.Equal(t, StatusOK, recent.Status())
	assert.Equal(t, "sheets", recent.Rows[0].Source)

	state, ok := f.IngestState(ctx).One()
	require.True(t, ok)
	assert.Equal(t, 1, state.TotalSuccessfulRuns)
	assert.Equal(t, 4, f.Thresholds().High)
}
