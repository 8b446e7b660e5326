package routes

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/runner"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/database"
	"github.com/LilVoxy/ministry_analytics/metrics"
)

type stubRefresher struct {
	err   error
	calls int
}

func (s *stubRefresher) Execute(ctx context.Context) (*runner.Summary, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &runner.Summary{RunID: "run-1", Source: "stub", RowsRead: 3, FactsLoaded: 5}, nil
}

func seededStore(t *testing.T) *database.Store {
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

func newRouter(store *database.Store, refresher Refresher, allow ...string) *mux.Router {
	cfg := &config.Config{}
	cfg.Stats.IncludeServiceTypes = allow
	logger := utils.NewDiscardLogger()
	router := mux.NewRouter()
	SetupRoutes(router, Deps{
		Facade: metrics.NewFacade(store, nil, cfg, logger),
		Runner: refresher,
		Logger: logger,
	})
	return router
}

func do(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAggregationEndpoint(t *testing.T) {
	router := newRouter(seededStore(t), nil)

	rec := do(t, router, http.MethodGet, "/api/aggregation?granularity=month")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Chart)
	assert.Equal(t, "line", string(resp.Chart.Kind))
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, resp.Chart.Categories)
	assert.Len(t, resp.Rows, 3)
}

func TestBadParametersAreRejected(t *testing.T) {
	router := newRouter(seededStore(t), nil)

	for _, target := range []string{
		"/api/aggregation?granularity=decade",
		"/api/aggregation?start=not-a-date",
		"/api/flows/monthly?strategy=loudest",
		"/api/rankings/recent?weeks=-2",
		"/api/rankings/recent?weeks=0",
		"/api/rankings/months?months=0",
		"/api/rankings/comparison?weeks=0",
		"/api/flows/transitions?months=0",
		"/api/flows/activity-levels?periods=1",
		"/api/runs?limit=0",
	} {
		rec := do(t, router, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "error", decode(t, rec).Status, target)
	}
}

func TestDateFilterAcceptsLooseFormats(t *testing.T) {
	router := newRouter(seededStore(t), nil)

	rec := do(t, router, http.MethodGet, "/api/aggregation?start=02/01/2024&end=2024-02-29")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Chart)
	assert.Equal(t, []string{"2024-02"}, resp.Chart.Categories)
}

func TestDisallowedRoleIsNoData(t *testing.T) {
	router := newRouter(seededStore(t), nil, "sound")

	rec := do(t, router, http.MethodGet, "/api/aggregation?service_types=lights")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "no_data", resp.Status)
	assert.Equal(t, msgNoData, resp.Message)
	assert.Nil(t, resp.Chart)
}

func TestStoreFailureIsGeneric(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("WITH facts AS").WillReturnError(errors.New("disk on fire"))

	router := newRouter(database.NewStoreWithoutMigrations(db), nil)
	rec := do(t, router, http.MethodGet, "/api/aggregation")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, msgUnavailable, resp.Message)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestRefreshEndpoint(t *testing.T) {
	store := seededStore(t)

	ok := &stubRefresher{}
	rec := do(t, newRouter(store, ok), http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ok.calls)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)

	broken := &stubRefresher{err: errors.New("load phase failed: constraint")}
	rec = do(t, newRouter(store, broken), http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, msgRefreshFailed, resp.Message)
	assert.NotContains(t, rec.Body.String(), "constraint")

	// refresh is POST only
	rec = do(t, newRouter(store, ok), http.MethodGet, "/api/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRawCSVExport(t *testing.T) {
	router := newRouter(seededStore(t), nil)

	rec := do(t, router, http.MethodGet, "/export/raw.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "raw_data.csv")

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, rawHeader, records[0])
}

func TestFlowsCSVExportHasHeaderWhenEmpty(t *testing.T) {
	router := newRouter(seededStore(t), nil, "sound")

	rec := do(t, router, http.MethodGet, "/export/flows.csv?service_types=lights")
	require.Equal(t, http.StatusOK, rec.Code)
	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{flowHeader}, records)
}

func TestRawXLSXExport(t *testing.T) {
	router := newRouter(seededStore(t), nil)

	rec := do(t, router, http.MethodGet, "/export/raw.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)

	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Raw Data")
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, rawHeader, rows[0])
}

func TestDashboardPage(t *testing.T) {
	router := newRouter(seededStore(t), nil)

	rec := do(t, router, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<option value="Alice">Alice</option>`)
	assert.Contains(t, body, `value="2024-01-07"`)
	assert.NotContains(t, body, "No data yet")
}

func TestMetricsAndCORS(t *testing.T) {
	router := newRouter(seededStore(t), nil)

	rec := do(t, router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodOptions, "/api/aggregation")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
