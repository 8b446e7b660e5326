package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
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

func newTestTransformer(t *testing.T, cfg *config.Config) *Transformer {
	t.Helper()
	tr, err := NewTransformer(cfg, utils.NewDiscardLogger())
	require.NoError(t, err)
	tr.now = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }
	return tr
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTransform_Scenario(t *testing.T) {
	tr := newTestTransformer(t, testConfig())
	sheet := &models.RawSheet{Rows: [][]string{
		{"2024-01-01", "Alice", "Alice", "", ""},
		{"2024-01-08", "Bob", "", "Bob", ""},
	}}

	data, err := tr.Transform(sheet)
	require.NoError(t, err)
	require.Len(t, data.Facts, 2)

	assert.Equal(t, date(2024, 1, 1), data.Facts[0].ServiceDate)
	assert.Equal(t, "Alice", data.Facts[0].VolunteerID)
	assert.Equal(t, "sound", data.Facts[0].ServiceTypeID)
	assert.Equal(t, "2024-01-01:sound:Alice:1", data.Facts[0].FactID)

	assert.Equal(t, date(2024, 1, 8), data.Facts[1].ServiceDate)
	assert.Equal(t, "Bob", data.Facts[1].VolunteerID)
	assert.Equal(t, "camera", data.Facts[1].ServiceTypeID)

	assert.Len(t, data.Dates, 2)
	assert.Len(t, data.Volunteers, 2)
	assert.Len(t, data.SourceRows, 2)
	assert.Equal(t, []models.ServiceType{
		{ID: "sound", ColumnKey: "C", SortOrder: 0},
		{ID: "camera", ColumnKey: "D", SortOrder: 1},
	}, data.ServiceTypes)
	assert.Equal(t, 0, data.Stats.RowsSkipped)
}

func TestTransform_UnparseableDateProducesNoFacts(t *testing.T) {
	tr := newTestTransformer(t, testConfig())
	data, err := tr.Transform(&models.RawSheet{Rows: [][]string{
		{"Date", "Name", "Sound", "Camera"},
		{"not a date", "", "Alice", "Bob"},
		{"", "", "Carol", ""},
		{"2024-03-03", "", "Dave", ""},
	}})
	require.NoError(t, err)

	require.Len(t, data.Facts, 1)
	assert.Equal(t, "Dave", data.Facts[0].VolunteerID)
	assert.Equal(t, 3, data.Stats.RowsSkipped)
	assert.Equal(t, 4, data.Stats.RowsRead)
}

func TestTransform_DeduplicatesKeepingLatestRow(t *testing.T) {
	cfg := testConfig()
	cfg.Columns.Roles = append(cfg.Columns.Roles, config.RoleColumn{Key: "E", ServiceType: "sound"})
	tr := newTestTransformer(t, cfg)

	data, err := tr.Transform(&models.RawSheet{Rows: [][]string{
		{"2024-01-07", "", "Alice", "", "Alice"},
		{"2024-01-07", "", "Alice", "", ""},
	}})
	require.NoError(t, err)

	require.Len(t, data.Facts, 1)
	assert.Equal(t, 2, data.Facts[0].RowNumber)
	assert.Equal(t, "2024-01-07:sound:Alice:2", data.Facts[0].FactID)
	assert.Equal(t, 3, data.Stats.CandidateFacts)
	assert.Equal(t, 2, data.Stats.DuplicatesDropped)

	seen := map[string]bool{}
	for _, f := range data.Facts {
		assert.False(t, seen[f.Key()], "duplicate key %s", f.Key())
		seen[f.Key()] = true
	}
}

func TestTransform_ValidRowWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Columns.Roles[1].ValidRows = &config.RowRange{From: 2, To: 2}
	tr := newTestTransformer(t, cfg)

	data, err := tr.Transform(&models.RawSheet{Rows: [][]string{
		{"2024-01-07", "", "", "Bob"},
		{"2024-01-14", "", "", "Bob"},
		{"2024-01-21", "", "", "Bob"},
	}})
	require.NoError(t, err)

	require.Len(t, data.Facts, 1)
	assert.Equal(t, date(2024, 1, 14), data.Facts[0].ServiceDate)
}

func TestTransform_ShortRowsReadAsEmpty(t *testing.T) {
	tr := newTestTransformer(t, testConfig())
	data, err := tr.Transform(&models.RawSheet{Rows: [][]string{
		{"2024-01-07", "", "Alice"},
	}})
	require.NoError(t, err)
	require.Len(t, data.Facts, 1)
	assert.Equal(t, "sound", data.Facts[0].ServiceTypeID)
}

func TestTransform_AliasesResolveToCanonicalVolunteer(t *testing.T) {
	cfg := testConfig()
	cfg.Volunteers.Aliases = map[string]string{"Bobby": "Bob"}
	tr := newTestTransformer(t, cfg)

	data, err := tr.Transform(&models.RawSheet{Rows: [][]string{
		{"2024-01-07", "", "Bobby", ""},
		{"2024-01-14", "", "Bob", ""},
	}})
	require.NoError(t, err)

	require.Len(t, data.Facts, 2)
	assert.Equal(t, "Bob", data.Facts[0].VolunteerID)
	require.Len(t, data.Volunteers, 1)
	assert.Equal(t, date(2024, 1, 7), data.Volunteers[0].FirstSeen)
	assert.Equal(t, date(2024, 1, 14), data.Volunteers[0].LastSeen)
	assert.Equal(t, []models.VolunteerAlias{{Alias: "Bobby", VolunteerID: "Bob"}}, data.Aliases)
}

func TestTransform_WithoutAliasesSpellingsStayDistinct(t *testing.T) {
	tr := newTestTransformer(t, testConfig())
	data, err := tr.Transform(&models.RawSheet{Rows: [][]string{
		{"2024-01-07", "", "Bobby", "Bob"},
	}})
	require.NoError(t, err)
	assert.Len(t, data.Volunteers, 2)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Mary Jane", NormalizeName("  Mary　 Jane "))
	assert.Equal(t, "王 小明", NormalizeName("王　小明"))
	assert.Equal(t, "", NormalizeName(" 　 "))
}

func TestParseServiceDate(t *testing.T) {
	cases := map[string]time.Time{
		"2024-01-07":  date(2024, 1, 7),
		"2024/01/07":  date(2024, 1, 7),
		"1/7/2024":    date(2024, 1, 7),
		"Jan 7, 2024": date(2024, 1, 7),
		"2024年1月7日":   date(2024, 1, 7),
		"45298":       date(2024, 1, 7),
		" 2024-01-07": date(2024, 1, 7),
	}
	for in, want := range cases {
		got, ok := ParseServiceDate(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "Date", "hello"} {
		_, ok := ParseServiceDate(in)
		assert.False(t, ok, in)
	}
}

func TestRowChecksum(t *testing.T) {
	a := RowChecksum([]string{"2024-01-07", " Alice "}, 3)
	b := RowChecksum([]string{"2024-01-07", "Alice", "", ""}, 3)
	assert.Equal(t, a, b)
	assert.Len(t, a, 40)

	c := RowChecksum([]string{"2024-01-07", "Alicia"}, 3)
	assert.NotEqual(t, a, c)
}

func TestDeduplicate_Ordering(t *testing.T) {
	facts := Deduplicate([]models.ServiceFact{
		{VolunteerID: "b", ServiceTypeID: "sound", ServiceDate: date(2024, 1, 2)},
		{VolunteerID: "a", ServiceTypeID: "sound", ServiceDate: date(2024, 1, 2)},
		{VolunteerID: "z", ServiceTypeID: "camera", ServiceDate: date(2024, 1, 2)},
		{VolunteerID: "z", ServiceTypeID: "sound", ServiceDate: date(2024, 1, 1)},
	})
	require.Len(t, facts, 4)
	assert.Equal(t, "z", facts[0].VolunteerID)
	assert.Equal(t, "camera", facts[1].ServiceTypeID)
	assert.Equal(t, "a", facts[2].VolunteerID)
	assert.Equal(t, "b", facts[3].VolunteerID)
}

func TestNewDateDimension(t *testing.T) {
	d := NewDateDimension(date(2024, 12, 30))
	assert.Equal(t, 2024, d.Year)
	assert.Equal(t, 4, d.Quarter)
	assert.Equal(t, 12, d.Month)
	assert.Equal(t, 2025, d.ISOYear)
	assert.Equal(t, 1, d.ISOWeek)
	assert.Equal(t, 1, d.DayOfWeek)
}
