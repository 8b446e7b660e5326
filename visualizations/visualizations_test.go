package visualizations

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/ministry_analytics/database"
)

// option is the part of an ECharts option the tests look at
type option struct {
	Title struct {
		Text string `json:"text"`
	} `json:"title"`
	XAxis     []axis `json:"xAxis"`
	YAxis     []axis `json:"yAxis"`
	VisualMap []struct {
		Max float64 `json:"max"`
	} `json:"visualMap"`
	Series []struct {
		Name   string   `json:"name"`
		Type   string   `json:"type"`
		Stack  string   `json:"stack"`
		Radius []string `json:"radius"`
		Data   []point  `json:"data"`
		Links  []struct {
			Source string  `json:"source"`
			Target string  `json:"target"`
			Value  float64 `json:"value"`
		} `json:"links"`
	} `json:"series"`
}

type axis struct {
	Type string   `json:"type"`
	Name string   `json:"name"`
	Data []string `json:"data"`
}

type point struct {
	Name       string          `json:"name"`
	Value      json.RawMessage `json:"value"`
	SymbolSize float64         `json:"symbolSize"`
	ItemStyle  struct {
		Color string `json:"color"`
	} `json:"itemStyle"`
	Label struct {
		Formatter string `json:"formatter"`
	} `json:"label"`
}

func decodeOption(t *testing.T, chart Chart) option {
	t.Helper()
	raw, err := json.Marshal(chart)
	require.NoError(t, err)
	var wire struct {
		Option option `json:"option"`
	}
	require.NoError(t, json.Unmarshal(raw, &wire))
	return wire.Option
}

func values(t *testing.T, points []point) []float64 {
	t.Helper()
	out := make([]float64, len(points))
	for i, p := range points {
		require.NoError(t, json.Unmarshal(p.Value, &out[i]))
	}
	return out
}

func stats(n int) []database.VolunteerStats {
	var rows []database.VolunteerStats
	for i := 0; i < n; i++ {
		rows = append(rows, database.VolunteerStats{VolunteerID: fmt.Sprintf("V%02d", i), TotalServices: 100 - i, ServiceTypesCount: 1})
	}
	return rows
}

func TestRankingBar_TopFifteenWithMedals(t *testing.T) {
	chart := RankingBar(stats(20), "Top volunteers")
	require.Len(t, chart.Categories, RankingTopN)
	assert.Equal(t, "V00", chart.Categories[RankingTopN-1])

	opt := decodeOption(t, chart)
	assert.Equal(t, "Top volunteers", opt.Title.Text)
	require.Len(t, opt.YAxis, 1)
	assert.Equal(t, "category", opt.YAxis[0].Type)
	assert.Equal(t, chart.Categories, opt.YAxis[0].Data)
	assert.Equal(t, "value", opt.XAxis[0].Type)

	require.Len(t, opt.Series, 1)
	data := opt.Series[0].Data
	require.Len(t, data, RankingTopN)
	last := len(data) - 1
	assert.Equal(t, ColorGold, data[last].ItemStyle.Color)
	assert.Equal(t, ColorSilver, data[last-1].ItemStyle.Color)
	assert.Equal(t, ColorBronze, data[last-2].ItemStyle.Color)
	assert.Equal(t, ColorDefault, data[last-3].ItemStyle.Color)
	assert.Equal(t, "100 services, 1 types", data[last].Label.Formatter)
	assert.Equal(t, 100.0, values(t, data)[last])
}

func TestBuilders_EmptyInput(t *testing.T) {
	for name, chart := range map[string]Chart{
		"ranking":    RankingBar(nil, "x"),
		"pie":        ServiceTypePie(nil, "x"),
		"weekly":     WeeklyTrendLines(nil, "x"),
		"heatmap":    ActivityHeatmap(nil, "x"),
		"comparison": ComparisonBar(nil, nil),
		"transition": TransitionSankey(nil, "x"),
		"network":    CoServiceNetwork(nil, nil),
		"forecast":   ForecastLine(nil),
		"path":       PathLine(nil, "Alice"),
	} {
		assert.True(t, chart.Empty, name)
		assert.Empty(t, decodeOption(t, chart).Series, name)
	}
	chart := MonthlyFlowSankey(nil, "Monthly")
	assert.Equal(t, KindSankey, chart.Kind)
	assert.Equal(t, "Monthly", decodeOption(t, chart).Title.Text)
}

func TestServiceTypePie(t *testing.T) {
	chart := ServiceTypePie([]database.ServiceTypeShare{
		{ServiceTypeID: "sound", TotalServices: 4, UniqueVolunteers: 2, Percentage: 57.14},
		{ServiceTypeID: "camera", TotalServices: 3, UniqueVolunteers: 2, Percentage: 42.86},
	}, "Distribution")
	assert.False(t, chart.Empty)

	opt := decodeOption(t, chart)
	require.Len(t, opt.Series, 1)
	assert.Equal(t, "pie", opt.Series[0].Type)
	assert.Equal(t, []string{"40%", "70%"}, opt.Series[0].Radius)
	require.Len(t, opt.Series[0].Data, 2)
	assert.Equal(t, "sound: 4 services, 2 volunteers (57.1%)", opt.Series[0].Data[0].Name)
	assert.Equal(t, []float64{4, 3}, values(t, opt.Series[0].Data))
}

func weekRow(vol string, week int, n int) database.WeeklyVolunteerCount {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*week)
	y, w := start.ISOWeek()
	return database.WeeklyVolunteerCount{VolunteerID: vol, WeekStart: start, WeekLabel: fmt.Sprintf("%d-W%02d", y, w), ServicesCount: n}
}

func TestWeeklyTrendLines(t *testing.T) {
	chart := WeeklyTrendLines([]database.WeeklyVolunteerCount{
		weekRow("Bob", 1, 1),
		weekRow("Alice", 0, 2),
		weekRow("Bob", 0, 1),
	}, "Weekly")
	assert.Equal(t, []string{"2024-W01", "2024-W02"}, chart.Categories)

	opt := decodeOption(t, chart)
	assert.Equal(t, chart.Categories, opt.XAxis[0].Data)
	require.Len(t, opt.Series, 2)
	assert.Equal(t, "line", opt.Series[0].Type)
	assert.Equal(t, []float64{3, 1}, values(t, opt.Series[0].Data))
	assert.Equal(t, []float64{2, 1}, values(t, opt.Series[1].Data))
}

func TestActivityHeatmap_TopTwentyZeroFilled(t *testing.T) {
	var rows []database.WeeklyVolunteerCount
	for i := 0; i < 25; i++ {
		rows = append(rows, weekRow(fmt.Sprintf("V%02d", i), i%2, 30-i))
	}
	chart := ActivityHeatmap(rows, "Heatmap")
	assert.Len(t, chart.Categories, 2)

	opt := decodeOption(t, chart)
	require.Len(t, opt.YAxis, 1)
	assert.Len(t, opt.YAxis[0].Data, HeatmapTopN)
	assert.Equal(t, "V00", opt.YAxis[0].Data[0])
	require.Len(t, opt.VisualMap, 1)
	assert.Equal(t, 30.0, opt.VisualMap[0].Max)

	require.Len(t, opt.Series, 1)
	cells := opt.Series[0].Data
	require.Len(t, cells, HeatmapTopN*2)
	var first, second, third [3]float64
	require.NoError(t, json.Unmarshal(cells[0].Value, &first))
	require.NoError(t, json.Unmarshal(cells[1].Value, &second))
	require.NoError(t, json.Unmarshal(cells[2].Value, &third))
	assert.Equal(t, [3]float64{0, 0, 30}, first)
	assert.Equal(t, [3]float64{1, 0, 0}, second)
	assert.Equal(t, [3]float64{0, 1, 0}, third)
}

func TestComparisonBar_UnionOfTopTen(t *testing.T) {
	recent := []database.VolunteerStats{{VolunteerID: "Carol", TotalServices: 2}}
	quarter := stats(12)
	chart := ComparisonBar(recent, quarter)
	require.Len(t, chart.Categories, 11)
	assert.Equal(t, "Carol", chart.Categories[10])

	opt := decodeOption(t, chart)
	require.Len(t, opt.Series, 2)
	assert.Equal(t, "Last 4 weeks", opt.Series[0].Name)
	assert.Equal(t, 2.0, values(t, opt.Series[0].Data)[10])
	assert.Equal(t, 0.0, values(t, opt.Series[1].Data)[10])
}

func TestServiceTypeStack_StacksEveryType(t *testing.T) {
	chart := ServiceTypeStack([]database.ServiceTypeCount{
		{Period: "2024-01", ServiceTypeID: "sound", ServiceCount: 2},
		{Period: "2024-02", ServiceTypeID: "camera", ServiceCount: 1},
	}, "Roles")
	assert.Equal(t, []string{"2024-01", "2024-02"}, chart.Categories)

	opt := decodeOption(t, chart)
	require.Len(t, opt.Series, 2)
	for _, s := range opt.Series {
		assert.Equal(t, "services", s.Stack)
	}
	assert.Equal(t, []float64{2, 0}, values(t, opt.Series[0].Data))
	assert.Equal(t, []float64{0, 1}, values(t, opt.Series[1].Data))
}

func TestVolunteerCountLine_LabelsChange(t *testing.T) {
	up := 50.0
	chart := VolunteerCountLine([]database.VolunteerCountPoint{
		{Period: "2024-01", VolunteerCount: 2},
		{Period: "2024-02", VolunteerCount: 3, ChangePct: &up},
	}, "Volunteers")

	data := decodeOption(t, chart).Series[0].Data
	require.Len(t, data, 2)
	assert.Equal(t, "n/a", data[0].Name)
	assert.Equal(t, "+50.0%", data[1].Name)
}

func TestForecastLine_MarksLowConfidence(t *testing.T) {
	week := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	chart := ForecastLine([]database.ForecastPoint{
		{WeekStart: week, PredictedServices: 5, LowerBound: 3, UpperBound: 7},
	})
	assert.Equal(t, "Participation forecast (low confidence)", chart.Title)
	assert.Equal(t, []string{"2024-03-04"}, chart.Categories)

	opt := decodeOption(t, chart)
	require.Len(t, opt.Series, 3)
	assert.Equal(t, []float64{3}, values(t, opt.Series[1].Data))
	assert.Equal(t, []float64{7}, values(t, opt.Series[2].Data))
}

func TestInsightsAndPerformers(t *testing.T) {
	insights := Insights(stats(2), nil)
	require.Len(t, insights, 4)
	assert.Equal(t, "V00", insights[0].Value)
	assert.Equal(t, "No data", insights[1].Value)
	assert.Equal(t, "avg 99.5 services", insights[2].Detail)
	assert.Equal(t, "0 volunteers", insights[3].Value)

	rows := TopPerformers(stats(12))
	require.Len(t, rows, PerformersTopN)
	assert.Equal(t, "gold", rows[0].Badge)
	assert.Equal(t, "bronze", rows[2].Badge)
	assert.Equal(t, "", rows[3].Badge)
}

func TestTransitionSankey_NoSelfLoops(t *testing.T) {
	chart := TransitionSankey([]database.Transition{
		{From: "sound", To: "sound", VolunteerCount: 2},
		{From: "sound", To: "camera", VolunteerCount: 1},
		{From: "sound", To: "camera", VolunteerCount: 1},
	}, "Transitions")

	opt := decodeOption(t, chart)
	require.Len(t, opt.Series, 1)
	assert.Equal(t, "sankey", opt.Series[0].Type)
	assert.Len(t, opt.Series[0].Data, 3)
	require.Len(t, opt.Series[0].Links, 2)
	for _, l := range opt.Series[0].Links {
		assert.NotEqual(t, l.Source, l.Target)
	}
	assert.Equal(t, 2.0, opt.Series[0].Links[1].Value)
}

func TestMinistryFlowSankey_SidesStayApart(t *testing.T) {
	chart := MinistryFlowSankey([]database.MinistryFlow{
		{Direction: "in", Counterpart: "camera", VolunteerCount: 2},
		{Direction: "out", Counterpart: "camera", VolunteerCount: 1},
	}, "sound")
	assert.Equal(t, "Flow through sound", chart.Title)

	links := decodeOption(t, chart).Series[0].Links
	require.Len(t, links, 2)
	assert.Equal(t, "camera (in)", links[0].Source)
	assert.Equal(t, "sound", links[0].Target)
	assert.Equal(t, "camera (out)", links[1].Target)
}

func TestCoServiceNetwork(t *testing.T) {
	chart := CoServiceNetwork(
		[]database.VolunteerRank{{VolunteerID: "Alice", Score: 0.5, Category: "high"}},
		[]database.CoServiceEdge{{VolunteerA: "Alice", VolunteerB: "Bob", SharedDates: 3}},
	)
	opt := decodeOption(t, chart)
	require.Len(t, opt.Series, 1)
	assert.Equal(t, "graph", opt.Series[0].Type)

	nodes := opt.Series[0].Data
	require.Len(t, nodes, 2)
	assert.Equal(t, "Alice", nodes[0].Name)
	assert.Equal(t, 40.0, nodes[0].SymbolSize)
	assert.Equal(t, "Bob", nodes[1].Name)

	require.Len(t, opt.Series[0].Links, 1)
	assert.Equal(t, "Alice", opt.Series[0].Links[0].Source)
	assert.Equal(t, "Bob", opt.Series[0].Links[0].Target)
	assert.Equal(t, 3.0, opt.Series[0].Links[0].Value)
}

func TestFormatPercent(t *testing.T) {
	v := -50.0
	assert.Equal(t, "-50.0%", FormatPercent(&v))
	assert.Equal(t, "n/a", FormatPercent(nil))
}
