package visualizations

import (
	"fmt"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/LilVoxy/ministry_analytics/database"
)

const (
	RankingTopN    = 15
	HeatmapTopN    = 20
	ComparisonTopN = 10
	PerformersTopN = 10
)

// RankingBar is a horizontal bar chart of the busiest volunteers; rows must be
// sorted best first. Category axes run bottom up, so the best volunteer is
// the last category and sits on top.
func RankingBar(rows []database.VolunteerStats, title string) Chart {
	if len(rows) == 0 {
		return emptyChart(KindBar, title)
	}
	if len(rows) > RankingTopN {
		rows = rows[:RankingTopN]
	}

	names := make([]string, len(rows))
	data := make([]opts.BarData, len(rows))
	for i, r := range rows {
		at := len(rows) - 1 - i
		names[at] = r.VolunteerID
		data[at] = opts.BarData{
			Value:     r.TotalServices,
			ItemStyle: &opts.ItemStyle{Color: rankColor(i + 1)},
			Label: &opts.Label{
				Show:      true,
				Position:  "right",
				Formatter: fmt.Sprintf("%d services, %d types", r.TotalServices, r.ServiceTypesCount),
			},
		}
	}

	bar := horizontalBar(title, "Services", "Volunteer", names)
	bar.AddSeries("Services", data)
	return finish(KindBar, title, names, bar)
}

func horizontalBar(title, xName, yName string, categories []string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		titled(title),
		axisTooltip(),
		legend(),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xName}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: yName, Data: categories}),
	)
	return bar
}

// ServiceTypePie shows each service type's share of the services
func ServiceTypePie(rows []database.ServiceTypeShare, title string) Chart {
	if len(rows) == 0 {
		return emptyChart(KindPie, title)
	}
	data := make([]opts.PieData, len(rows))
	for i, r := range rows {
		data[i] = opts.PieData{
			Name:  fmt.Sprintf("%s: %d services, %d volunteers (%.1f%%)", r.ServiceTypeID, r.TotalServices, r.UniqueVolunteers, r.Percentage),
			Value: r.TotalServices,
		}
	}
	pie := charts.NewPie()
	pie.SetGlobalOptions(titled(title), itemTooltip())
	pie.AddSeries("Services", data, charts.WithPieChartOpts(opts.PieChart{Radius: []string{"40%", "70%"}}))
	return finish(KindPie, title, nil, pie)
}

type weekKey struct {
	label string
	start int64
}

func sortedWeeks(rows []database.WeeklyVolunteerCount) []string {
	seen := make(map[string]weekKey)
	for _, r := range rows {
		seen[r.WeekLabel] = weekKey{label: r.WeekLabel, start: r.WeekStart.Unix()}
	}
	weeks := make([]weekKey, 0, len(seen))
	for _, w := range seen {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].start < weeks[j].start })
	labels := make([]string, len(weeks))
	for i, w := range weeks {
		labels[i] = w.label
	}
	return labels
}

// WeeklyTrendLines plots total services and active volunteers per week
func WeeklyTrendLines(rows []database.WeeklyVolunteerCount, title string) Chart {
	if len(rows) == 0 {
		return emptyChart(KindLine, title)
	}

	services := make(map[string]int)
	volunteers := make(map[string]map[string]bool)
	for _, r := range rows {
		services[r.WeekLabel] += r.ServicesCount
		if volunteers[r.WeekLabel] == nil {
			volunteers[r.WeekLabel] = make(map[string]bool)
		}
		volunteers[r.WeekLabel][r.VolunteerID] = true
	}

	weeks := sortedWeeks(rows)
	total := lineSeries{name: "Total services", options: []charts.SeriesOpts{colored(ColorServices)}}
	active := lineSeries{name: "Active volunteers", options: []charts.SeriesOpts{colored(ColorVolunteers)}}
	for _, w := range weeks {
		total.values = append(total.values, float64(services[w]))
		active.values = append(active.values, float64(len(volunteers[w])))
	}
	return lineChart(title, "Week", weeks, total, active)
}

// ActivityHeatmap shows services per volunteer and week for the most active volunteers
func ActivityHeatmap(rows []database.WeeklyVolunteerCount, title string) Chart {
	if len(rows) == 0 {
		return emptyChart(KindHeatmap, title)
	}

	totals := make(map[string]int)
	cells := make(map[[2]string]int)
	for _, r := range rows {
		totals[r.VolunteerID] += r.ServicesCount
		cells[[2]string{r.VolunteerID, r.WeekLabel}] += r.ServicesCount
	}
	volunteers := make([]string, 0, len(totals))
	for v := range totals {
		volunteers = append(volunteers, v)
	}
	sort.Slice(volunteers, func(i, j int) bool {
		if totals[volunteers[i]] != totals[volunteers[j]] {
			return totals[volunteers[i]] > totals[volunteers[j]]
		}
		return volunteers[i] < volunteers[j]
	})
	if len(volunteers) > HeatmapTopN {
		volunteers = volunteers[:HeatmapTopN]
	}

	weeks := sortedWeeks(rows)
	peak := 1
	var data []opts.HeatMapData
	for y, v := range volunteers {
		for x, week := range weeks {
			n := cells[[2]string{v, week}]
			if n > peak {
				peak = n
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{x, y, n}})
		}
	}

	heatmap := charts.NewHeatMap()
	heatmap.SetGlobalOptions(
		titled(title),
		itemTooltip(),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Week"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "Volunteer", Data: volunteers}),
		charts.WithVisualMapOpts(opts.VisualMap{Min: 0, Max: float32(peak)}),
	)
	heatmap.SetXAxis(weeks)
	heatmap.AddSeries("Services", data)
	return finish(KindHeatmap, title, weeks, heatmap)
}

// ComparisonBar compares the top volunteers of the last 4 weeks with the last quarter
func ComparisonBar(recent, quarter []database.VolunteerStats) Chart {
	const title = "Last 4 weeks vs last quarter"
	if len(recent) == 0 && len(quarter) == 0 {
		return emptyChart(KindBar, title)
	}
	if len(recent) > ComparisonTopN {
		recent = recent[:ComparisonTopN]
	}
	if len(quarter) > ComparisonTopN {
		quarter = quarter[:ComparisonTopN]
	}

	recentBy := make(map[string]int)
	quarterBy := make(map[string]int)
	var names []string
	add := func(name string) {
		if _, ok := recentBy[name]; ok {
			return
		}
		if _, ok := quarterBy[name]; ok {
			return
		}
		names = append(names, name)
	}
	for _, r := range quarter {
		add(r.VolunteerID)
		quarterBy[r.VolunteerID] = r.TotalServices
	}
	for _, r := range recent {
		add(r.VolunteerID)
		recentBy[r.VolunteerID] = r.TotalServices
	}

	recentData := make([]opts.BarData, len(names))
	quarterData := make([]opts.BarData, len(names))
	for i, n := range names {
		recentData[i] = opts.BarData{Value: recentBy[n]}
		quarterData[i] = opts.BarData{Value: quarterBy[n]}
	}
	bar := horizontalBar(title, "Services", "", names)
	bar.AddSeries("Last 4 weeks", recentData, colored(ColorRecent))
	bar.AddSeries("Last quarter", quarterData, colored(ColorQuarter))
	return finish(KindBar, title, names, bar)
}

// Insight is one headline number on the overview tab
type Insight struct {
	Title  string `json:"title"`
	Value  string `json:"value"`
	Detail string `json:"detail"`
}

// Insights returns the champion and active-volunteer cards for both windows
func Insights(recent, quarter []database.VolunteerStats) []Insight {
	return []Insight{
		champion("4-week champion", recent),
		champion("Quarter champion", quarter),
		activity("Active in 4 weeks", recent),
		activity("Active in the quarter", quarter),
	}
}

func champion(title string, rows []database.VolunteerStats) Insight {
	if len(rows) == 0 {
		return Insight{Title: title, Value: "No data"}
	}
	return Insight{Title: title, Value: rows[0].VolunteerID, Detail: fmt.Sprintf("%d services", rows[0].TotalServices)}
}

func activity(title string, rows []database.VolunteerStats) Insight {
	if len(rows) == 0 {
		return Insight{Title: title, Value: "0 volunteers"}
	}
	total := 0
	for _, r := range rows {
		total += r.TotalServices
	}
	return Insight{
		Title:  title,
		Value:  fmt.Sprintf("%d volunteers", len(rows)),
		Detail: fmt.Sprintf("avg %.1f services", float64(total)/float64(len(rows))),
	}
}

// PerformerRow is one line of the top performers table
type PerformerRow struct {
	Rank              int      `json:"rank"`
	Badge             string   `json:"badge"` // gold, silver, bronze or empty
	VolunteerID       string   `json:"volunteer_id"`
	TotalServices     int      `json:"total_services"`
	ServiceTypesCount int      `json:"service_types_count"`
	ServiceTypes      []string `json:"service_types"`
}

// TopPerformers formats the first rows of a ranking as a table
func TopPerformers(rows []database.VolunteerStats) []PerformerRow {
	if len(rows) > PerformersTopN {
		rows = rows[:PerformersTopN]
	}
	badges := []string{"gold", "silver", "bronze"}
	out := make([]PerformerRow, 0, len(rows))
	for i, r := range rows {
		row := PerformerRow{
			Rank:              i + 1,
			VolunteerID:       r.VolunteerID,
			TotalServices:     r.TotalServices,
			ServiceTypesCount: r.ServiceTypesCount,
			ServiceTypes:      r.ServiceTypes,
		}
		if i < len(badges) {
			row.Badge = badges[i]
		}
		out = append(out, row)
	}
	return out
}
