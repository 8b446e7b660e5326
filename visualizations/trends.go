package visualizations

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/LilVoxy/ministry_analytics/database"
)

// AggregationLine plots services and distinct volunteers per bucket
func AggregationLine(rows []database.PeriodAggregate, title string) Chart {
	if len(rows) == 0 {
		return emptyChart(KindLine, title)
	}
	var periods []string
	services := lineSeries{name: "Services", options: []charts.SeriesOpts{colored(ColorServices)}}
	volunteers := lineSeries{name: "Volunteers", options: []charts.SeriesOpts{colored(ColorVolunteers)}}
	for _, r := range rows {
		periods = append(periods, r.Period)
		services.values = append(services.values, float64(r.ServiceCount))
		volunteers.values = append(volunteers.values, float64(r.VolunteerCount))
	}
	return lineChart(title, "Period", periods, services, volunteers)
}

// VolunteerTrendLine plots one volunteer's services per bucket
func VolunteerTrendLine(rows []database.PeriodCount, volunteerID string) Chart {
	title := "Services by " + volunteerID
	if len(rows) == 0 {
		return emptyChart(KindLine, title)
	}
	var periods []string
	s := lineSeries{name: volunteerID, options: []charts.SeriesOpts{colored(ColorServices)}}
	for _, r := range rows {
		periods = append(periods, r.Period)
		s.values = append(s.values, float64(r.ServiceCount))
	}
	return lineChart(title, "Period", periods, s)
}

// ServiceTypeStack plots per-bucket counts stacked by service type
func ServiceTypeStack(rows []database.ServiceTypeCount, title string) Chart {
	if len(rows) == 0 {
		return emptyChart(KindBar, title)
	}
	var periods, types []string
	seenPeriod := make(map[string]bool)
	seenType := make(map[string]bool)
	counts := make(map[[2]string]int)
	for _, r := range rows {
		if !seenPeriod[r.Period] {
			seenPeriod[r.Period] = true
			periods = append(periods, r.Period)
		}
		if !seenType[r.ServiceTypeID] {
			seenType[r.ServiceTypeID] = true
			types = append(types, r.ServiceTypeID)
		}
		counts[[2]string{r.Period, r.ServiceTypeID}] += r.ServiceCount
	}

	bar := verticalBar(title, "Period", periods)
	for _, t := range types {
		data := make([]opts.BarData, len(periods))
		for i, p := range periods {
			data[i] = opts.BarData{Value: counts[[2]string{p, t}]}
		}
		bar.AddSeries(t, data, charts.WithBarChartOpts(opts.BarChart{Stack: "services"}))
	}
	return finish(KindBar, title, periods, bar)
}

func verticalBar(title, xName string, categories []string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		titled(title),
		axisTooltip(),
		legend(),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: xName}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
	)
	bar.SetXAxis(categories)
	return bar
}

// VolunteerCountLine plots active volunteers per bucket labelled with the change
func VolunteerCountLine(rows []database.VolunteerCountPoint, title string) Chart {
	if len(rows) == 0 {
		return emptyChart(KindLine, title)
	}
	var periods []string
	s := lineSeries{name: "Volunteers", options: []charts.SeriesOpts{
		colored(ColorVolunteers),
		charts.WithLabelOpts(opts.Label{Show: true, Position: "top", Formatter: "{b}"}),
	}}
	for _, r := range rows {
		periods = append(periods, r.Period)
		s.values = append(s.values, float64(r.VolunteerCount))
		s.names = append(s.names, FormatPercent(r.ChangePct))
	}
	return lineChart(title, "Period", periods, s)
}

// CumulativeLine plots running totals of services and volunteers
func CumulativeLine(rows []database.CumulativePoint, title string) Chart {
	if len(rows) == 0 {
		return emptyChart(KindLine, title)
	}
	var periods []string
	services := lineSeries{name: "Cumulative services", options: []charts.SeriesOpts{colored(ColorServices)}}
	volunteers := lineSeries{name: "Cumulative volunteers", options: []charts.SeriesOpts{colored(ColorVolunteers)}}
	for _, r := range rows {
		periods = append(periods, r.Period)
		services.values = append(services.values, float64(r.CumulativeServices))
		volunteers.values = append(volunteers.values, float64(r.CumulativeVolunteers))
	}
	return lineChart(title, "Period", periods, services, volunteers)
}

// JoinLeaveBar shows joiners, leavers and retained volunteers per bucket
func JoinLeaveBar(rows []database.JoinLeavePoint, title string) Chart {
	if len(rows) == 0 {
		return emptyChart(KindBar, title)
	}
	periods := make([]string, len(rows))
	joined := make([]opts.BarData, len(rows))
	left := make([]opts.BarData, len(rows))
	retained := make([]opts.BarData, len(rows))
	for i, r := range rows {
		periods[i] = r.Period
		joined[i] = opts.BarData{Value: r.NewVolunteers}
		left[i] = opts.BarData{Value: r.LeftVolunteers}
		retained[i] = opts.BarData{Value: r.Retained}
	}
	bar := verticalBar(title, "Period", periods)
	bar.AddSeries("New", joined, colored(ColorDefault))
	bar.AddSeries("Left", left, colored(ColorRecent))
	bar.AddSeries("Retained", retained, colored(ColorQuarter))
	return finish(KindBar, title, periods, bar)
}

// ForecastLine plots the predicted weekly services with their interval
func ForecastLine(points []database.ForecastPoint) Chart {
	title := "Participation forecast"
	if len(points) == 0 {
		return emptyChart(KindLine, title)
	}
	if !points[0].IsReliable {
		title += " (low confidence)"
	}

	bound := []charts.SeriesOpts{
		colored(ColorSilver),
		charts.WithLineStyleOpts(opts.LineStyle{Color: ColorSilver, Type: "dashed"}),
	}
	var weeks []string
	predicted := lineSeries{name: "Predicted", options: []charts.SeriesOpts{colored(ColorServices)}}
	lower := lineSeries{name: "Lower bound", options: bound}
	upper := lineSeries{name: "Upper bound", options: bound}
	for _, p := range points {
		weeks = append(weeks, p.WeekStart.Format("2006-01-02"))
		predicted.values = append(predicted.values, p.PredictedServices)
		lower.values = append(lower.values, p.LowerBound)
		upper.values = append(upper.values, p.UpperBound)
	}
	return lineChart(title, "Week", weeks, predicted, lower, upper)
}
