// Package visualizations turns query rows into ECharts options built with
// go-echarts. Builders are pure; empty input gives an empty chart.
package visualizations

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Kind is the chart type
type Kind string

const (
	KindBar     Kind = "bar"
	KindLine    Kind = "line"
	KindPie     Kind = "pie"
	KindSankey  Kind = "sankey"
	KindHeatmap Kind = "heatmap"
	KindNetwork Kind = "network"
)

// Colors shared by the builders
const (
	ColorGold    = "#FFD700"
	ColorSilver  = "#C0C0C0"
	ColorBronze  = "#CD7F32"
	ColorDefault = "#4CAF50"

	ColorRecent  = "#FF6B6B"
	ColorQuarter = "#4ECDC4"

	ColorServices   = "#2E86AB"
	ColorVolunteers = "#A23B72"
)

// Chart is one rendered ECharts option. Categories repeats the category axis
// in drawing order so callers do not have to dig through Option.
type Chart struct {
	Kind       Kind                   `json:"kind"`
	Title      string                 `json:"title"`
	Categories []string               `json:"categories,omitempty"`
	Empty      bool                   `json:"empty,omitempty"`
	Option     map[string]interface{} `json:"option"`
}

// echartsChart is implemented by every go-echarts chart type
type echartsChart interface {
	Validate()
	JSON() map[string]interface{}
}

func finish(kind Kind, title string, categories []string, c echartsChart) Chart {
	c.Validate()
	return Chart{Kind: kind, Title: title, Categories: categories, Option: c.JSON()}
}

func emptyChart(kind Kind, title string) Chart {
	var c echartsChart
	switch kind {
	case KindBar:
		c = charts.NewBar().SetGlobalOptions(titled(title))
	case KindLine:
		c = charts.NewLine().SetGlobalOptions(titled(title))
	case KindPie:
		c = charts.NewPie().SetGlobalOptions(titled(title))
	case KindHeatmap:
		c = charts.NewHeatMap().SetGlobalOptions(titled(title))
	case KindNetwork:
		c = charts.NewGraph().SetGlobalOptions(titled(title))
	default:
		c = charts.NewSankey().SetGlobalOptions(titled(title))
	}
	chart := finish(kind, title, nil, c)
	chart.Empty = true
	return chart
}

func titled(title string) charts.GlobalOpts {
	return charts.WithTitleOpts(opts.Title{Title: title, TitleStyle: &opts.TextStyle{FontSize: 14}})
}

func axisTooltip() charts.GlobalOpts {
	return charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"})
}

func itemTooltip() charts.GlobalOpts {
	return charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "item"})
}

func legend() charts.GlobalOpts {
	return charts.WithLegendOpts(opts.Legend{Show: true})
}

func colored(color string) charts.SeriesOpts {
	return charts.WithItemStyleOpts(opts.ItemStyle{Color: color})
}

// lineChart plots one line per series over shared categories
func lineChart(title, xName string, categories []string, series ...lineSeries) Chart {
	line := charts.NewLine()
	line.SetGlobalOptions(
		titled(title),
		axisTooltip(),
		legend(),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: xName}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
	)
	line.SetXAxis(categories)
	for _, s := range series {
		data := make([]opts.LineData, len(s.values))
		for i, v := range s.values {
			data[i] = opts.LineData{Value: v}
			if i < len(s.names) {
				data[i].Name = s.names[i]
			}
		}
		line.AddSeries(s.name, data, s.options...)
	}
	return finish(KindLine, title, categories, line)
}

type lineSeries struct {
	name    string
	values  []float64
	names   []string // per-point names, shown by "{b}" labels
	options []charts.SeriesOpts
}

// rankColor returns the medal color for 1-based positions 1..3
func rankColor(position int) string {
	switch position {
	case 1:
		return ColorGold
	case 2:
		return ColorSilver
	case 3:
		return ColorBronze
	default:
		return ColorDefault
	}
}
