package visualizations

import (
	"fmt"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/LilVoxy/ministry_analytics/database"
)

// FormatPercent renders a change percentage, "n/a" when undefined
func FormatPercent(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", *pct)
}

// sankeyBuilder collects nodes once and sums repeated links. ECharts keys
// sankey nodes by name, so names must be unique across both sides.
type sankeyBuilder struct {
	nodes []opts.SankeyNode
	seen  map[string]bool
	links map[[2]string]float64
	order [][2]string
}

func newSankey() *sankeyBuilder {
	return &sankeyBuilder{seen: make(map[string]bool), links: make(map[[2]string]float64)}
}

func (b *sankeyBuilder) node(name string) {
	if b.seen[name] {
		return
	}
	b.seen[name] = true
	b.nodes = append(b.nodes, opts.SankeyNode{Name: name})
}

func (b *sankeyBuilder) link(from, to string, value float64) {
	b.node(from)
	b.node(to)
	key := [2]string{from, to}
	if _, ok := b.links[key]; !ok {
		b.order = append(b.order, key)
	}
	b.links[key] += value
}

func (b *sankeyBuilder) chart(title string) Chart {
	if len(b.order) == 0 {
		return emptyChart(KindSankey, title)
	}
	links := make([]opts.SankeyLink, len(b.order))
	for i, key := range b.order {
		links[i] = opts.SankeyLink{Source: key[0], Target: key[1], Value: float32(b.links[key])}
	}
	sankey := charts.NewSankey()
	sankey.SetGlobalOptions(titled(title), itemTooltip())
	sankey.AddSeries(title, b.nodes, links, charts.WithLabelOpts(opts.Label{Show: true}))
	return finish(KindSankey, title, nil, sankey)
}

// TransitionSankey draws month-to-month role transitions. Both sides get
// their own node so "sound to sound" is not a cycle.
func TransitionSankey(rows []database.Transition, title string) Chart {
	b := newSankey()
	for _, r := range rows {
		b.link(r.From+" (before)", r.To+" (after)", float64(r.VolunteerCount))
	}
	return b.chart(title)
}

// MonthlyFlowSankey draws ministry flow across consecutive months
func MonthlyFlowSankey(rows []database.MonthlyFlow, title string) Chart {
	b := newSankey()
	for _, r := range rows {
		from := r.FromMonth + " " + r.FromMinistry
		to := r.ToMonth + " " + r.ToMinistry
		b.link(from, to, float64(r.VolunteerCount))
	}
	return b.chart(title)
}

// MinistryFlowSankey draws the volunteers entering and leaving one ministry
func MinistryFlowSankey(rows []database.MinistryFlow, ministry string) Chart {
	b := newSankey()
	for _, r := range rows {
		switch r.Direction {
		case "in":
			b.link(r.Counterpart+" (in)", ministry, float64(r.VolunteerCount))
		case "out":
			b.link(ministry, r.Counterpart+" (out)", float64(r.VolunteerCount))
		}
	}
	return b.chart("Flow through " + ministry)
}

// LevelSankey draws activity-level cohorts between periods
func LevelSankey(rows []database.LevelTransition, title string) Chart {
	b := newSankey()
	for _, r := range rows {
		from := r.FromPeriod + " " + r.FromLevel
		to := r.ToPeriod + " " + r.ToLevel
		b.link(from, to, float64(r.VolunteerCount))
	}
	return b.chart(title)
}

// SeasonalSankey draws quarter-to-quarter role flow
func SeasonalSankey(rows []database.SeasonalFlow, title string) Chart {
	b := newSankey()
	for _, r := range rows {
		from := r.FromQuarter + " " + r.FromService
		to := r.ToQuarter + " " + r.ToService
		b.link(from, to, float64(r.VolunteerCount))
	}
	return b.chart(title)
}

// ExperienceSankey links role diversity to service volume
func ExperienceSankey(rows []database.ExperienceFlow, title string) Chart {
	b := newSankey()
	for _, r := range rows {
		b.link(r.DiversityCategory, r.VolumeCategory, float64(r.VolunteerCount))
	}
	return b.chart(title)
}

// PathLine shows one volunteer's monthly services labelled with the main ministry
func PathLine(steps []database.PathStep, volunteerID string) Chart {
	title := "Ministry path of " + volunteerID
	if len(steps) == 0 {
		return emptyChart(KindBar, title)
	}
	months := make([]string, len(steps))
	data := make([]opts.BarData, len(steps))
	for i, step := range steps {
		months[i] = step.Month
		data[i] = opts.BarData{
			Value: step.ServiceCount,
			Label: &opts.Label{Show: true, Position: "top", Formatter: step.MainMinistry},
		}
	}
	bar := verticalBar(title, "Month", months)
	bar.AddSeries(volunteerID, data, colored(ColorServices))
	return finish(KindBar, title, months, bar)
}

// CoServiceNetwork draws the co-service graph; node size follows rank score
func CoServiceNetwork(ranks []database.VolunteerRank, edges []database.CoServiceEdge) Chart {
	const title = "Co-service network"
	if len(ranks) == 0 && len(edges) == 0 {
		return emptyChart(KindNetwork, title)
	}

	var nodes []opts.GraphNode
	seen := make(map[string]bool)
	for _, r := range ranks {
		seen[r.VolunteerID] = true
		nodes = append(nodes, opts.GraphNode{
			Name:       r.VolunteerID,
			Value:      float32(r.Score),
			SymbolSize: 10 + 60*r.Score,
		})
	}

	// volunteers with edges but no stored rank still get a node
	var extra []string
	links := make([]opts.GraphLink, 0, len(edges))
	for _, e := range edges {
		for _, v := range []string{e.VolunteerA, e.VolunteerB} {
			if !seen[v] {
				seen[v] = true
				extra = append(extra, v)
			}
		}
		links = append(links, opts.GraphLink{Source: e.VolunteerA, Target: e.VolunteerB, Value: float32(e.SharedDates)})
	}
	sort.Strings(extra)
	for _, v := range extra {
		nodes = append(nodes, opts.GraphNode{Name: v, SymbolSize: 10})
	}

	graph := charts.NewGraph()
	graph.SetGlobalOptions(titled(title), itemTooltip())
	graph.AddSeries("Volunteers", nodes, links,
		charts.WithGraphChartOpts(opts.GraphChart{Layout: "force", Roam: true, Force: &opts.GraphForce{Repulsion: 200}}),
		charts.WithLabelOpts(opts.Label{Show: true}),
	)
	return finish(KindNetwork, title, nil, graph)
}
