package teamrank

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// RoundToThousandth rounds to three decimals
func RoundToThousandth(value float64) float64 {
	return math.Round(value*1000) / 1000
}

// CalculateCoServiceLinks counts, for each pair of volunteers, the dates both served on
func CalculateCoServiceLinks(data *CoServiceData) []CoServiceLink {
	shared := make(map[[2]string]int)
	for _, volunteers := range data.DateVolunteers {
		for i := 0; i < len(volunteers); i++ {
			for j := i + 1; j < len(volunteers); j++ {
				a, b := volunteers[i], volunteers[j]
				if a > b {
					a, b = b, a
				}
				shared[[2]string{a, b}]++
			}
		}
	}

	links := make([]CoServiceLink, 0, len(shared))
	for pair, n := range shared {
		links = append(links, CoServiceLink{
			VolunteerA:  pair[0],
			VolunteerB:  pair[1],
			SharedDates: n,
			Weight:      float64(n),
		})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].SharedDates != links[j].SharedDates {
			return links[i].SharedDates > links[j].SharedDates
		}
		if links[i].VolunteerA != links[j].VolunteerA {
			return links[i].VolunteerA < links[j].VolunteerA
		}
		return links[i].VolunteerB < links[j].VolunteerB
	})
	return links
}

// BuildVolunteerGraph builds the undirected co-service graph. Volunteers
// without partners are kept as isolated nodes.
func BuildVolunteerGraph(links []CoServiceLink, serviceCounts map[string]int) map[string]*VolunteerNode {
	graph := make(map[string]*VolunteerNode)
	node := func(id string) *VolunteerNode {
		n, ok := graph[id]
		if !ok {
			n = &VolunteerNode{VolunteerID: id, Links: make(map[string]float64)}
			graph[id] = n
		}
		return n
	}

	for id, count := range serviceCounts {
		node(id).ServiceCount = count
	}
	for _, l := range links {
		a, b := node(l.VolunteerA), node(l.VolunteerB)
		a.Links[b.VolunteerID] += l.Weight
		b.Links[a.VolunteerID] += l.Weight
		a.Degree += l.Weight
		b.Degree += l.Weight
	}
	return graph
}

// CalculateTeamRank runs weighted PageRank over the graph. Rank held by
// isolated volunteers is spread evenly so ranks always sum to one.
func CalculateTeamRank(graph map[string]*VolunteerNode, cfg TeamRankConfig, logger *utils.ETLLogger) (TeamRankResult, error) {
	if len(graph) == 0 {
		return TeamRankResult{}, fmt.Errorf("empty co-service graph")
	}
	logger.Info("Calculating team rank for %d volunteers", len(graph))

	n := float64(len(graph))
	ids := make([]string, 0, len(graph))
	for id, node := range graph {
		ids = append(ids, id)
		node.Rank = 1.0 / n
	}
	sort.Strings(ids)

	var maxDelta float64
	var iteration int
	for iteration = 0; iteration < cfg.MaxIterations; iteration++ {
		dangling := 0.0
		for _, id := range ids {
			node := graph[id]
			node.PrevRank = node.Rank
			if node.Degree == 0 {
				dangling += node.PrevRank
			}
		}

		base := (1-cfg.DampingFactor)/n + cfg.DampingFactor*dangling/n
		for _, id := range ids {
			node := graph[id]
			sum := 0.0
			for partnerID, weight := range node.Links {
				partner := graph[partnerID]
				sum += partner.PrevRank * weight / partner.Degree
			}
			node.Rank = base + cfg.DampingFactor*sum
		}

		maxDelta = 0.0
		for _, id := range ids {
			if delta := math.Abs(graph[id].Rank - graph[id].PrevRank); delta > maxDelta {
				maxDelta = delta
			}
		}
		logger.Debug("Iteration %d, max delta %.6f", iteration+1, maxDelta)

		if maxDelta < cfg.ConvergenceEpsilon {
			logger.Info("Converged after %d iterations, delta %.6f", iteration+1, maxDelta)
			break
		}
	}
	if iteration == cfg.MaxIterations {
		iteration--
	}

	calculated := time.Now().UTC()
	result := TeamRankResult{
		Ranks:            categorizeRanks(graph, ids, calculated),
		IterationCount:   iteration + 1,
		ConvergenceDelta: RoundToThousandth(maxDelta),
		CalculationDate:  calculated,
	}
	return result, nil
}

// categorizeRanks orders volunteers by rank and assigns percentile categories:
// top 10% high, top half medium, the rest low
func categorizeRanks(graph map[string]*VolunteerNode, ids []string, calculated time.Time) []VolunteerRank {
	sorted := make([]float64, 0, len(ids))
	for _, id := range ids {
		sorted = append(sorted, graph[id].Rank)
	}
	sort.Float64s(sorted)

	ranks := make([]VolunteerRank, 0, len(ids))
	for _, id := range ids {
		node := graph[id]
		percentile := getPercentile(sorted, node.Rank)

		category := "low"
		switch {
		case percentile >= 0.9:
			category = "high"
		case percentile >= 0.5:
			category = "medium"
		}

		ranks = append(ranks, VolunteerRank{
			VolunteerID:     id,
			Rank:            RoundToThousandth(node.Rank),
			Percentile:      RoundToThousandth(percentile),
			Category:        category,
			ServiceCount:    node.ServiceCount,
			PartnerCount:    len(node.Links),
			CalculationDate: calculated,
		})
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		if graph[ranks[i].VolunteerID].Rank != graph[ranks[j].VolunteerID].Rank {
			return graph[ranks[i].VolunteerID].Rank > graph[ranks[j].VolunteerID].Rank
		}
		return ranks[i].VolunteerID < ranks[j].VolunteerID
	})
	for i := range ranks {
		ranks[i].Position = i + 1
	}
	return ranks
}

// getPercentile returns the position of value in sortedValues scaled to [0, 1]
func getPercentile(sortedValues []float64, value float64) float64 {
	if len(sortedValues) <= 1 {
		return 1
	}
	position := 0
	for i, v := range sortedValues {
		if v <= value {
			position = i
		} else {
			break
		}
	}
	return float64(position) / float64(len(sortedValues)-1)
}

// Run reads the co-service window, ranks it and stores the result
func Run(ctx context.Context, dataService DataService, repository TeamRankRepository, logger *utils.ETLLogger,
	cfg TeamRankConfig, until time.Time) (*TeamRankResult, error) {

	startTime := time.Now()

	// 1. Input window
	since := until.AddDate(0, -cfg.LookbackMonths, 0)
	data, err := dataService.GetCoServiceData(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to read co-service data: %w", err)
	}
	if len(data.ServiceCounts) == 0 {
		// an empty window still clears the previous ranking
		if err := repository.SaveRanks(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to clear ranks: %w", err)
		}
		if err := repository.SaveLinks(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to clear co-service links: %w", err)
		}
		logger.Info("No services since %s, team rank cleared", since.Format("2006-01-02"))
		return &TeamRankResult{CalculationDate: until}, nil
	}

	// 2. Links and graph
	links := CalculateCoServiceLinks(data)
	graph := BuildVolunteerGraph(links, data.ServiceCounts)

	// 3. Ranking
	result, err := CalculateTeamRank(graph, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate team rank: %w", err)
	}
	result.Links = links

	// 4. Persist
	if err := repository.SaveRanks(ctx, result.Ranks); err != nil {
		return nil, fmt.Errorf("failed to save ranks: %w", err)
	}
	if err := repository.SaveLinks(ctx, links); err != nil {
		return nil, fmt.Errorf("failed to save co-service links: %w", err)
	}

	logger.Info("Team rank finished in %v: %d volunteers, %d links", time.Since(startTime), len(result.Ranks), len(links))
	return &result, nil
}
