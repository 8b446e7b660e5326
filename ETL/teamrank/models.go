package teamrank

import (
	"context"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
)

// VolunteerNode is one volunteer in the co-service graph
type VolunteerNode struct {
	VolunteerID  string
	Links        map[string]float64 // partner -> link weight
	Degree       float64            // sum of link weights
	ServiceCount int
	Rank         float64
	PrevRank     float64 // previous iteration, for the convergence check
}

// CoServiceLink connects two volunteers who served on the same dates.
// VolunteerA sorts before VolunteerB.
type CoServiceLink struct {
	VolunteerA  string
	VolunteerB  string
	SharedDates int
	Weight      float64
}

// VolunteerRank is the ranking outcome for one volunteer
type VolunteerRank struct {
	VolunteerID     string
	Rank            float64
	Percentile      float64
	Position        int
	Category        string // high, medium, low
	ServiceCount    int
	PartnerCount    int
	CalculationDate time.Time
}

// TeamRankConfig holds the algorithm parameters
type TeamRankConfig struct {
	DampingFactor      float64
	MaxIterations      int
	ConvergenceEpsilon float64
	LookbackMonths     int

	// ServiceTypes limits the input to these service types; empty means all
	ServiceTypes []string
}

// TeamRankResult is the output of one calculation
type TeamRankResult struct {
	Ranks            []VolunteerRank
	Links            []CoServiceLink
	IterationCount   int
	ConvergenceDelta float64
	CalculationDate  time.Time
}

// CoServiceData is the input read from the store: who served on which date
type CoServiceData struct {
	DateVolunteers map[string][]string // service date -> volunteers, sorted
	ServiceCounts  map[string]int      // volunteer -> facts in the window
}

// DefaultConfig returns the default parameters
func DefaultConfig() TeamRankConfig {
	return TeamRankConfig{
		DampingFactor:      0.85,
		MaxIterations:      100,
		ConvergenceEpsilon: 0.0001,
		LookbackMonths:     12,
	}
}

// ConfigFrom converts the rank section of the configuration
func ConfigFrom(cfg config.RankConfig) TeamRankConfig {
	out := DefaultConfig()
	if cfg.DampingFactor > 0 {
		out.DampingFactor = cfg.DampingFactor
	}
	if cfg.MaxIterations > 0 {
		out.MaxIterations = cfg.MaxIterations
	}
	if cfg.ConvergenceEpsilon > 0 {
		out.ConvergenceEpsilon = cfg.ConvergenceEpsilon
	}
	if cfg.LookbackMonths > 0 {
		out.LookbackMonths = cfg.LookbackMonths
	}
	return out
}

// DataService reads the co-service input
type DataService interface {
	// GetCoServiceData returns the facts dated within [since, until]
	GetCoServiceData(ctx context.Context, since, until time.Time) (*CoServiceData, error)
}

// TeamRankRepository persists the latest ranking
type TeamRankRepository interface {
	// SaveRanks replaces the stored ranking
	SaveRanks(ctx context.Context, ranks []VolunteerRank) error

	// SaveLinks replaces the stored co-service graph
	SaveLinks(ctx context.Context, links []CoServiceLink) error
}
