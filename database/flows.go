package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
)

// Pseudo ministries used by flow queries
const (
	FlowInactive = "inactive"
	FlowOther    = "other"
)

// ErrInvalidStrategy is returned for a main-ministry strategy other than most_frequent|most_recent
var ErrInvalidStrategy = errors.New("strategy must be one of most_frequent|most_recent")

// Strategy decides a volunteer's main ministry within one bucket
type Strategy string

const (
	StrategyMostFrequent Strategy = "most_frequent"
	StrategyMostRecent   Strategy = "most_recent"
)

// ParseStrategy validates a user supplied strategy; empty means most_frequent
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.TrimSpace(s)); st {
	case "":
		return StrategyMostFrequent, nil
	case StrategyMostFrequent, StrategyMostRecent:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
}

// FlowOptions configure MonthlyMinistryFlow
type FlowOptions struct {
	Strategy        Strategy
	TopK            int // 0 keeps every ministry
	IncludeInactive bool
}

// ActivityThresholds split monthly service counts into high/medium/low
type ActivityThresholds struct {
	High   int
	Medium int
}

// Level classifies a monthly service count
func (t ActivityThresholds) Level(count int) string {
	switch {
	case count <= 0:
		return FlowInactive
	case count >= t.High:
		return "high"
	case count >= t.Medium:
		return "medium"
	default:
		return "low"
	}
}

type roleBucket struct {
	volunteerID string
	bucket      time.Time
	role        string
	count       int
	lastDate    time.Time
}

// bucketState is a volunteer's activity within one bucket
type bucketState struct {
	main  string
	total int
	roles map[string]int
}

// timeline maps volunteer -> bucket key -> state
type timeline map[string]map[string]*bucketState

func bucketKey(t time.Time) string {
	return t.Format(models.DateLayout)
}

func (s *Store) roleBuckets(ctx context.Context, g Granularity, f Filter) ([]roleBucket, error) {
	cte, args := s.factsCTE(f)
	query := cte + fmt.Sprintf(`
	SELECT volunteer_id, bucket, service_type_id, COUNT(*) AS cnt, MAX(service_date) AS last_date
	FROM (
		SELECT volunteer_id, service_type_id, service_date, %s AS bucket FROM facts
	) b
	GROUP BY 1, 2, 3
	ORDER BY 1, 2, 3`, bucketExpr(g, "service_date"))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("role bucket query failed: %w", err)
	}
	defer rows.Close()

	var out []roleBucket
	for rows.Next() {
		var r roleBucket
		if err := rows.Scan(&r.volunteerID, &r.bucket, &r.role, &r.count, &r.lastDate); err != nil {
			return nil, fmt.Errorf("failed to scan role bucket: %w", err)
		}
		r.bucket = dateOnly(r.bucket)
		r.lastDate = dateOnly(r.lastDate)
		out = append(out, r)
	}
	return out, rows.Err()
}

// roleScore is a candidate main role within one bucket
type roleScore struct {
	role     string
	count    int
	lastDate time.Time
}

// beats reports whether c should replace cur as the main role.
// most_frequent: highest count, ties by role name. most_recent: latest date, then count, then name.
func (c roleScore) beats(cur roleScore, strategy Strategy) bool {
	if strategy == StrategyMostRecent && !c.lastDate.Equal(cur.lastDate) {
		return c.lastDate.After(cur.lastDate)
	}
	if c.count != cur.count {
		return c.count > cur.count
	}
	return c.role < cur.role
}

// buildTimeline picks the main role per volunteer and bucket
func buildTimeline(rows []roleBucket, strategy Strategy) timeline {
	tl := make(timeline)
	winners := make(map[string]map[string]roleScore)

	for _, r := range rows {
		key := bucketKey(r.bucket)
		if tl[r.volunteerID] == nil {
			tl[r.volunteerID] = make(map[string]*bucketState)
			winners[r.volunteerID] = make(map[string]roleScore)
		}
		st := tl[r.volunteerID][key]
		if st == nil {
			st = &bucketState{roles: make(map[string]int)}
			tl[r.volunteerID][key] = st
		}
		st.total += r.count
		st.roles[r.role] += r.count

		cur, exists := winners[r.volunteerID][key]
		candidate := roleScore{role: r.role, count: r.count, lastDate: r.lastDate}
		if !exists || candidate.beats(cur, strategy) {
			winners[r.volunteerID][key] = candidate
			st.main = r.role
		}
	}
	return tl
}

// bucketRange lists every bucket start from first to last inclusive
func bucketRange(g Granularity, first, last time.Time) []time.Time {
	var out []time.Time
	for b := first; !b.After(last); b = g.Next(b) {
		out = append(out, b)
	}
	return out
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func quarterStart(t time.Time) time.Time {
	return time.Date(t.Year(), time.Month((int(t.Month())-1)/3*3+1), 1, 0, 0, 0, 0, time.UTC)
}

func spanOf(rows []roleBucket) (time.Time, time.Time) {
	first, last := rows[0].bucket, rows[0].bucket
	for _, r := range rows[1:] {
		if r.bucket.Before(first) {
			first = r.bucket
		}
		if r.bucket.After(last) {
			last = r.bucket
		}
	}
	return first, last
}

func sortedVolunteers(tl timeline) []string {
	ids := make([]string, 0, len(tl))
	for id := range tl {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MonthlyMinistryFlow aggregates moves between each volunteer's main ministry in
// consecutive months
func (s *Store) MonthlyMinistryFlow(ctx context.Context, opts FlowOptions, f Filter) ([]MonthlyFlow, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyMostFrequent
	}
	if _, err := ParseStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}
	rows, err := s.roleBuckets(ctx, GranularityMonth, f)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	tl := buildTimeline(rows, opts.Strategy)
	first, last := spanOf(rows)
	if !f.Start.IsZero() {
		first = monthStart(f.Start)
	}
	if !f.End.IsZero() && monthStart(f.End).Before(last) {
		last = monthStart(f.End)
	}
	months := bucketRange(GranularityMonth, first, last)

	rename := topKRenamer(tl, opts.TopK)

	type flowKey struct{ fromMonth, toMonth, from, to string }
	agg := make(map[flowKey]*MonthlyFlow)

	for _, vol := range sortedVolunteers(tl) {
		for i := 0; i+1 < len(months); i++ {
			from := stateOf(tl[vol], months[i], rename)
			to := stateOf(tl[vol], months[i+1], rename)
			if from == FlowInactive && to == FlowInactive {
				continue
			}
			if !opts.IncludeInactive && (from == FlowInactive || to == FlowInactive) {
				continue
			}
			key := flowKey{GranularityMonth.Label(months[i]), GranularityMonth.Label(months[i+1]), from, to}
			flow := agg[key]
			if flow == nil {
				flow = &MonthlyFlow{FromMonth: key.fromMonth, ToMonth: key.toMonth, FromMinistry: from, ToMinistry: to}
				agg[key] = flow
			}
			flow.VolunteerCount++
			flow.Volunteers = append(flow.Volunteers, vol)
		}
	}

	out := make([]MonthlyFlow, 0, len(agg))
	for _, flow := range agg {
		out = append(out, *flow)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FromMonth != b.FromMonth {
			return a.FromMonth < b.FromMonth
		}
		if a.FromMinistry != b.FromMinistry {
			return a.FromMinistry < b.FromMinistry
		}
		return a.ToMinistry < b.ToMinistry
	})
	return out, nil
}

func stateOf(buckets map[string]*bucketState, bucket time.Time, rename func(string) string) string {
	st, ok := buckets[bucketKey(bucket)]
	if !ok {
		return FlowInactive
	}
	return rename(st.main)
}

// topKRenamer keeps the K ministries that are most often a main ministry and maps the rest to "other"
func topKRenamer(tl timeline, k int) func(string) string {
	if k <= 0 {
		return func(m string) string { return m }
	}
	totals := make(map[string]int)
	for _, buckets := range tl {
		for _, st := range buckets {
			totals[st.main]++
		}
	}
	ministries := make([]string, 0, len(totals))
	for m := range totals {
		ministries = append(ministries, m)
	}
	sort.Slice(ministries, func(i, j int) bool {
		if totals[ministries[i]] != totals[ministries[j]] {
			return totals[ministries[i]] > totals[ministries[j]]
		}
		return ministries[i] < ministries[j]
	})
	keep := make(map[string]bool)
	for i, m := range ministries {
		if i < k {
			keep[m] = true
		}
	}
	return func(m string) string {
		if keep[m] {
			return m
		}
		return FlowOther
	}
}

// ServiceTransitions aggregates moves between most-frequent roles of consecutive
// months over the last N months
func (s *Store) ServiceTransitions(ctx context.Context, months int, f Filter) ([]Transition, error) {
	if months <= 0 {
		return nil, fmt.Errorf("months must be positive, got %d", months)
	}
	start := monthStart(s.Today()).AddDate(0, -months, 0)
	rows, err := s.roleBuckets(ctx, GranularityMonth, f.WithStart(start))
	if err != nil {
		return nil, err
	}
	tl := buildTimeline(rows, StrategyMostFrequent)

	counts := make(map[[2]string]int)
	for _, vol := range sortedVolunteers(tl) {
		for key, st := range tl[vol] {
			month, _ := time.Parse(models.DateLayout, key)
			next, ok := tl[vol][bucketKey(month.AddDate(0, 1, 0))]
			if !ok {
				continue
			}
			counts[[2]string{st.main, next.main}]++
		}
	}
	return sortedTransitions(counts), nil
}

func sortedTransitions(counts map[[2]string]int) []Transition {
	out := make([]Transition, 0, len(counts))
	for k, n := range counts {
		out = append(out, Transition{From: k[0], To: k[1], VolunteerCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VolunteerCount != out[j].VolunteerCount {
			return out[i].VolunteerCount > out[j].VolunteerCount
		}
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// MinistrySpecificFlow returns where volunteers came from and went to around one ministry
func (s *Store) MinistrySpecificFlow(ctx context.Context, ministry string, f Filter) ([]MinistryFlow, error) {
	flows, err := s.MonthlyMinistryFlow(ctx, FlowOptions{Strategy: StrategyMostFrequent, IncludeInactive: true}, f)
	if err != nil {
		return nil, err
	}

	type key struct{ direction, counterpart string }
	agg := make(map[key]int)
	for _, fl := range flows {
		switch {
		case fl.FromMinistry == ministry && fl.ToMinistry == ministry:
			agg[key{"stay", ministry}] += fl.VolunteerCount
		case fl.ToMinistry == ministry:
			agg[key{"in", fl.FromMinistry}] += fl.VolunteerCount
		case fl.FromMinistry == ministry:
			agg[key{"out", fl.ToMinistry}] += fl.VolunteerCount
		}
	}

	out := make([]MinistryFlow, 0, len(agg))
	for k, n := range agg {
		out = append(out, MinistryFlow{Direction: k.direction, Counterpart: k.counterpart, VolunteerCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Direction != out[j].Direction {
			return out[i].Direction < out[j].Direction
		}
		if out[i].VolunteerCount != out[j].VolunteerCount {
			return out[i].VolunteerCount > out[j].VolunteerCount
		}
		return out[i].Counterpart < out[j].Counterpart
	})
	return out, nil
}

// VolunteerMinistryPath returns one volunteer's main ministry month by month
func (s *Store) VolunteerMinistryPath(ctx context.Context, volunteerID string, f Filter) ([]PathStep, error) {
	rows, err := s.roleBuckets(ctx, GranularityMonth, f.WithVolunteer(volunteerID))
	if err != nil {
		return nil, err
	}
	tl := buildTimeline(rows, StrategyMostFrequent)
	buckets := tl[volunteerID]

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]PathStep, 0, len(keys))
	for _, k := range keys {
		st := buckets[k]
		month, _ := time.Parse(models.DateLayout, k)
		out = append(out, PathStep{
			Month:        GranularityMonth.Label(month),
			MainMinistry: st.main,
			ServiceCount: st.total,
			Ministries:   st.roles,
		})
	}
	return out, nil
}

// VolunteerMinistryFlowData lists each volunteer's main-ministry moves between
// directly consecutive months
func (s *Store) VolunteerMinistryFlowData(ctx context.Context, f Filter) ([]VolunteerTransition, error) {
	rows, err := s.roleBuckets(ctx, GranularityMonth, f)
	if err != nil {
		return nil, err
	}
	tl := buildTimeline(rows, StrategyMostFrequent)

	var out []VolunteerTransition
	for _, vol := range sortedVolunteers(tl) {
		keys := make([]string, 0, len(tl[vol]))
		for k := range tl[vol] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			month, _ := time.Parse(models.DateLayout, k)
			nextMonth := month.AddDate(0, 1, 0)
			next, ok := tl[vol][bucketKey(nextMonth)]
			if !ok {
				continue
			}
			out = append(out, VolunteerTransition{
				VolunteerID:   vol,
				FromMonth:     GranularityMonth.Label(month),
				ToMonth:       GranularityMonth.Label(nextMonth),
				FromMinistry:  tl[vol][k].main,
				ToMinistry:    next.main,
				FlowIntensity: 1,
			})
		}
	}
	return out, nil
}

// ActivityLevelJourney aggregates moves between monthly activity levels over the last N months
func (s *Store) ActivityLevelJourney(ctx context.Context, periods int, th ActivityThresholds, f Filter) ([]LevelTransition, error) {
	if periods < 2 {
		return nil, fmt.Errorf("periods must be at least 2, got %d", periods)
	}
	last := monthStart(s.Today())
	first := last.AddDate(0, -(periods - 1), 0)
	rows, err := s.roleBuckets(ctx, GranularityMonth, f.WithStart(first))
	if err != nil {
		return nil, err
	}
	tl := buildTimeline(rows, StrategyMostFrequent)
	months := bucketRange(GranularityMonth, first, last)

	type key struct{ fromPeriod, toPeriod, from, to string }
	agg := make(map[key]int)
	for _, vol := range sortedVolunteers(tl) {
		for i := 0; i+1 < len(months); i++ {
			from := th.Level(totalOf(tl[vol], months[i]))
			to := th.Level(totalOf(tl[vol], months[i+1]))
			if from == FlowInactive && to == FlowInactive {
				continue
			}
			agg[key{GranularityMonth.Label(months[i]), GranularityMonth.Label(months[i+1]), from, to}]++
		}
	}

	out := make([]LevelTransition, 0, len(agg))
	for k, n := range agg {
		out = append(out, LevelTransition{FromPeriod: k.fromPeriod, ToPeriod: k.toPeriod, FromLevel: k.from, ToLevel: k.to, VolunteerCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FromPeriod != b.FromPeriod {
			return a.FromPeriod < b.FromPeriod
		}
		if a.FromLevel != b.FromLevel {
			return a.FromLevel < b.FromLevel
		}
		return a.ToLevel < b.ToLevel
	})
	return out, nil
}

func totalOf(buckets map[string]*bucketState, bucket time.Time) int {
	if st, ok := buckets[bucketKey(bucket)]; ok {
		return st.total
	}
	return 0
}

// SeasonalServiceFlow aggregates moves between most-frequent roles of consecutive quarters
func (s *Store) SeasonalServiceFlow(ctx context.Context, f Filter) ([]SeasonalFlow, error) {
	rows, err := s.roleBuckets(ctx, GranularityQuarter, f)
	if err != nil {
		return nil, err
	}
	tl := buildTimeline(rows, StrategyMostFrequent)

	type key struct{ fromQ, toQ, from, to string }
	agg := make(map[key]int)
	for _, vol := range sortedVolunteers(tl) {
		for k, st := range tl[vol] {
			q, _ := time.Parse(models.DateLayout, k)
			nextQ := quarterStart(q.AddDate(0, 3, 0))
			next, ok := tl[vol][bucketKey(nextQ)]
			if !ok {
				continue
			}
			agg[key{GranularityQuarter.Label(q), GranularityQuarter.Label(nextQ), st.main, next.main}]++
		}
	}

	out := make([]SeasonalFlow, 0, len(agg))
	for k, n := range agg {
		out = append(out, SeasonalFlow{FromQuarter: k.fromQ, ToQuarter: k.toQ, FromService: k.from, ToService: k.to, VolunteerCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FromQuarter != b.FromQuarter {
			return a.FromQuarter < b.FromQuarter
		}
		if a.FromService != b.FromService {
			return a.FromService < b.FromService
		}
		return a.ToService < b.ToService
	})
	return out, nil
}

// Experience categories
const (
	DiversitySpecialist = "specialist"  // one role
	DiversityVersatile  = "versatile"   // two or three roles
	DiversityAllRounder = "all-rounder" // four or more roles
	VolumeNewcomer      = "newcomer"    // fewer than 5 services
	VolumeRegular       = "regular"     // 5 to 19 services
	VolumeVeteran       = "veteran"     // 20 or more services
)

// ExperienceProgression classifies volunteers by role diversity and total volume
func (s *Store) ExperienceProgression(ctx context.Context, f Filter) ([]ExperienceFlow, error) {
	cte, args := s.factsCTE(f)
	query := cte + `
	SELECT volunteer_id, COUNT(DISTINCT service_type_id) AS roles, COUNT(*) AS total
	FROM facts
	GROUP BY volunteer_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("experience query failed: %w", err)
	}
	defer rows.Close()

	agg := make(map[[2]string]int)
	for rows.Next() {
		var id string
		var roles, total int
		if err := rows.Scan(&id, &roles, &total); err != nil {
			return nil, fmt.Errorf("failed to scan experience row: %w", err)
		}
		agg[[2]string{diversityCategory(roles), volumeCategory(total)}]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ExperienceFlow, 0, len(agg))
	for k, n := range agg {
		out = append(out, ExperienceFlow{DiversityCategory: k[0], VolumeCategory: k[1], VolunteerCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DiversityCategory != out[j].DiversityCategory {
			return out[i].DiversityCategory < out[j].DiversityCategory
		}
		return out[i].VolumeCategory < out[j].VolumeCategory
	})
	return out, nil
}

func diversityCategory(roles int) string {
	switch {
	case roles >= 4:
		return DiversityAllRounder
	case roles >= 2:
		return DiversityVersatile
	default:
		return DiversitySpecialist
	}
}

func volumeCategory(total int) string {
	switch {
	case total >= 20:
		return VolumeVeteran
	case total >= 5:
		return VolumeRegular
	default:
		return VolumeNewcomer
	}
}
