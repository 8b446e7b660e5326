package database

import (
	"time"
)

// PeriodAggregate is the total service count of one time bucket
type PeriodAggregate struct {
	Period         string    `json:"period"`
	PeriodStart    time.Time `json:"period_start"`
	ServiceCount   int       `json:"service_count"`
	VolunteerCount int       `json:"volunteer_count"`
}

// ParticipantCount is the service count of one volunteer in one bucket
type ParticipantCount struct {
	Period       string    `json:"period"`
	PeriodStart  time.Time `json:"period_start"`
	VolunteerID  string    `json:"volunteer"`
	ServiceCount int       `json:"service_count"`
}

// PeriodCount is a plain count per bucket
type PeriodCount struct {
	Period       string    `json:"period"`
	PeriodStart  time.Time `json:"period_start"`
	ServiceCount int       `json:"service_count"`
}

// ServiceTypeCount is a count per bucket and role
type ServiceTypeCount struct {
	Period        string    `json:"period"`
	PeriodStart   time.Time `json:"period_start"`
	ServiceTypeID string    `json:"service_type_id"`
	ServiceCount  int       `json:"service_count"`
}

// RawFact is one stored fact with its date attributes
type RawFact struct {
	FactID        string    `json:"fact_id"`
	VolunteerID   string    `json:"volunteer_id"`
	ServiceTypeID string    `json:"service_type_id"`
	ServiceDate   time.Time `json:"service_date"`
	SourceRowID   string    `json:"source_row_id"`
	IngestedAt    time.Time `json:"ingested_at"`
	Year          int       `json:"year"`
	Quarter       int       `json:"quarter"`
	Month         int       `json:"month"`
}

// VolunteerStats is one ranking row over a recent window
type VolunteerStats struct {
	VolunteerID       string    `json:"volunteer_id"`
	TotalServices     int       `json:"total_services"`
	ServiceTypesCount int       `json:"service_types_count"`
	FirstServiceDate  time.Time `json:"first_service_date"`
	LastServiceDate   time.Time `json:"last_service_date"`
	ServiceTypes      []string  `json:"service_types"`
}

// WeeklyVolunteerCount is the service count of one volunteer in one ISO week
type WeeklyVolunteerCount struct {
	VolunteerID   string    `json:"volunteer_id"`
	WeekStart     time.Time `json:"week_start"`
	WeekLabel     string    `json:"week_label"`
	ServicesCount int       `json:"services_count"`
}

// ServiceTypeShare is one role's share of a recent window
type ServiceTypeShare struct {
	ServiceTypeID    string  `json:"service_type_id"`
	TotalServices    int     `json:"total_services"`
	UniqueVolunteers int     `json:"unique_volunteers"`
	Percentage       float64 `json:"percentage"`
}

// PeriodComparison compares a volunteer's last N weeks with the N weeks before
type PeriodComparison struct {
	VolunteerID   string   `json:"volunteer_id"`
	CurrentCount  int      `json:"current_count"`
	PreviousCount int      `json:"previous_count"`
	Change        int      `json:"change"`
	ChangePct     *float64 `json:"change_pct"` // nil when the previous window is empty
}

// VolunteerCountPoint is the number of active volunteers per bucket
type VolunteerCountPoint struct {
	Period         string    `json:"period"`
	PeriodStart    time.Time `json:"period_start"`
	VolunteerCount int       `json:"volunteer_count"`
	ChangePct      *float64  `json:"change_pct"`
}

// CumulativePoint is the running participation total per bucket
type CumulativePoint struct {
	Period               string    `json:"period"`
	PeriodStart          time.Time `json:"period_start"`
	ServiceCount         int       `json:"service_count"`
	CumulativeServices   int       `json:"cumulative_services"`
	CumulativeVolunteers int       `json:"cumulative_volunteers"`
}

// JoinLeavePoint is the cohort movement of one bucket. Left counts volunteers
// whose last active bucket was the previous one.
type JoinLeavePoint struct {
	Period           string    `json:"period"`
	PeriodStart      time.Time `json:"period_start"`
	ActiveVolunteers int       `json:"active_volunteers"`
	NewVolunteers    int       `json:"new_volunteers"`
	LeftVolunteers   int       `json:"left_volunteers"`
	Retained         int       `json:"retained"`
	NetChange        int       `json:"net_change"`
}

// Transition is an aggregated move between two roles (or states)
type Transition struct {
	From           string `json:"from"`
	To             string `json:"to"`
	VolunteerCount int    `json:"volunteer_count"`
}

// MonthlyFlow is an aggregated move between the main ministries of two consecutive months
type MonthlyFlow struct {
	FromMonth      string   `json:"from_month"`
	ToMonth        string   `json:"to_month"`
	FromMinistry   string   `json:"from_ministry"`
	ToMinistry     string   `json:"to_ministry"`
	VolunteerCount int      `json:"volunteer_count"`
	Volunteers     []string `json:"volunteers"`
}

// MinistryFlow is one in- or out-flow of a single ministry
type MinistryFlow struct {
	Direction      string `json:"direction"` // "in" or "out"
	Counterpart    string `json:"counterpart"`
	VolunteerCount int    `json:"volunteer_count"`
}

// PathStep is one month of a volunteer's ministry path
type PathStep struct {
	Month        string         `json:"month"`
	MainMinistry string         `json:"main_ministry"`
	ServiceCount int            `json:"service_count"`
	Ministries   map[string]int `json:"ministries"`
}

// VolunteerTransition is one volunteer moving between consecutive months
type VolunteerTransition struct {
	VolunteerID   string `json:"volunteer_name"`
	FromMonth     string `json:"from_month"`
	ToMonth       string `json:"to_month"`
	FromMinistry  string `json:"from_ministry"`
	ToMinistry    string `json:"to_ministry"`
	FlowIntensity int    `json:"flow_intensity"`
}

// LevelTransition is an aggregated move between activity levels of consecutive months
type LevelTransition struct {
	FromPeriod     string `json:"from_period"`
	ToPeriod       string `json:"to_period"`
	FromLevel      string `json:"from_level"`
	ToLevel        string `json:"to_level"`
	VolunteerCount int    `json:"volunteer_count"`
}

// SeasonalFlow is an aggregated move between main roles of consecutive quarters
type SeasonalFlow struct {
	FromQuarter    string `json:"from_quarter"`
	ToQuarter      string `json:"to_quarter"`
	FromService    string `json:"from_service"`
	ToService      string `json:"to_service"`
	VolunteerCount int    `json:"volunteer_count"`
}

// ExperienceFlow links a role-diversity category with a service-volume category
type ExperienceFlow struct {
	DiversityCategory string `json:"diversity_category"`
	VolumeCategory    string `json:"volume_category"`
	VolunteerCount    int    `json:"volunteer_count"`
}

// VolunteerRank is the persisted co-service ranking of one volunteer
type VolunteerRank struct {
	VolunteerID  string    `json:"volunteer_id"`
	Score        float64   `json:"score"`
	Position     int       `json:"position"`
	Category     string    `json:"category"`
	ServiceCount int       `json:"service_count"`
	PartnerCount int       `json:"partner_count"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// CoServiceEdge links two volunteers who served on the same dates
type CoServiceEdge struct {
	VolunteerA  string `json:"source"`
	VolunteerB  string `json:"target"`
	SharedDates int    `json:"shared_dates"`
}

// ForecastPoint is one forecast week
type ForecastPoint struct {
	WeekStart         time.Time `json:"week_start"`
	PredictedServices float64   `json:"predicted_services"`
	LowerBound        float64   `json:"lower_bound"`
	UpperBound        float64   `json:"upper_bound"`
	TrendSlope        float64   `json:"trend_slope"`
	RSquared          float64   `json:"r_squared"`
	IsReliable        bool      `json:"is_reliable"`
}
