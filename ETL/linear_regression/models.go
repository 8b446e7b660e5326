package linear_regression

import (
	"context"
	"errors"
	"time"
)

// ErrInsufficientData is returned when fewer than two weeks are available
var ErrInsufficientData = errors.New("not enough weekly data for a forecast")

// DataPoint is one observed week
type DataPoint struct {
	X         float64   // week index from the start of the window
	Y         float64   // services in that week
	WeekStart time.Time // Monday
}

// RegressionResult holds the fitted line y = A*x + B
type RegressionResult struct {
	A           float64 // slope, services per week
	B           float64 // intercept
	R           float64 // Pearson correlation
	R2          float64
	PeriodStart time.Time
	PeriodEnd   time.Time // start of the last observed week
	DataPoints  []DataPoint
}

// ForecastPoint is one forecast week
type ForecastPoint struct {
	WeekStart     time.Time
	ForecastValue float64
	CILower       float64
	CIUpper       float64
}

// DataService reads weekly service counts
type DataService interface {
	// GetWeeklyServiceData returns the last weeks of service counts ending at
	// the latest service on or before until. Weeks without services are zero.
	GetWeeklyServiceData(ctx context.Context, weeks int, until time.Time) ([]DataPoint, error)
}

// ForecastRepository persists the latest forecast
type ForecastRepository interface {
	// SaveForecast replaces the stored forecast
	SaveForecast(ctx context.Context, result RegressionResult, forecasts []ForecastPoint, reliable bool) error
}
