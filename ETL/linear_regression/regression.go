package linear_regression

import (
	"fmt"
	"math"
)

// RoundToThousandth rounds to three decimals
func RoundToThousandth(value float64) float64 {
	return math.Round(value*1000) / 1000
}

// LinearRegression fits a least-squares line through the points
func LinearRegression(points []DataPoint) (*RegressionResult, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientData, len(points))
	}

	minDate := points[0].WeekStart
	maxDate := points[0].WeekStart
	for _, p := range points {
		if p.WeekStart.Before(minDate) {
			minDate = p.WeekStart
		}
		if p.WeekStart.After(maxDate) {
			maxDate = p.WeekStart
		}
	}

	// a = (n*sum(xy) - sum(x)*sum(y)) / (n*sum(x^2) - sum(x)^2)
	// b = (sum(y) - a*sum(x)) / n
	n := float64(len(points))
	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumXY += p.X * p.Y
		sumX2 += p.X * p.X
		sumY2 += p.Y * p.Y
	}

	denominator := n*sumX2 - sumX*sumX
	if math.Abs(denominator) < 1e-10 {
		return nil, fmt.Errorf("all X values are equal, slope is undefined")
	}
	a := (n*sumXY - sumX*sumY) / denominator
	b := (sumY - a*sumX) / n

	numerator := n*sumXY - sumX*sumY
	denominator = math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	var r float64
	if math.Abs(denominator) >= 1e-10 {
		r = numerator / denominator
	}

	return &RegressionResult{
		A:           RoundToThousandth(a),
		B:           RoundToThousandth(b),
		R:           RoundToThousandth(r),
		R2:          RoundToThousandth(r * r),
		PeriodStart: minDate,
		PeriodEnd:   maxDate,
		DataPoints:  points,
	}, nil
}

// Predict returns the fitted value at x
func Predict(result *RegressionResult, x float64) float64 {
	return RoundToThousandth(result.A*x + result.B)
}

// tStatistic approximates the two-sided Student t value for the common levels
func tStatistic(confidenceLevel float64) float64 {
	switch {
	case confidenceLevel >= 0.99:
		return 2.58
	case confidenceLevel >= 0.95:
		return 2.0
	case confidenceLevel >= 0.90:
		return 1.64
	default:
		return 1.28
	}
}

// CalculateConfidenceInterval returns the prediction interval at x. Counts
// cannot be negative, so the lower bound is clamped at zero.
func CalculateConfidenceInterval(result *RegressionResult, x float64, confidenceLevel float64) (float64, float64) {
	n := float64(len(result.DataPoints))
	yPred := Predict(result, x)
	if n <= 2 {
		return math.Max(0, yPred), yPred
	}

	meanX := 0.0
	for _, p := range result.DataPoints {
		meanX += p.X
	}
	meanX /= n

	var sumSqDevX, sumSqResiduals float64
	for _, p := range result.DataPoints {
		predY := Predict(result, p.X)
		sumSqDevX += (p.X - meanX) * (p.X - meanX)
		sumSqResiduals += (p.Y - predY) * (p.Y - predY)
	}

	standardError := math.Sqrt(sumSqResiduals / (n - 2))
	predictionStdError := standardError * math.Sqrt(1+1/n+(x-meanX)*(x-meanX)/sumSqDevX)
	margin := tStatistic(confidenceLevel) * predictionStdError

	return RoundToThousandth(math.Max(0, yPred-margin)), RoundToThousandth(yPred + margin)
}

// GenerateForecasts projects the line weeksAhead weeks past the last observed week
func GenerateForecasts(result *RegressionResult, weeksAhead int, confidenceLevel float64) []ForecastPoint {
	forecasts := make([]ForecastPoint, weeksAhead)

	maxX := 0.0
	for _, p := range result.DataPoints {
		if p.X > maxX {
			maxX = p.X
		}
	}

	for i := 0; i < weeksAhead; i++ {
		x := maxX + float64(i+1)
		lower, upper := CalculateConfidenceInterval(result, x, confidenceLevel)
		forecasts[i] = ForecastPoint{
			WeekStart:     result.PeriodEnd.AddDate(0, 0, 7*(i+1)),
			ForecastValue: math.Max(0, Predict(result, x)),
			CILower:       lower,
			CIUpper:       upper,
		}
	}
	return forecasts
}
