package transform

import (
	"sort"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// DateDimensionProcessor builds date dimension rows from service facts
type DateDimensionProcessor struct {
	logger *utils.ETLLogger
}

// NewDateDimensionProcessor creates a new DateDimensionProcessor
func NewDateDimensionProcessor(logger *utils.ETLLogger) *DateDimensionProcessor {
	return &DateDimensionProcessor{
		logger: logger,
	}
}

// ProcessDateDimension returns one row per distinct service date, ordered by date
func (p *DateDimensionProcessor) ProcessDateDimension(facts []models.ServiceFact) []models.DateDimension {
	seen := make(map[string]bool)
	dates := make([]models.DateDimension, 0)

	for _, f := range facts {
		key := f.ServiceDate.Format(models.DateLayout)
		if seen[key] {
			continue
		}
		seen[key] = true
		dates = append(dates, NewDateDimension(f.ServiceDate))
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Date.Before(dates[j].Date)
	})

	p.logger.Debug("Date dimension: %d distinct dates", len(dates))
	return dates
}

// NewDateDimension derives the calendar attributes of a date
func NewDateDimension(date time.Time) models.DateDimension {
	isoYear, isoWeek := date.ISOWeek()
	dow := int(date.Weekday())
	if dow == 0 {
		dow = 7
	}
	return models.DateDimension{
		Date:      date,
		Year:      date.Year(),
		Quarter:   (int(date.Month())-1)/3 + 1,
		Month:     int(date.Month()),
		ISOYear:   isoYear,
		ISOWeek:   isoWeek,
		DayOfWeek: dow,
	}
}
