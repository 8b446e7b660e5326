package transform

import (
	"sort"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// VolunteerDimensionProcessor builds the volunteer registry from service facts
type VolunteerDimensionProcessor struct {
	logger  *utils.ETLLogger
	aliases map[string]string
}

// NewVolunteerDimensionProcessor creates a new VolunteerDimensionProcessor
func NewVolunteerDimensionProcessor(aliases map[string]string, logger *utils.ETLLogger) *VolunteerDimensionProcessor {
	return &VolunteerDimensionProcessor{
		logger:  logger,
		aliases: normalizeAliases(aliases),
	}
}

// ProcessVolunteerDimension returns the volunteers seen in facts with their first and
// last service dates, and the configured alias rows
func (p *VolunteerDimensionProcessor) ProcessVolunteerDimension(facts []models.ServiceFact) ([]models.Volunteer, []models.VolunteerAlias) {
	byID := make(map[string]*models.Volunteer)
	for _, f := range facts {
		v, exists := byID[f.VolunteerID]
		if !exists {
			byID[f.VolunteerID] = &models.Volunteer{
				ID:          f.VolunteerID,
				DisplayName: f.VolunteerID,
				FirstSeen:   f.ServiceDate,
				LastSeen:    f.ServiceDate,
			}
			continue
		}
		if f.ServiceDate.Before(v.FirstSeen) {
			v.FirstSeen = f.ServiceDate
		}
		if f.ServiceDate.After(v.LastSeen) {
			v.LastSeen = f.ServiceDate
		}
	}

	volunteers := make([]models.Volunteer, 0, len(byID))
	for _, v := range byID {
		volunteers = append(volunteers, *v)
	}
	sort.Slice(volunteers, func(i, j int) bool {
		return volunteers[i].ID < volunteers[j].ID
	})

	aliases := make([]models.VolunteerAlias, 0, len(p.aliases))
	for alias, canonical := range p.aliases {
		aliases = append(aliases, models.VolunteerAlias{Alias: alias, VolunteerID: canonical})
	}
	sort.Slice(aliases, func(i, j int) bool {
		return aliases[i].Alias < aliases[j].Alias
	})

	p.logger.Debug("Volunteer dimension: %d volunteers, %d aliases", len(volunteers), len(aliases))
	return volunteers, aliases
}

// ServiceTypesFromConfig lists the configured roles in column order
func ServiceTypesFromConfig(cfg *config.Config) []models.ServiceType {
	types := make([]models.ServiceType, 0, len(cfg.Columns.Roles))
	seen := make(map[string]bool)
	for i, r := range cfg.Columns.Roles {
		if seen[r.ServiceType] {
			continue
		}
		seen[r.ServiceType] = true
		types = append(types, models.ServiceType{
			ID:        r.ServiceType,
			ColumnKey: r.Key,
			SortOrder: i,
		})
	}
	return types
}
