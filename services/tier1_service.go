// backend/services/tier1_service.go
package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tajaa/matcha-recruit-sub002/models"
	"github.com/tajaa/matcha-recruit-sub002/scraper"
	"github.com/tajaa/matcha-recruit-sub002/utils"
)

// Tier1SourceTier marks records that came from structured sources.
const Tier1SourceTier = 1

// titleCase builds a Caser per call; Casers are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// GetTier1Data answers a lookup from the cache. The second return is false when nothing fresh
// was found, which tells the caller to fall back to a lower-trust tier. Records are ordered
// city, county, state.
func (s *StructuredSourceService) GetTier1Data(ctx context.Context, q models.Tier1Query) ([]models.Tier1Record, bool) {
	state, ok := scraper.NormalizeState(q.State)
	if !ok {
		s.logger.Warn("Tier 1 lookup with unrecognized state", "state", q.State, "jurisdiction_id", q.JurisdictionID)
		s.metrics.observeLookup(false)
		return nil, false
	}

	lookupKey := LookupKey(q.City, q.County, state)
	freshness := q.FreshnessHours
	if freshness <= 0 {
		freshness = s.defaultFreshness
	}
	since := s.now().Add(-time.Duration(freshness) * time.Hour)

	categories := q.Categories
	if len(categories) == 0 {
		categories = []string{DefaultCategory}
	}

	s.logger.Debug("Tier 1 lookup", "jurisdiction_id", q.JurisdictionID, "key", lookupKey,
		"state", state, "categories", categories, "freshness_hours", freshness)

	var records []models.Tier1Record
	for _, category := range categories {
		rows, err := s.store.QueryTier1(ctx, models.CacheLookup{
			State:           state,
			Category:        category,
			JurisdictionKey: lookupKey,
			FetchedSince:    since,
		})
		if err != nil {
			s.logger.Error("Tier 1 cache query failed", "category", category, "key", lookupKey, "error", err)
			continue
		}
		for _, row := range rows {
			records = append(records, toTier1Record(row))
		}
	}

	if len(records) == 0 {
		s.metrics.observeLookup(false)
		return nil, false
	}

	// Each category is already ordered; merge them by level.
	slices.SortStableFunc(records, func(a, b models.Tier1Record) int {
		return models.LevelRank(a.JurisdictionLevel) - models.LevelRank(b.JurisdictionLevel)
	})

	s.metrics.observeLookup(true)
	return records, true
}

// LookupKey picks the jurisdiction key for a lookup: city, else county, else the state itself.
// A bare county name gets the " County" (Louisiana: " Parish") suffix cache keys carry.
func LookupKey(city, county, state string) string {
	switch {
	case strings.TrimSpace(city) != "":
		return scraper.JurisdictionKey(city, state, models.LevelCity)
	case strings.TrimSpace(county) != "":
		return scraper.JurisdictionKey(countyName(county, state), state, models.LevelCounty)
	default:
		name, ok := utils.StateName(state)
		if !ok {
			name = state
		}
		return scraper.JurisdictionKey(name, state, models.LevelState)
	}
}

func countyName(county, state string) string {
	county = strings.TrimSpace(county)
	lower := strings.ToLower(county)
	if strings.HasSuffix(lower, " county") || strings.HasSuffix(lower, " parish") {
		return county
	}
	if state == "LA" {
		return county + " Parish"
	}
	return county + " County"
}

func toTier1Record(row models.Tier1Row) models.Tier1Record {
	var effective string
	if row.EffectiveDate != nil {
		effective = row.EffectiveDate.Format("2006-01-02")
	}
	return models.Tier1Record{
		Title:              recordTitle(row),
		Category:           row.Category,
		JurisdictionLevel:  row.JurisdictionLevel,
		JurisdictionName:   row.JurisdictionName,
		CurrentValue:       row.CurrentValue,
		NumericValue:       row.NumericValue,
		EffectiveDate:      effective,
		Description:        recordDescription(row),
		SourceURL:          row.SourceURL,
		SourceName:         row.SourceName,
		RateType:           row.RateType,
		SourceTier:         Tier1SourceTier,
		StructuredSourceID: row.SourceID,
	}
}

// "San Francisco Minimum Wage", "Texas Tipped Minimum Wage"
func recordTitle(row models.Tier1Row) string {
	category := titleCase(strings.ReplaceAll(row.Category, "_", " "))
	if row.RateType != "" && row.RateType != models.DefaultRateType {
		category = titleCase(strings.ReplaceAll(row.RateType, "_", " ")) + " " + category
	}
	return strings.TrimSpace(row.JurisdictionName + " " + category)
}

func recordDescription(row models.Tier1Row) string {
	var b strings.Builder
	label := strings.ReplaceAll(row.Category, "_", " ")
	if row.RateType != "" && row.RateType != models.DefaultRateType {
		label = strings.ReplaceAll(row.RateType, "_", " ") + " " + label
	}
	place := row.JurisdictionName
	if row.JurisdictionLevel != models.LevelState {
		place = fmt.Sprintf("%s, %s", row.JurisdictionName, row.State)
	}

	fmt.Fprintf(&b, "%s for %s: %s", upperFirst(label), place, orDash(row.CurrentValue))
	if row.EffectiveDate != nil {
		fmt.Fprintf(&b, " (effective %s)", row.EffectiveDate.Format("2006-01-02"))
	}
	b.WriteString(".")
	if row.NextScheduledValue != "" || row.NextScheduledDate != nil {
		b.WriteString(" Next scheduled change")
		if row.NextScheduledValue != "" {
			fmt.Fprintf(&b, ": %s", row.NextScheduledValue)
		}
		if row.NextScheduledDate != nil {
			fmt.Fprintf(&b, " on %s", row.NextScheduledDate.Format("2006-01-02"))
		}
		b.WriteString(".")
	}
	if row.Notes != "" {
		b.WriteString(" ")
		b.WriteString(row.Notes)
	}
	return b.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
