// backend/scraper/normalize.go
package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tajaa/matcha-recruit-sub002/models"
	"github.com/tajaa/matcha-recruit-sub002/utils"
)

var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)
	numericValueRegex    = regexp.MustCompile(`\$?\d+(\.\d{2})?`)
	whitespaceRegex      = regexp.MustCompile(`\s+`)
)

// Suffixes stripped from non-county names; longer forms first so ", city" wins over " city".
var jurisdictionSuffixes = []string{", city", ", county", " city", " county"}

var noValueMarkers = []string{"n/a", "none", "no minimum"}

// JurisdictionKey builds the cache/lookup key for a jurisdiction.
//
//	JurisdictionKey("San Francisco", "CA", "city")         == "san_francisco_ca"
//	JurisdictionKey("Los Angeles County", "CA", "county")  == "los_angeles_county_ca"
//	JurisdictionKey("California", "CA", "state")           == "california"
func JurisdictionKey(name, state, level string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if level != models.LevelCounty {
		for _, suffix := range jurisdictionSuffixes {
			if strings.HasSuffix(key, suffix) {
				key = strings.TrimSuffix(key, suffix)
				break
			}
		}
	}
	key = nonAlphanumericRegex.ReplaceAllString(key, "_")
	key = strings.Trim(key, "_")
	if level == models.LevelState {
		return key
	}
	return key + "_" + strings.ToLower(strings.TrimSpace(state))
}

// NumericValue extracts the first dollar-ish number from text. Returns nil when the text says
// there is no value or contains no number.
func NumericValue(text string) *float64 {
	lower := strings.ToLower(text)
	for _, marker := range noValueMarkers {
		if strings.Contains(lower, marker) {
			return nil
		}
	}
	match := numericValueRegex.FindString(text)
	if match == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(match, "$"), 64)
	if err != nil {
		return nil
	}
	return &v
}

// NormalizeState returns the 2-letter code for a code or full state name.
func NormalizeState(text string) (string, bool) {
	return utils.NormalizeState(text)
}

// JurisdictionLevel classifies a jurisdiction name within a source's coverage scope.
func JurisdictionLevel(name string, scope models.CoverageScope) string {
	if scope == models.CoverageState {
		return models.LevelState
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "county") || strings.Contains(lower, "parish") {
		return models.LevelCounty
	}
	return models.LevelCity
}

// cleanCell collapses internal whitespace (including non-breaking spaces) and trims.
func cleanCell(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
