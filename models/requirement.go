// backend/models/requirement.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Jurisdiction levels, most specific first.
const (
	LevelCity   = "city"
	LevelCounty = "county"
	LevelState  = "state"
)

// DefaultRateType is used when a parser config does not name one.
const DefaultRateType = "general"

// ParsedRequirement is one normalized row produced by a parser. It only lives between the
// parse call and the cache upsert.
type ParsedRequirement struct {
	JurisdictionKey    string            `json:"jurisdiction_key"`
	JurisdictionName   string            `json:"jurisdiction_name"`
	JurisdictionLevel  string            `json:"jurisdiction_level"`
	State              string            `json:"state"`
	Category           string            `json:"category"`
	RateType           string            `json:"rate_type"`
	CurrentValue       string            `json:"current_value"`
	NumericValue       *float64          `json:"numeric_value,omitempty"`
	EffectiveDate      *time.Time        `json:"effective_date,omitempty"`
	NextScheduledDate  *time.Time        `json:"next_scheduled_date,omitempty"`
	NextScheduledValue string            `json:"next_scheduled_value,omitempty"`
	SourceURL          string            `json:"source_url"`
	Notes              string            `json:"notes,omitempty"`
	RawData            map[string]string `json:"raw_data,omitempty"`
}

// CacheEntry is a row of structured_data_cache, unique on
// (source_id, jurisdiction_key, category, rate_type).
type CacheEntry struct {
	ID       int64     `db:"id" json:"id"`
	SourceID uuid.UUID `db:"source_id" json:"source_id"`
	ParsedRequirement
	FetchedAt time.Time `db:"fetched_at" json:"fetched_at"`
}

// LevelRank orders jurisdiction levels city < county < state.
func LevelRank(level string) int {
	switch level {
	case LevelCity:
		return 0
	case LevelCounty:
		return 1
	default:
		return 2
	}
}
