// backend/models/tier1.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Tier1Query is a lookup request from the compliance engine.
type Tier1Query struct {
	JurisdictionID string   `json:"jurisdiction_id,omitempty"`
	City           string   `json:"city,omitempty"`
	County         string   `json:"county,omitempty"`
	State          string   `json:"state"`
	Categories     []string `json:"categories,omitempty"`
	FreshnessHours int      `json:"freshness_hours,omitempty"`
}

// CacheLookup is what the store needs to answer one category of a Tier1Query.
type CacheLookup struct {
	State           string
	Category        string
	JurisdictionKey string
	FetchedSince    time.Time
}

// Tier1Row is a cache row joined with the owning source.
type Tier1Row struct {
	CacheEntry
	SourceName string
	SourceKey  string
}

// Tier1Record is the normalized shape handed to the compliance engine.
type Tier1Record struct {
	Title              string    `json:"title"`
	Category           string    `json:"category"`
	JurisdictionLevel  string    `json:"jurisdiction_level"`
	JurisdictionName   string    `json:"jurisdiction_name"`
	CurrentValue       string    `json:"current_value"`
	NumericValue       *float64  `json:"numeric_value"`
	EffectiveDate      string    `json:"effective_date,omitempty"`
	Description        string    `json:"description"`
	SourceURL          string    `json:"source_url"`
	SourceName         string    `json:"source_name"`
	RateType           string    `json:"rate_type"`
	SourceTier         int       `json:"_source_tier"`
	StructuredSourceID uuid.UUID `json:"_structured_source_id"`
}
