// backend/models/source.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Format identifies how a source document is laid out.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatHTMLTable Format = "html_table"
)

// CoverageScope says whether a source publishes state-level or local rates.
type CoverageScope string

const (
	CoverageState      CoverageScope = "state"
	CoverageCityCounty CoverageScope = "city_county"
)

// FetchStatus is the outcome of the most recent refresh attempt.
// The zero value means the source has never been fetched.
type FetchStatus string

const (
	FetchStatusUnset   FetchStatus = ""
	FetchStatusSuccess FetchStatus = "success"
	FetchStatusEmpty   FetchStatus = "empty"
	FetchStatusError   FetchStatus = "error"
)

// Source is one row of structured_data_sources. The descriptive fields are seeded from the
// registry; the Last* fields and RecordCount are only written by the refresh cycle.
type Source struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	SourceKey          string          `db:"source_key" json:"source_key"`
	SourceName         string          `db:"source_name" json:"source_name"`
	SourceURL          string          `db:"source_url" json:"source_url"`
	Format             Format          `db:"format" json:"format"`
	Domain             string          `db:"domain" json:"domain"`
	Categories         []string        `db:"categories" json:"categories"`
	CoverageScope      CoverageScope   `db:"coverage_scope" json:"coverage_scope"`
	CoverageStates     []string        `db:"coverage_states" json:"coverage_states,omitempty"`
	FetchIntervalHours int             `db:"fetch_interval_hours" json:"fetch_interval_hours"`
	ParserConfig       json.RawMessage `db:"parser_config" json:"parser_config"`
	LastFetchedAt      *time.Time      `db:"last_fetched_at" json:"last_fetched_at,omitempty"`
	LastFetchStatus    FetchStatus     `db:"last_fetch_status" json:"last_fetch_status,omitempty"`
	LastFetchError     string          `db:"last_fetch_error" json:"last_fetch_error,omitempty"`
	RecordCount        int             `db:"record_count" json:"record_count"`
	IsActive           bool            `db:"is_active" json:"is_active"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// PrimaryCategory is the category stamped on every record the source produces.
func (s *Source) PrimaryCategory() string {
	if len(s.Categories) == 0 {
		return s.Domain
	}
	return s.Categories[0]
}

// IsDue reports whether the source should be refreshed at now.
func (s *Source) IsDue(now time.Time) bool {
	if s.LastFetchedAt == nil {
		return true
	}
	interval := time.Duration(s.FetchIntervalHours) * time.Hour
	return !s.LastFetchedAt.Add(interval).After(now)
}

// SourceStatusUpdate is the bookkeeping written after every fetch attempt.
type SourceStatusUpdate struct {
	FetchedAt   time.Time
	Status      FetchStatus
	Error       string
	RecordCount int
}
