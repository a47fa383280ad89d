// backend/models/results.go
package models

import "github.com/google/uuid"

// FetchResult summarizes one fetch_source call.
type FetchResult struct {
	SourceID    uuid.UUID   `json:"source_id"`
	SourceKey   string      `json:"source_key,omitempty"`
	Status      FetchStatus `json:"status"`
	RecordCount int         `json:"record_count"`
	Error       string      `json:"error,omitempty"`
}

// RunSummary aggregates one fetch_all_due_sources pass.
type RunSummary struct {
	SourcesProcessed int           `json:"sources_processed"`
	TotalRecords     int           `json:"total_records"`
	Errors           int           `json:"errors"`
	Results          []FetchResult `json:"results"`
}
