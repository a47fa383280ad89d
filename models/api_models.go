// backend/models/api_models.go
package models

// SetActiveRequest is the JSON body for PATCH /api/admin/sources/{key}.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active"` // required
}

// Tier1Response wraps a lookup. Found is false when the caller should fall back to a lower tier.
type Tier1Response struct {
	Found   bool          `json:"found"`
	Records []Tier1Record `json:"records"`
}

// CandidatesResponse lists registry keys that could answer a lookup, most specific first.
type CandidatesResponse struct {
	Sources []string `json:"sources"`
}

// SourcesResponse is returned by GET /api/admin/sources.
type SourcesResponse struct {
	Sources []Source `json:"sources"`
}

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
