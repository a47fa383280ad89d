// backend/handlers/tier1_handler.go
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tajaa/matcha-recruit-sub002/models"
	"github.com/tajaa/matcha-recruit-sub002/registry"
	"github.com/tajaa/matcha-recruit-sub002/utils"
)

// GetTier1 answers GET /api/tier1?state=CA&city=...&county=...&categories=a,b&freshness_hours=N.
// A miss is a 200 with found=false so callers can fall back without treating it as an error.
func (h *Handler) GetTier1(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.Tier1Query{
		JurisdictionID: q.Get("jurisdiction_id"),
		City:           strings.TrimSpace(q.Get("city")),
		County:         strings.TrimSpace(q.Get("county")),
		State:          strings.TrimSpace(q.Get("state")),
		Categories:     splitList(q["categories"]),
	}
	if query.State == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing 'state' query parameter")
		return
	}
	if raw := q.Get("freshness_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			h.respondWithError(w, http.StatusBadRequest, "'freshness_hours' must be a positive integer")
			return
		}
		query.FreshnessHours = hours
	}

	records, found := h.svc.GetTier1Data(r.Context(), query)
	if records == nil {
		records = []models.Tier1Record{}
	}
	h.respondWithJSON(w, http.StatusOK, models.Tier1Response{Found: found, Records: records})
}

// GetCandidates lists registry sources that could answer a lookup.
func (h *Handler) GetCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state, ok := utils.NormalizeState(q.Get("state"))
	if !ok {
		h.respondWithError(w, http.StatusBadRequest, "Missing or unrecognized 'state' query parameter")
		return
	}

	reg := h.registry
	if reg == nil {
		var err error
		if reg, err = registry.Default(); err != nil {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to load source registry")
			return
		}
	}
	keys := reg.CandidateSources(state, q.Get("city"), q.Get("county"), q.Get("category"))
	if keys == nil {
		keys = []string{}
	}
	h.respondWithJSON(w, http.StatusOK, models.CandidatesResponse{Sources: keys})
}

// splitList accepts both ?categories=a,b and repeated ?categories=a&categories=b.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
