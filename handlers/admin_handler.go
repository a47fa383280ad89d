// backend/handlers/admin_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tajaa/matcha-recruit-sub002/database"
	"github.com/tajaa/matcha-recruit-sub002/models"
)

// ListSources returns every source with its refresh status.
// GET /api/admin/sources
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.svc.ListSources(r.Context())
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list sources: %v", err))
		return
	}
	if sources == nil {
		sources = []models.Source{}
	}
	h.respondWithJSON(w, http.StatusOK, models.SourcesResponse{Sources: sources})
}

// FetchSource refreshes one source now, regardless of its interval.
// POST /api/admin/sources/{key}/fetch
func (h *Handler) FetchSource(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	result, err := h.svc.FetchSourceByKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			h.respondWithError(w, http.StatusNotFound, fmt.Sprintf("Unknown source '%s'", key))
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch %s: %v", key, err))
		return
	}
	h.logger.Info("Manual source refresh", "source", key, "status", result.Status, "records", result.RecordCount)
	h.respondWithJSON(w, http.StatusOK, result)
}

// FetchDueSources runs one refresh cycle synchronously.
// POST /api/admin/fetch-due
func (h *Handler) FetchDueSources(w http.ResponseWriter, r *http.Request) {
	summary := h.svc.FetchAllDueSources(r.Context())
	h.respondWithJSON(w, http.StatusOK, summary)
}

// UpdateSource enables or disables a source.
// PATCH /api/admin/sources/{key} with {"is_active": false}
func (h *Handler) UpdateSource(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	defer r.Body.Close()

	var req models.SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.IsActive == nil {
		h.respondWithError(w, http.StatusBadRequest, "Missing 'is_active' in request body")
		return
	}

	if err := h.svc.SetSourceActive(r.Context(), key, *req.IsActive); err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			h.respondWithError(w, http.StatusNotFound, fmt.Sprintf("Unknown source '%s'", key))
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update %s: %v", key, err))
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]any{"source_key": key, "is_active": *req.IsActive})
}
