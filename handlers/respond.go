// backend/handlers/respond.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tajaa/matcha-recruit-sub002/models"
)

// respondWithJSON writes payload as a JSON response.
func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError writes {"error": message}.
func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	if code >= http.StatusInternalServerError {
		h.logger.Error("API error", "status", code, "message", message)
	} else {
		h.logger.Debug("API error", "status", code, "message", message)
	}
	h.respondWithJSON(w, code, models.ErrorResponse{Error: message})
}
