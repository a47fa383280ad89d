// backend/handlers/router.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tajaa/matcha-recruit-sub002/models"
	"github.com/tajaa/matcha-recruit-sub002/registry"
)

// SourceService is what the API needs from the orchestration layer.
// *services.StructuredSourceService implements it.
type SourceService interface {
	ListSources(ctx context.Context) ([]models.Source, error)
	FetchSourceByKey(ctx context.Context, key string) (models.FetchResult, error)
	FetchAllDueSources(ctx context.Context) models.RunSummary
	SetSourceActive(ctx context.Context, key string, active bool) error
	GetTier1Data(ctx context.Context, q models.Tier1Query) ([]models.Tier1Record, bool)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the Tier 1 lookup and admin API.
type Handler struct {
	svc      SourceService
	db       Pinger
	registry *registry.Registry
	logger   *log.Logger
}

// NewHandler creates a Handler. reg may be nil, in which case the candidates endpoint uses the
// embedded registry.
func NewHandler(svc SourceService, db Pinger, reg *registry.Registry, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{svc: svc, db: db, registry: reg, logger: logger}
}

// NewRouter mounts every route. metrics may be nil to leave /metrics unserved.
func NewRouter(h *Handler, metrics http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.loggingMiddleware)

	r.Get("/api/health", h.Health)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Get("/api/tier1", h.GetTier1)
	r.Get("/api/tier1/candidates", h.GetCandidates)

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/sources", h.ListSources)
		r.Patch("/sources/{key}", h.UpdateSource)
		r.Post("/sources/{key}/fetch", h.FetchSource)
		r.Post("/fetch-due", h.FetchDueSources)
	})

	return r
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Health pings the database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Error("Health check failed", "error", err)
			h.respondWithJSON(w, http.StatusServiceUnavailable, models.HealthResponse{
				Status:  "error",
				Message: "database connection error",
			})
			return
		}
	}
	h.respondWithJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
}
