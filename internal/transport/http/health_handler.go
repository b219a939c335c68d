package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"wdicli/internal/services"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store     *services.DatasetStore
	logger    *slog.Logger
	version   string
	startedAt time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(store *services.DatasetStore, logger *slog.Logger, version string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		logger:    logger.With(slog.String("component", "health_handler")),
		version:   version,
		startedAt: time.Now().UTC(),
	}
}

// Routes returns the health routes.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.Health)
	return r
}

// Health reports process status, uptime and store occupancy.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":   "healthy",
		"version":  h.version,
		"uptime":   time.Since(h.startedAt).String(),
		"datasets": h.store.Len(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
