package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "wdicli/internal/errors"
	"wdicli/internal/services"
)

// DuneHandler serves Dune Analytics integration requests.
type DuneHandler struct {
	service      *services.AnalyticsService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDuneHandler creates a Dune handler.
func NewDuneHandler(service *services.AnalyticsService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DuneHandler {
	return &DuneHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dune_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the Dune routes.
func (h *DuneHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/fetch", h.Fetch)
	return r
}

// Fetch runs a saved Dune query and stores the result as a dataset.
func (h *DuneHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	var req services.DuneFetchRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	entry, err := h.service.FetchFromDune(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   entry,
	})
}
