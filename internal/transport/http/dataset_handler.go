// Package http holds the HTTP transport layer: chi routers, request
// decoding and RFC 7807 error responses over the analytics service.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "wdicli/internal/errors"
	"wdicli/internal/services"
)

// DatasetHandler serves dataset lifecycle requests: upload, list,
// inspect, delete.
type DatasetHandler struct {
	service        *services.AnalyticsService
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
	maxUploadBytes int64
}

// NewDatasetHandler creates a dataset handler.
func NewDatasetHandler(service *services.AnalyticsService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, maxUploadBytes int64) *DatasetHandler {
	return &DatasetHandler{
		service:        service,
		logger:         logger.With(slog.String("component", "dataset_handler")),
		errorHandler:   errorHandler,
		maxUploadBytes: maxUploadBytes,
	}
}

// DatasetCtx validates the dataset ID parameter.
func (h *DatasetHandler) DatasetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "Dataset ID is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Upload accepts a multipart form with a "file" part (CSV or XLSX) and an
// optional "name" field, stores the dataset and returns its profile.
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "A dataset file is required"))
		return
	}
	defer file.Close()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if v := r.FormValue("format"); v != "" {
		format = v
	}
	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	entry, err := h.service.Ingest(r.Context(), name, format, file)
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

// List returns all stored datasets, newest first.
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	datasets := h.service.ListDatasets(r.Context())
	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   datasets,
		"count":  len(datasets),
	})
}

// Get returns one dataset's metadata and detection profile.
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Dataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   entry,
	})
}

// Delete removes a stored dataset.
func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDataset(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.Status(r, http.StatusNoContent)
	render.NoContent(w, r)
}
