package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"wdicli/internal/analytics"
	apierrors "wdicli/internal/errors"
	"wdicli/internal/exporter"
	"wdicli/internal/services"
)

// AnalyticsHandler serves the aggregate views over stored datasets.
type AnalyticsHandler struct {
	service      *services.AnalyticsService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalyticsHandler creates an analytics handler.
func NewAnalyticsHandler(service *services.AnalyticsService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "analytics_handler")),
		errorHandler: errorHandler,
	}
}

// requestFromQuery builds an AnalysisRequest from URL query parameters.
// Dates accept YYYY-MM-DD or RFC 3339.
func requestFromQuery(r *http.Request) (services.AnalysisRequest, error) {
	q := r.URL.Query()
	req := services.AnalysisRequest{
		TimestampColumn: q.Get("timestamp_column"),
		IdentityColumn:  q.Get("identity_column"),
		ValueColumn:     q.Get("value_column"),
	}

	if v := q.Get("start"); v != "" {
		t, err := parseDateParam(v)
		if err != nil {
			return req, fmt.Errorf("start: %w", err)
		}
		req.Start = &t
	}
	if v := q.Get("end"); v != "" {
		t, err := parseDateParam(v)
		if err != nil {
			return req, fmt.Errorf("end: %w", err)
		}
		req.End = &t
	}
	if v := q.Get("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return req, fmt.Errorf("top_n: must be a positive integer")
		}
		req.TopN = n
	}
	return req, nil
}

func parseDateParam(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", v)
}

// Analyze runs all four views over a dataset in one request.
func (h *AnalyticsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req services.AnalysisRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.service.Analyze(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   result,
	})
}

// Summary returns the KPI summary view.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	summary, roles, err := h.service.Summary(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil && !errors.Is(err, analytics.ErrMissingColumn) {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	payload := map[string]any{
		"status": "success",
		"data":   summary,
		"roles":  roles,
	}
	if err != nil {
		payload["warnings"] = []string{err.Error()}
	}
	render.JSON(w, r, payload)
}

// TimeSeries returns the daily activity view.
func (h *AnalyticsHandler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	series, roles, err := h.service.TimeSeries(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil && !errors.Is(err, analytics.ErrMissingColumn) {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	payload := map[string]any{
		"status": "success",
		"data":   series,
		"roles":  roles,
		"count":  len(series),
	}
	if err != nil {
		payload["warnings"] = []string{err.Error()}
	}
	render.JSON(w, r, payload)
}

// TopAddresses returns the leaderboard view.
func (h *AnalyticsHandler) TopAddresses(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	entries, roles, err := h.service.TopAddresses(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil && !errors.Is(err, analytics.ErrMissingColumn) {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	payload := map[string]any{
		"status": "success",
		"data":   entries,
		"roles":  roles,
		"count":  len(entries),
	}
	if err != nil {
		payload["warnings"] = []string{err.Error()}
	}
	render.JSON(w, r, payload)
}

// Cohort returns the weekly retention view. A dataset with fewer than two
// cohort weeks is not an error: the response carries an empty matrix with
// insufficient_data set.
func (h *AnalyticsHandler) Cohort(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	matrix, roles, err := h.service.CohortRetention(r.Context(), chi.URLParam(r, "id"), req)
	switch {
	case err == nil:
	case errors.Is(err, analytics.ErrInsufficientData), errors.Is(err, analytics.ErrMissingColumn):
		// recoverable; fall through with the empty matrix
	default:
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	payload := map[string]any{
		"status":            "success",
		"data":              matrix,
		"roles":             roles,
		"insufficient_data": errors.Is(err, analytics.ErrInsufficientData),
	}
	if err != nil {
		payload["warnings"] = []string{err.Error()}
	}
	render.JSON(w, r, payload)
}

// Export streams one view as a CSV attachment. view is one of summary,
// timeseries, top, cohort.
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	id := chi.URLParam(r, "id")
	view := chi.URLParam(r, "view")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%s.csv", view, id))

	switch view {
	case "summary":
		summary, _, err := h.service.Summary(r.Context(), id, req)
		if err != nil && !errors.Is(err, analytics.ErrMissingColumn) {
			h.exportError(w, r, err)
			return
		}
		err = exporter.WriteSummary(w, summary)
		h.logExportError(r, view, err)
	case "timeseries":
		series, _, err := h.service.TimeSeries(r.Context(), id, req)
		if err != nil && !errors.Is(err, analytics.ErrMissingColumn) {
			h.exportError(w, r, err)
			return
		}
		err = exporter.WriteTimeSeries(w, series)
		h.logExportError(r, view, err)
	case "top":
		entries, _, err := h.service.TopAddresses(r.Context(), id, req)
		if err != nil && !errors.Is(err, analytics.ErrMissingColumn) {
			h.exportError(w, r, err)
			return
		}
		err = exporter.WriteTopAddresses(w, entries)
		h.logExportError(r, view, err)
	case "cohort":
		matrix, _, err := h.service.CohortRetention(r.Context(), id, req)
		if err != nil && !errors.Is(err, analytics.ErrInsufficientData) && !errors.Is(err, analytics.ErrMissingColumn) {
			h.exportError(w, r, err)
			return
		}
		err = exporter.WriteCohortMatrix(w, matrix)
		h.logExportError(r, view, err)
	default:
		h.exportError(w, r, apierrors.ErrValidation("view", "Unknown export view; expected summary, timeseries, top or cohort"))
	}
}

// exportError resets the CSV headers before delegating to the error
// handler so the client gets a problem document, not half a download.
func (h *AnalyticsHandler) exportError(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Del("Content-Disposition")
	h.errorHandler.HandleError(w, r, mapServiceError(err))
}

// logExportError records write failures after headers have gone out.
func (h *AnalyticsHandler) logExportError(r *http.Request, view string, err error) {
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export write failed",
			slog.String("view", view),
			slog.String("error", err.Error()),
		)
	}
}
