package http

import (
	"errors"
	"net/http"

	"wdicli/internal/analytics"
	"wdicli/internal/dune"
	apierrors "wdicli/internal/errors"
	"wdicli/internal/services"
)

// mapServiceError translates domain sentinels into APIErrors so the
// error handler can emit typed problem documents. Unknown errors pass
// through and surface as 500s.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, services.ErrDatasetNotFound):
		return apierrors.New(http.StatusNotFound, "DATASET_NOT_FOUND", "Dataset not found")
	case errors.Is(err, services.ErrStoreFull):
		return apierrors.New(http.StatusConflict, "STORE_FULL", "Dataset store is at capacity; delete a dataset first")
	case errors.Is(err, services.ErrUnsupportedFormat):
		return apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Unsupported dataset format", err.Error())
	case errors.Is(err, services.ErrDatasetMalformed):
		return apierrors.NewWithDetails(http.StatusBadRequest, "DATASET_MALFORMED", "Dataset could not be parsed", err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		return apierrors.NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", err.Error())
	case errors.Is(err, analytics.ErrMissingColumn):
		return apierrors.NewWithDetails(http.StatusUnprocessableEntity, "COLUMN_NOT_FOUND", "A role column does not exist in the dataset", err.Error())
	case errors.Is(err, dune.ErrMissingAPIKey):
		return apierrors.New(http.StatusServiceUnavailable, "DUNE_UNAVAILABLE", "Dune integration is not configured")
	case errors.Is(err, dune.ErrQueryFailed):
		return apierrors.NewWithDetails(http.StatusBadGateway, "DUNE_UNAVAILABLE", "Dune query execution failed", err.Error())
	default:
		return err
	}
}
