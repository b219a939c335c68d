package services

import "errors"

// Service errors
var (
	// Dataset store errors
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrStoreFull       = errors.New("dataset store full")

	// Ingestion errors
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrDatasetMalformed  = errors.New("dataset malformed")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
