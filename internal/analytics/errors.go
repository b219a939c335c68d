package analytics

import "errors"

// Sentinel errors surfaced by the analytics core. None of them is fatal:
// every function returning one also returns its best safe default (an
// unmodified copy, a zeroed summary, an empty table) so the caller can keep
// rendering.
var (
	// ErrMissingColumn reports that a role-mapped column does not exist in
	// the dataset. Recoverable; the computation returns its safe default.
	ErrMissingColumn = errors.New("column not found in dataset")

	// ErrInsufficientData reports that the dataset lacks enough distinct
	// time buckets for a meaningful aggregate (fewer than 2 cohort weeks).
	// Not a failure; callers render it as "not enough data".
	ErrInsufficientData = errors.New("not enough data")
)
