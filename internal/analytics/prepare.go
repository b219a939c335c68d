// Package analytics contains the aggregation engine: the preparer that
// time-orders and range-filters a dataset, and the four pure view
// computations (summary indicators, daily time series, top-N leaderboard,
// weekly cohort retention). Every function takes its dataset explicitly and
// shares no mutable state, so the presentation layer may recompute on every
// interaction and invoke them concurrently for different datasets.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"wdicli/internal/dataset"
)

// Prepare converts the timestamp column to parsed timestamps, applies the
// optional inclusive calendar-date range and sorts ascending by time. The
// input dataset is never mutated; the returned dataset is a prepared copy.
//
// Individual values that fail to parse become missing and never abort the
// run. With no range bounds such rows are retained and sort after every
// parseable row; once a bound is given they are dropped, since a missing
// date satisfies no inclusive comparison. A missing timestamp column is
// reported as ErrMissingColumn alongside the unfiltered, unsorted copy.
func Prepare(ds *dataset.Dataset, timestampCol string, start, end *time.Time) (*dataset.Dataset, error) {
	out := ds.Clone()
	if !out.HasColumn(timestampCol) {
		return out, fmt.Errorf("%w: %q", ErrMissingColumn, timestampCol)
	}

	n := out.NumRows()
	parsed := make([]time.Time, n)
	ok := make([]bool, n)
	for r := 0; r < n; r++ {
		cell, _ := out.Cell(r, timestampCol)
		if t, has := cell.Time(); has {
			parsed[r], ok[r] = t, true
			continue
		}
		if cell.Missing {
			continue
		}
		t, err := dataset.ParseTimestamp(cell.Raw)
		if err != nil {
			out.SetCell(r, timestampCol, dataset.MissingValue())
			continue
		}
		parsed[r], ok[r] = t, true
		out.SetCell(r, timestampCol, dataset.TimeValue(cell.Raw, t))
	}
	out.SetColumnKind(timestampCol, dataset.KindTime)

	keep := make([]int, 0, n)
	for r := 0; r < n; r++ {
		if start == nil && end == nil {
			keep = append(keep, r)
			continue
		}
		if !ok[r] {
			continue
		}
		day := dataset.DateOf(parsed[r])
		if start != nil && day.Before(dataset.DateOf(*start)) {
			continue
		}
		if end != nil && day.After(dataset.DateOf(*end)) {
			continue
		}
		keep = append(keep, r)
	}

	// Ascending by timestamp, unparseable rows last, original order kept
	// within ties.
	sort.SliceStable(keep, func(i, j int) bool {
		ri, rj := keep[i], keep[j]
		switch {
		case ok[ri] && ok[rj]:
			return parsed[ri].Before(parsed[rj])
		case ok[ri]:
			return true
		default:
			return false
		}
	})

	out.Retain(keep)
	return out, nil
}
