package analytics

import (
	"fmt"
	"sort"
	"time"

	"wdicli/internal/dataset"
)

// CohortCell is one retention measurement: the share of a cohort's
// identities active at a given week offset, as a percentage of the
// cohort's week-0 size.
type CohortCell struct {
	ActiveUsers int     `json:"active_users"`
	Retention   float64 `json:"retention_pct"`
}

// CohortRow is one cohort: every identity whose first activity fell in the
// same calendar week. Cells is keyed by weeks-since-first-activity; a
// missing offset means no member of the cohort was observed that week,
// which is distinct from 0% retention. Week 0 is always present and always
// 100%.
type CohortRow struct {
	Week  time.Time          `json:"cohort_week"`
	Size  int                `json:"cohort_size"`
	Cells map[int]CohortCell `json:"cells"`
}

// CohortMatrix is the weekly retention pivot. Rows are ordered by cohort
// week ascending; Offsets is the sorted union of week offsets observed for
// any cohort.
type CohortMatrix struct {
	Rows    []CohortRow `json:"rows"`
	Offsets []int       `json:"offsets"`
}

// Empty reports whether the matrix carries no cohorts.
func (m CohortMatrix) Empty() bool {
	return len(m.Rows) == 0
}

// weekStart truncates a timestamp to the Monday starting its ISO week.
// The Monday-start convention is a deliberate choice; it shifts cohort
// membership at week margins relative to other conventions and is part of
// the documented behavior.
func weekStart(t time.Time) time.Time {
	day := dataset.DateOf(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// BuildCohortRetention assigns every row to the ISO week of its timestamp,
// derives each identity's first-activity week (its cohort), and counts
// distinct identities per (cohort week, weeks since first activity). Each
// cohort row's counts are normalized by its week-0 size into retention
// percentages. Rows with a missing timestamp or identity are excluded.
//
// Fewer than two distinct cohort weeks is not enough signal for a
// retention read: the matrix comes back empty together with
// ErrInsufficientData, which callers treat as "not enough data" rather
// than a failure. A missing role column yields an empty matrix plus
// ErrMissingColumn.
func BuildCohortRetention(ds *dataset.Dataset, timestampCol, identityCol string) (CohortMatrix, error) {
	times, ok := ds.ColumnValues(timestampCol)
	if !ok {
		return CohortMatrix{}, fmt.Errorf("%w: %q", ErrMissingColumn, timestampCol)
	}
	identities, ok := ds.ColumnValues(identityCol)
	if !ok {
		return CohortMatrix{}, fmt.Errorf("%w: %q", ErrMissingColumn, identityCol)
	}

	type activity struct {
		week     time.Time
		identity string
	}
	var activities []activity
	firstWeek := make(map[string]time.Time)

	for r := range times {
		t, isTime := times[r].Time()
		if !isTime || identities[r].Missing {
			continue
		}
		week := weekStart(t)
		id := identities[r].Text()
		activities = append(activities, activity{week: week, identity: id})
		if first, seen := firstWeek[id]; !seen || week.Before(first) {
			firstWeek[id] = week
		}
	}

	// Distinct identities per (cohort week, week offset).
	counts := make(map[time.Time]map[int]map[string]struct{})
	for _, a := range activities {
		cohort := firstWeek[a.identity]
		offset := int(a.week.Sub(cohort).Hours() / (24 * 7))
		if counts[cohort] == nil {
			counts[cohort] = make(map[int]map[string]struct{})
		}
		if counts[cohort][offset] == nil {
			counts[cohort][offset] = make(map[string]struct{})
		}
		counts[cohort][offset][a.identity] = struct{}{}
	}

	if len(counts) < 2 {
		return CohortMatrix{}, ErrInsufficientData
	}

	cohorts := make([]time.Time, 0, len(counts))
	for week := range counts {
		cohorts = append(cohorts, week)
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i].Before(cohorts[j]) })

	offsetSet := make(map[int]struct{})
	matrix := CohortMatrix{Rows: make([]CohortRow, 0, len(cohorts))}
	for _, week := range cohorts {
		// Week 0 holds every identity born in this week, so size >= 1.
		size := len(counts[week][0])
		row := CohortRow{Week: week, Size: size, Cells: make(map[int]CohortCell, len(counts[week]))}
		for offset, ids := range counts[week] {
			offsetSet[offset] = struct{}{}
			row.Cells[offset] = CohortCell{
				ActiveUsers: len(ids),
				Retention:   float64(len(ids)) / float64(size) * 100,
			}
		}
		matrix.Rows = append(matrix.Rows, row)
	}

	matrix.Offsets = make([]int, 0, len(offsetSet))
	for offset := range offsetSet {
		matrix.Offsets = append(matrix.Offsets, offset)
	}
	sort.Ints(matrix.Offsets)

	return matrix, nil
}
