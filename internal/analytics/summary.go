package analytics

import (
	"errors"
	"fmt"
	"time"

	"wdicli/internal/dataset"
)

// Summary holds the headline indicators for a prepared dataset.
type Summary struct {
	TotalVolume     float64 `json:"total_volume"`
	NumTransactions int     `json:"num_transactions"`
	UniqueAddresses int     `json:"unique_addresses"`
	ActiveDays      int     `json:"active_days"`
	DateRangeDays   int     `json:"date_range_days"`
	AvgTxValue      float64 `json:"avg_tx_value"`
	AvgDailyVolume  float64 `json:"avg_daily_volume"`
	AvgDailyTxs     float64 `json:"avg_daily_txs"`
}

// ComputeSummary computes the summary indicators over a prepared dataset.
// Absent role columns zero the affected indicators rather than failing the
// whole summary; every absence is reported through the joined error so the
// caller can surface it once.
func ComputeSummary(ds *dataset.Dataset, timestampCol, identityCol, valueCol string) (Summary, error) {
	var s Summary
	var errs []error

	s.NumTransactions = ds.NumRows()

	if values, ok := ds.ColumnValues(valueCol); ok {
		for _, v := range values {
			if n, isNum := v.Number(); isNum {
				s.TotalVolume += n
			}
		}
	} else {
		errs = append(errs, fmt.Errorf("%w: %q", ErrMissingColumn, valueCol))
	}

	if values, ok := ds.ColumnValues(identityCol); ok {
		seen := make(map[string]struct{})
		for _, v := range values {
			if v.Missing {
				continue
			}
			seen[v.Text()] = struct{}{}
		}
		s.UniqueAddresses = len(seen)
	} else {
		errs = append(errs, fmt.Errorf("%w: %q", ErrMissingColumn, identityCol))
	}

	if values, ok := ds.ColumnValues(timestampCol); ok {
		days := make(map[time.Time]struct{})
		var minTS, maxTS time.Time
		have := false
		for _, v := range values {
			t, isTime := v.Time()
			if !isTime {
				continue
			}
			days[dataset.DateOf(t)] = struct{}{}
			if !have || t.Before(minTS) {
				minTS = t
			}
			if !have || t.After(maxTS) {
				maxTS = t
			}
			have = true
		}
		s.ActiveDays = len(days)
		if have {
			// Whole days between first and last timestamp, inclusive.
			s.DateRangeDays = int(maxTS.Sub(minTS).Hours()/24) + 1
		}
	} else {
		errs = append(errs, fmt.Errorf("%w: %q", ErrMissingColumn, timestampCol))
	}

	if s.NumTransactions > 0 {
		s.AvgTxValue = s.TotalVolume / float64(s.NumTransactions)
	}
	if s.ActiveDays > 0 {
		s.AvgDailyVolume = s.TotalVolume / float64(s.ActiveDays)
		s.AvgDailyTxs = float64(s.NumTransactions) / float64(s.ActiveDays)
	}

	return s, errors.Join(errs...)
}
