package analytics

import (
	"fmt"
	"sort"
	"time"

	"wdicli/internal/dataset"
)

// movingAverageWindow is the trailing window length for the smoothed
// series, current period inclusive.
const movingAverageWindow = 7

// TimeSeriesPoint is one day of aggregated activity. Only days with at
// least one transaction appear; gaps are not synthesized.
type TimeSeriesPoint struct {
	Date             time.Time `json:"date"`
	Volume           float64   `json:"volume"`
	TxCount          int       `json:"tx_count"`
	VolumeMA7        float64   `json:"volume_ma7"`
	TxCountMA7       float64   `json:"tx_count_ma7"`
	CumulativeVolume float64   `json:"cumulative_volume"`
}

// BuildTimeSeries groups a prepared dataset by calendar day and computes
// per-day volume and transaction counts, a 7-period trailing moving average
// over both (shrinking to however many periods exist, so the first point's
// average equals its own value), and the running cumulative volume.
// Rows whose timestamp is missing are excluded. A missing role column
// yields an empty series plus ErrMissingColumn.
func BuildTimeSeries(ds *dataset.Dataset, timestampCol, valueCol string) ([]TimeSeriesPoint, error) {
	times, ok := ds.ColumnValues(timestampCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, timestampCol)
	}
	values, ok := ds.ColumnValues(valueCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, valueCol)
	}

	byDay := make(map[time.Time]*TimeSeriesPoint)
	for r := range times {
		t, isTime := times[r].Time()
		if !isTime {
			continue
		}
		day := dataset.DateOf(t)
		pt := byDay[day]
		if pt == nil {
			pt = &TimeSeriesPoint{Date: day}
			byDay[day] = pt
		}
		pt.TxCount++
		if n, isNum := values[r].Number(); isNum {
			pt.Volume += n
		}
	}

	series := make([]TimeSeriesPoint, 0, len(byDay))
	for _, pt := range byDay {
		series = append(series, *pt)
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	var cumulative float64
	for i := range series {
		lo := i - movingAverageWindow + 1
		if lo < 0 {
			lo = 0
		}
		var volSum, cntSum float64
		for j := lo; j <= i; j++ {
			volSum += series[j].Volume
			cntSum += float64(series[j].TxCount)
		}
		window := float64(i - lo + 1)
		series[i].VolumeMA7 = volSum / window
		series[i].TxCountMA7 = cntSum / window

		cumulative += series[i].Volume
		series[i].CumulativeVolume = cumulative
	}

	return series, nil
}
