// Package exporter renders the derived analytics views as CSV, for file
// downloads from the HTTP API and for report files written by the CLI.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"wdicli/internal/analytics"
)

const dateLayout = "2006-01-02"

// writeCSV writes one header row plus records. A UTF-8 BOM is prepended so
// Excel opens the download with the right encoding.
func writeCSV(w io.Writer, headers []string, records [][]string) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSummary writes the summary indicators as a two-column CSV.
func WriteSummary(w io.Writer, s analytics.Summary) error {
	records := [][]string{
		{"total_volume", formatFloat(s.TotalVolume)},
		{"num_transactions", strconv.Itoa(s.NumTransactions)},
		{"unique_addresses", strconv.Itoa(s.UniqueAddresses)},
		{"active_days", strconv.Itoa(s.ActiveDays)},
		{"date_range_days", strconv.Itoa(s.DateRangeDays)},
		{"avg_tx_value", formatFloat(s.AvgTxValue)},
		{"avg_daily_volume", formatFloat(s.AvgDailyVolume)},
		{"avg_daily_txs", formatFloat(s.AvgDailyTxs)},
	}
	return writeCSV(w, []string{"indicator", "value"}, records)
}

// WriteTimeSeries writes the daily series with moving averages and the
// cumulative volume column.
func WriteTimeSeries(w io.Writer, series []analytics.TimeSeriesPoint) error {
	headers := []string{"date", "volume", "tx_count", "volume_ma7", "tx_count_ma7", "cumulative_volume"}
	records := make([][]string, 0, len(series))
	for _, pt := range series {
		records = append(records, []string{
			pt.Date.Format(dateLayout),
			formatFloat(pt.Volume),
			strconv.Itoa(pt.TxCount),
			formatFloat(pt.VolumeMA7),
			formatFloat(pt.TxCountMA7),
			formatFloat(pt.CumulativeVolume),
		})
	}
	return writeCSV(w, headers, records)
}

// WriteTopAddresses writes the ranked leaderboard.
func WriteTopAddresses(w io.Writer, entries []analytics.TopEntry) error {
	headers := []string{"rank", "address", "address_display", "total_volume", "tx_count"}
	records := make([][]string, 0, len(entries))
	for i, e := range entries {
		records = append(records, []string{
			strconv.Itoa(i + 1),
			e.Address,
			e.Display,
			formatFloat(e.TotalVolume),
			strconv.Itoa(e.TxCount),
		})
	}
	return writeCSV(w, headers, records)
}

// WriteCohortMatrix writes the retention pivot: one row per cohort week,
// one column per observed week offset. Absent cells stay empty, which is
// deliberately distinct from "0".
func WriteCohortMatrix(w io.Writer, m analytics.CohortMatrix) error {
	headers := make([]string, 0, len(m.Offsets)+2)
	headers = append(headers, "cohort_week", "cohort_size")
	for _, offset := range m.Offsets {
		headers = append(headers, fmt.Sprintf("week_%d", offset))
	}

	records := make([][]string, 0, len(m.Rows))
	for _, row := range m.Rows {
		record := make([]string, 0, len(headers))
		record = append(record, row.Week.Format(dateLayout), strconv.Itoa(row.Size))
		for _, offset := range m.Offsets {
			if cell, ok := row.Cells[offset]; ok {
				record = append(record, strconv.FormatFloat(cell.Retention, 'f', 1, 64))
			} else {
				record = append(record, "")
			}
		}
		records = append(records, record)
	}
	return writeCSV(w, headers, records)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
