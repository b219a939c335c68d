// Command analyze runs the full analysis pipeline over a local CSV or
// XLSX file and writes the four views as CSV reports.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wdicli/internal/analytics"
	"wdicli/internal/dataset"
	"wdicli/internal/detection"
	"wdicli/internal/exporter"
	"wdicli/internal/ingest"
)

func main() {
	input := flag.String("in", "", "input dataset file (.csv or .xlsx)")
	outputDir := flag.String("out", ".", "output directory for report CSVs")
	timestampCol := flag.String("timestamp", "", "timestamp column (default: auto-detect)")
	identityCol := flag.String("identity", "", "identity column (default: auto-detect)")
	valueCol := flag.String("value", "", "value column (default: auto-detect)")
	startStr := flag.String("start", "", "start date filter, YYYY-MM-DD (inclusive)")
	endStr := flag.String("end", "", "end date filter, YYYY-MM-DD (inclusive)")
	topN := flag.Int("top", 10, "number of leaderboard entries")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -in dataset.csv [-out dir] [-timestamp col] [-identity col] [-value col] [-start date] [-end date] [-top n]")
		os.Exit(2)
	}

	ds, err := loadDataset(*input)
	if err != nil {
		slog.Error("Failed to load dataset", "path", *input, "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded dataset", "path", *input, "rows", ds.NumRows(), "columns", ds.NumColumns())

	// Auto-detect role columns unless overridden
	match := detection.Detect(detection.DefaultRegistry(), ds)
	candidates := detection.Classify(ds)
	slog.Info("Template detection", "template", match.TemplateID, "score", match.Score)

	tsCol := pick(*timestampCol, match.Suggestions.Timestamp, candidates.Timestamps)
	idCol := pick(*identityCol, match.Suggestions.Identity, candidates.Identities)
	valCol := pick(*valueCol, match.Suggestions.Value, candidates.Values)
	slog.Info("Role columns", "timestamp", tsCol, "identity", idCol, "value", valCol)

	start, err := parseDateFlag(*startStr)
	if err != nil {
		slog.Error("Invalid -start", "error", err)
		os.Exit(1)
	}
	end, err := parseDateFlag(*endStr)
	if err != nil {
		slog.Error("Invalid -end", "error", err)
		os.Exit(1)
	}

	prepared, err := analytics.Prepare(ds, tsCol, start, end)
	if err != nil && !errors.Is(err, analytics.ErrMissingColumn) {
		slog.Error("Failed to prepare dataset", "error", err)
		os.Exit(1)
	}
	slog.Info("Prepared dataset", "rows", prepared.NumRows())

	summary, err := analytics.ComputeSummary(prepared, tsCol, idCol, valCol)
	warn("summary", err)
	printSummary(summary)

	series, err := analytics.BuildTimeSeries(prepared, tsCol, valCol)
	warn("timeseries", err)

	top, err := analytics.BuildTopAddresses(prepared, idCol, valCol, *topN)
	warn("top", err)

	cohort, err := analytics.BuildCohortRetention(prepared, tsCol, idCol)
	if errors.Is(err, analytics.ErrInsufficientData) {
		slog.Info("Cohort retention skipped, not enough distinct weeks")
	} else {
		warn("cohort", err)
	}

	if err := writeReports(*outputDir, summary, series, top, cohort); err != nil {
		slog.Error("Failed to write reports", "error", err)
		os.Exit(1)
	}
	slog.Info("Reports written", "dir", *outputDir)
}

func loadDataset(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ingest.ReadExcel(f)
	default:
		return ingest.ReadCSV(f)
	}
}

// pick resolves a role column: explicit flag, then the template
// suggestion, then the first classifier candidate.
func pick(explicit, suggested string, candidates []string) string {
	if explicit != "" {
		return explicit
	}
	if suggested != "" {
		return suggested
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

func parseDateFlag(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func warn(view string, err error) {
	if err != nil {
		slog.Warn("View degraded", "view", view, "reason", err.Error())
	}
}

func printSummary(s analytics.Summary) {
	fmt.Printf("Total volume:      %.2f\n", s.TotalVolume)
	fmt.Printf("Transactions:      %d\n", s.NumTransactions)
	fmt.Printf("Unique addresses:  %d\n", s.UniqueAddresses)
	fmt.Printf("Active days:       %d\n", s.ActiveDays)
	fmt.Printf("Date range (days): %d\n", s.DateRangeDays)
	fmt.Printf("Avg tx value:      %.2f\n", s.AvgTxValue)
	fmt.Printf("Avg daily volume:  %.2f\n", s.AvgDailyVolume)
	fmt.Printf("Avg daily txs:     %.2f\n", s.AvgDailyTxs)
}

func writeReports(dir string, summary analytics.Summary, series []analytics.TimeSeriesPoint, top []analytics.TopEntry, cohort analytics.CohortMatrix) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	writers := []struct {
		name  string
		write func(f *os.File) error
	}{
		{"summary.csv", func(f *os.File) error { return exporter.WriteSummary(f, summary) }},
		{"timeseries.csv", func(f *os.File) error { return exporter.WriteTimeSeries(f, series) }},
		{"top_addresses.csv", func(f *os.File) error { return exporter.WriteTopAddresses(f, top) }},
		{"cohort_retention.csv", func(f *os.File) error { return exporter.WriteCohortMatrix(f, cohort) }},
	}
	for _, w := range writers {
		f, err := os.Create(filepath.Join(dir, w.name))
		if err != nil {
			return err
		}
		if err := w.write(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
