// Package ingest turns uploaded files into dataset.Dataset values. It owns
// the file-format concerns (CSV dialects, XLSX sheets, header rows) so the
// analytics core only ever sees an already-typed table.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"wdicli/internal/dataset"
)

// maxColumns caps how wide an upload may be; anything larger is almost
// certainly not an analytics export.
const maxColumns = 512

// ReadCSV parses CSV content into a dataset. The first record is the
// header; every header cell must be non-empty and unique. Records with a
// deviating field count are tolerated (short rows pad with missing cells).
func ReadCSV(r io.Reader) (*dataset.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	header = stripBOM(header)
	if len(header) > maxColumns {
		return nil, fmt.Errorf("too many columns: %d (max %d)", len(header), maxColumns)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}

	var rows [][]dataset.Value
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV record %d: %w", len(rows)+2, err)
		}
		rows = append(rows, toCells(record, len(names)))
	}

	ds, err := dataset.New(names, rows)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	return ds, nil
}

// toCells converts raw record fields to cells, padding or truncating to
// the header width.
func toCells(record []string, width int) []dataset.Value {
	cells := make([]dataset.Value, width)
	for i := 0; i < width; i++ {
		if i < len(record) {
			cells[i] = dataset.TextValue(record[i])
		} else {
			cells[i] = dataset.MissingValue()
		}
	}
	return cells
}

// stripBOM removes a UTF-8 byte order mark from the first header cell.
// Excel-produced CSVs routinely carry one.
func stripBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	return header
}
