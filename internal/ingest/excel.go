package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"wdicli/internal/dataset"
)

// ReadExcel parses the first non-empty sheet of an XLSX workbook into a
// dataset. The first populated row is the header.
func ReadExcel(r io.Reader) (*dataset.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var records [][]string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if len(rows) > 0 {
			records = rows
			break
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("workbook has no populated sheet")
	}

	header := stripBOM(records[0])
	if len(header) > maxColumns {
		return nil, fmt.Errorf("too many columns: %d (max %d)", len(header), maxColumns)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}

	rows := make([][]dataset.Value, 0, len(records)-1)
	for _, record := range records[1:] {
		rows = append(rows, toCells(record, len(names)))
	}

	ds, err := dataset.New(names, rows)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	return ds, nil
}
