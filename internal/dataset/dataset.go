// Package dataset provides the typed tabular dataset abstraction shared by
// the classification, detection and analytics packages. A Dataset is an
// ordered set of named columns with semantic kind tags inferred once at load
// time, plus an ordered sequence of rows. Datasets are immutable after
// construction; operations that need to mutate (timestamp conversion, range
// filtering, sorting) work on a copy.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred semantic type of a column.
type Kind int

const (
	// KindText is the default for anything that is not uniformly numeric.
	KindText Kind = iota
	// KindNumber marks columns whose every non-missing value parses as a float.
	KindNumber
	// KindTime marks text columns whose sampled values overwhelmingly parse
	// as timestamps (at least 80% of up to 100 sampled non-missing values).
	KindTime
)

// String returns the kind name used in API responses.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	default:
		return "text"
	}
}

// Column describes one dataset column.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"-"`
}

// Value is a single cell. A missing cell has Missing set and zero values
// elsewhere. Parsed holds the timestamp once a column has been converted by
// the preparer; until then time-like cells carry only their raw text.
type Value struct {
	Raw     string
	Num     float64
	Parsed  time.Time
	Missing bool
	isNum   bool
	isTime  bool
}

// Text returns the raw textual form of the value.
func (v Value) Text() string {
	if v.Missing {
		return ""
	}
	return v.Raw
}

// Number returns the numeric form and whether the value is numeric.
func (v Value) Number() (float64, bool) {
	return v.Num, v.isNum && !v.Missing
}

// Time returns the parsed timestamp and whether one is present.
func (v Value) Time() (time.Time, bool) {
	return v.Parsed, v.isTime && !v.Missing
}

// TextValue builds a text cell. Empty strings become missing cells.
func TextValue(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{Missing: true}
	}
	return Value{Raw: s}
}

// NumberValue builds a numeric cell.
func NumberValue(raw string, n float64) Value {
	return Value{Raw: raw, Num: n, isNum: true}
}

// TimeValue builds a parsed timestamp cell.
func TimeValue(raw string, t time.Time) Value {
	return Value{Raw: raw, Parsed: t, isTime: true}
}

// MissingValue builds a missing cell.
func MissingValue() Value {
	return Value{Missing: true}
}

// Dataset is an immutable table of rows keyed by column name.
type Dataset struct {
	cols  []Column
	index map[string]int
	rows  [][]Value
}

// New builds a dataset from ordered columns and rows. Column kinds are
// inferred from the data; see InferKind. Rows shorter than the column set
// are padded with missing cells, longer rows are truncated.
func New(names []string, rows [][]Value) (*Dataset, error) {
	index := make(map[string]int, len(names))
	cols := make([]Column, len(names))
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", name)
		}
		index[name] = i
		cols[i] = Column{Name: name}
	}

	normalized := make([][]Value, len(rows))
	for r, row := range rows {
		if len(row) == len(cols) {
			normalized[r] = row
			continue
		}
		fixed := make([]Value, len(cols))
		for c := range fixed {
			if c < len(row) {
				fixed[c] = row[c]
			} else {
				fixed[c] = MissingValue()
			}
		}
		normalized[r] = fixed
	}

	ds := &Dataset{cols: cols, index: index, rows: normalized}
	for i := range ds.cols {
		ds.cols[i].Kind = ds.inferKind(i)
		if ds.cols[i].Kind == KindNumber {
			ds.materializeNumbers(i)
		}
	}
	return ds, nil
}

// materializeNumbers converts the raw cells of a numeric column so that
// Value.Number succeeds without reparsing on every access.
func (d *Dataset) materializeNumbers(col int) {
	for r, row := range d.rows {
		v := row[col]
		if v.Missing || v.isNum {
			continue
		}
		if n, err := ParseNumber(v.Raw); err == nil {
			d.rows[r][col] = NumberValue(v.Raw, n)
		} else {
			d.rows[r][col] = MissingValue()
		}
	}
}

// Columns returns the ordered column descriptors.
func (d *Dataset) Columns() []Column {
	out := make([]Column, len(d.cols))
	copy(out, d.cols)
	return out
}

// ColumnNames returns the column names in dataset order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// ColumnKind returns the inferred kind of the named column.
func (d *Dataset) ColumnKind(name string) (Kind, bool) {
	i, ok := d.index[name]
	if !ok {
		return KindText, false
	}
	return d.cols[i].Kind, true
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int {
	return len(d.rows)
}

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int {
	return len(d.cols)
}

// Cell returns the value at (row, column name).
func (d *Dataset) Cell(row int, name string) (Value, bool) {
	i, ok := d.index[name]
	if !ok || row < 0 || row >= len(d.rows) {
		return Value{}, false
	}
	return d.rows[row][i], true
}

// ColumnValues returns every cell of the named column in row order.
func (d *Dataset) ColumnValues(name string) ([]Value, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	out := make([]Value, len(d.rows))
	for r, row := range d.rows {
		out[r] = row[i]
	}
	return out, true
}

// Clone returns a deep copy safe for mutation by the preparer.
func (d *Dataset) Clone() *Dataset {
	cols := make([]Column, len(d.cols))
	copy(cols, d.cols)
	index := make(map[string]int, len(d.index))
	for k, v := range d.index {
		index[k] = v
	}
	rows := make([][]Value, len(d.rows))
	for r, row := range d.rows {
		rows[r] = make([]Value, len(row))
		copy(rows[r], row)
	}
	return &Dataset{cols: cols, index: index, rows: rows}
}

// SetCell overwrites a cell in place. Intended for prepared copies only.
func (d *Dataset) SetCell(row int, name string, v Value) bool {
	i, ok := d.index[name]
	if !ok || row < 0 || row >= len(d.rows) {
		return false
	}
	d.rows[row][i] = v
	return true
}

// SetColumnKind retags a column after conversion. Intended for prepared
// copies only.
func (d *Dataset) SetColumnKind(name string, k Kind) bool {
	i, ok := d.index[name]
	if !ok {
		return false
	}
	d.cols[i].Kind = k
	return true
}

// Retain keeps only the rows whose indices appear in keep, in the given
// order. Intended for prepared copies only.
func (d *Dataset) Retain(keep []int) {
	rows := make([][]Value, 0, len(keep))
	for _, r := range keep {
		if r >= 0 && r < len(d.rows) {
			rows = append(rows, d.rows[r])
		}
	}
	d.rows = rows
}

// kindSampleSize bounds how many non-missing values are inspected when
// deciding whether a text column is time-like.
const kindSampleSize = 100

// timeLikeThreshold is the fraction of sampled values that must parse as a
// timestamp for a text column to be tagged KindTime.
const timeLikeThreshold = 0.8

// inferKind tags a column as number, time or text. A column is numeric only
// when every non-missing cell parses as a float; it is time-like when at
// least 80% of a sample of up to 100 non-missing cells parse as timestamps.
func (d *Dataset) inferKind(col int) Kind {
	nonMissing := 0
	numeric := 0
	for _, row := range d.rows {
		v := row[col]
		if v.Missing {
			continue
		}
		nonMissing++
		if v.isNum {
			numeric++
			continue
		}
		if _, err := ParseNumber(v.Raw); err == nil {
			numeric++
		}
	}
	if nonMissing > 0 && numeric == nonMissing {
		return KindNumber
	}

	sampled := 0
	parsed := 0
	for _, row := range d.rows {
		if sampled >= kindSampleSize {
			break
		}
		v := row[col]
		if v.Missing {
			continue
		}
		sampled++
		if _, err := ParseTimestamp(v.Raw); err == nil {
			parsed++
		}
	}
	if sampled > 0 && float64(parsed) >= float64(sampled)*timeLikeThreshold {
		return KindTime
	}
	return KindText
}

// ParseNumber parses a cell's raw text as a float, tolerating surrounding
// whitespace and thousands separators.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}

// timestampLayouts are tried in order when parsing a raw cell as a
// timestamp. Date-only layouts yield midnight UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05.999 MST",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02-01-2006",
	"Jan 2, 2006",
}

// ParseTimestamp parses a raw cell as a timestamp, trying the supported
// layouts in order and falling back to integer Unix seconds/milliseconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty value")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	// Epoch seconds or milliseconds.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		switch {
		case n >= 1e12 && n < 1e14:
			return time.UnixMilli(n).UTC(), nil
		case n >= 1e9 && n < 1e11:
			return time.Unix(n, 0).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

// DateOf truncates a timestamp to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
