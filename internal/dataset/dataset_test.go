package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		wantErr string
	}{
		{
			name:    "duplicate column names rejected",
			columns: []string{"a", "b", "a"},
			wantErr: "duplicate column name",
		},
		{
			name:    "empty column name rejected",
			columns: []string{"a", ""},
			wantErr: "empty name",
		},
		{
			name:    "valid columns accepted",
			columns: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := New(tt.columns, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.columns, ds.ColumnNames())
		})
	}
}

func TestNew_RowNormalization(t *testing.T) {
	ds, err := New([]string{"a", "b", "c"}, [][]Value{
		{TextValue("x")},                                                      // short row padded
		{TextValue("x"), TextValue("y"), TextValue("z"), TextValue("extra")}, // long row truncated
	})
	require.NoError(t, err)

	require.Equal(t, 2, ds.NumRows())
	cell, ok := ds.Cell(0, "b")
	require.True(t, ok)
	assert.True(t, cell.Missing)

	cell, ok = ds.Cell(1, "c")
	require.True(t, ok)
	assert.Equal(t, "z", cell.Text())
}

func TestKindInference(t *testing.T) {
	ds, err := New([]string{"amount", "block_time", "trader", "mixed"}, [][]Value{
		{TextValue("1,200.5"), TextValue("2024-01-01"), TextValue("0xabc"), TextValue("10")},
		{TextValue("3"), TextValue("2024-01-02 10:30:00"), TextValue("0xdef"), TextValue("oops")},
		{MissingValue(), TextValue("2024-01-03"), TextValue("0xabc"), TextValue("20")},
	})
	require.NoError(t, err)

	kind, ok := ds.ColumnKind("amount")
	require.True(t, ok)
	assert.Equal(t, KindNumber, kind, "all non-missing values numeric")

	kind, _ = ds.ColumnKind("block_time")
	assert.Equal(t, KindTime, kind)

	kind, _ = ds.ColumnKind("trader")
	assert.Equal(t, KindText, kind)

	kind, _ = ds.ColumnKind("mixed")
	assert.Equal(t, KindText, kind, "one unparseable value disqualifies numeric")
}

func TestKindInference_MaterializesNumbers(t *testing.T) {
	ds, err := New([]string{"amount"}, [][]Value{
		{TextValue("1,200.5")},
		{TextValue("3")},
	})
	require.NoError(t, err)

	cell, ok := ds.Cell(0, "amount")
	require.True(t, ok)
	n, isNum := cell.Number()
	require.True(t, isNum)
	assert.InDelta(t, 1200.5, n, 1e-9)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{input: "42", want: 42},
		{input: " 3.14 ", want: 3.14},
		{input: "1,234,567.89", want: 1234567.89},
		{input: "-5e2", want: -500},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNumber(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "rfc3339",
			input: "2024-03-15T10:30:00Z",
			want:  time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "date time",
			input: "2024-03-15 10:30:00",
			want:  time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "date only yields midnight",
			input: "2024-03-15",
			want:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "slash date",
			input: "2024/03/15",
			want:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "epoch seconds",
			input: "1710498600",
			want:  time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "epoch milliseconds",
			input: "1710498600000",
			want:  time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}

	t.Run("unparseable", func(t *testing.T) {
		_, err := ParseTimestamp("not a date")
		require.Error(t, err)
	})
	t.Run("small integer is not an epoch", func(t *testing.T) {
		_, err := ParseTimestamp("12345")
		require.Error(t, err)
	})
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	ts := time.Date(2024, 3, 15, 1, 30, 0, 0, loc) // 2024-03-14 22:30 UTC
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), DateOf(ts))
}

func TestCloneIsIndependent(t *testing.T) {
	ds, err := New([]string{"a"}, [][]Value{{TextValue("x")}})
	require.NoError(t, err)

	clone := ds.Clone()
	require.True(t, clone.SetCell(0, "a", TextValue("changed")))

	orig, _ := ds.Cell(0, "a")
	assert.Equal(t, "x", orig.Text())
	changed, _ := clone.Cell(0, "a")
	assert.Equal(t, "changed", changed.Text())
}

func TestRetain(t *testing.T) {
	ds, err := New([]string{"a"}, [][]Value{
		{TextValue("r0")}, {TextValue("r1")}, {TextValue("r2")},
	})
	require.NoError(t, err)

	clone := ds.Clone()
	clone.Retain([]int{2, 0})

	require.Equal(t, 2, clone.NumRows())
	first, _ := clone.Cell(0, "a")
	assert.Equal(t, "r2", first.Text())
	second, _ := clone.Cell(1, "a")
	assert.Equal(t, "r0", second.Text())
	assert.Equal(t, 3, ds.NumRows(), "source untouched")
}

func TestTextValue_BlankIsMissing(t *testing.T) {
	assert.True(t, TextValue("").Missing)
	assert.True(t, TextValue("   ").Missing)
	assert.False(t, TextValue("x").Missing)
}
