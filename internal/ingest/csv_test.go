package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wdicli/internal/dataset"
)

func TestReadCSV(t *testing.T) {
	input := "block_time,wallet,amount\n" +
		"2024-01-01,0xaaa,10.5\n" +
		"2024-01-02,0xbbb,20\n"

	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"block_time", "wallet", "amount"}, ds.ColumnNames())
	require.Equal(t, 2, ds.NumRows())

	kind, _ := ds.ColumnKind("amount")
	assert.Equal(t, dataset.KindNumber, kind)
	kind, _ = ds.ColumnKind("block_time")
	assert.Equal(t, dataset.KindTime, kind)

	cell, ok := ds.Cell(0, "wallet")
	require.True(t, ok)
	assert.Equal(t, "0xaaa", cell.Text())
}

func TestReadCSV_StripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFdate,amount\n2024-01-01,5\n"

	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "amount"}, ds.ColumnNames())
}

func TestReadCSV_ShortRowsPadded(t *testing.T) {
	input := "a,b,c\n1,2\n"

	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	cell, ok := ds.Cell(0, "c")
	require.True(t, ok)
	assert.True(t, cell.Missing)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "empty file",
			input:   "",
			wantErr: "empty file",
		},
		{
			name:    "duplicate headers",
			input:   "a,a\n1,2\n",
			wantErr: "duplicate column",
		},
		{
			name:    "blank header cell",
			input:   "a,\n1,2\n",
			wantErr: "empty name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadCSV_HeaderWhitespaceTrimmed(t *testing.T) {
	input := "date , amount\n2024-01-01,5\n"

	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "amount"}, ds.ColumnNames())
}
