package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wdicli/internal/dataset"
)

func mustDataset(t *testing.T, names []string, rows [][]dataset.Value) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(names, rows)
	require.NoError(t, err)
	return ds
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time { return &t }

type dsValue = dataset.Value

func txt(s string) dsValue { return dataset.TextValue(s) }

func missing() dsValue { return dataset.MissingValue() }

func txRows(cells ...[3]string) [][]dataset.Value {
	rows := make([][]dataset.Value, len(cells))
	for i, c := range cells {
		rows[i] = []dataset.Value{
			dataset.TextValue(c[0]),
			dataset.TextValue(c[1]),
			dataset.TextValue(c[2]),
		}
	}
	return rows
}

var txColumns = []string{"block_time", "wallet", "amount"}

func TestPrepare_SortsAscending(t *testing.T) {
	ds := mustDataset(t, txColumns, txRows(
		[3]string{"2024-01-03", "a", "1"},
		[3]string{"2024-01-01", "b", "2"},
		[3]string{"2024-01-02", "c", "3"},
	))

	out, err := Prepare(ds, "block_time", nil, nil)
	require.NoError(t, err)

	require.Equal(t, 3, out.NumRows())
	var got []string
	for r := 0; r < out.NumRows(); r++ {
		cell, _ := out.Cell(r, "wallet")
		got = append(got, cell.Text())
	}
	assert.Equal(t, []string{"b", "c", "a"}, got)
}

func TestPrepare_StableWithinEqualTimestamps(t *testing.T) {
	ds := mustDataset(t, txColumns, txRows(
		[3]string{"2024-01-01 10:00:00", "first", "1"},
		[3]string{"2024-01-01 10:00:00", "second", "2"},
		[3]string{"2024-01-01 09:00:00", "earlier", "3"},
	))

	out, err := Prepare(ds, "block_time", nil, nil)
	require.NoError(t, err)

	var got []string
	for r := 0; r < out.NumRows(); r++ {
		cell, _ := out.Cell(r, "wallet")
		got = append(got, cell.Text())
	}
	assert.Equal(t, []string{"earlier", "first", "second"}, got)
}

func TestPrepare_InclusiveBounds(t *testing.T) {
	ds := mustDataset(t, txColumns, txRows(
		[3]string{"2024-01-01", "a", "1"},
		[3]string{"2024-01-02", "b", "2"},
		[3]string{"2024-01-03", "c", "3"},
		[3]string{"2024-01-04", "d", "4"},
	))

	out, err := Prepare(ds, "block_time", datePtr(day(2024, 1, 2)), datePtr(day(2024, 1, 3)))
	require.NoError(t, err)

	require.Equal(t, 2, out.NumRows())
	first, _ := out.Cell(0, "wallet")
	last, _ := out.Cell(1, "wallet")
	assert.Equal(t, "b", first.Text())
	assert.Equal(t, "c", last.Text())
}

func TestPrepare_BoundaryTimeOfDayIgnored(t *testing.T) {
	// A transaction at 23:59 on the end date is still inside the range:
	// the comparison is by calendar day.
	ds := mustDataset(t, txColumns, txRows(
		[3]string{"2024-01-03 23:59:59", "late", "1"},
	))

	out, err := Prepare(ds, "block_time", datePtr(day(2024, 1, 1)), datePtr(day(2024, 1, 3)))
	require.NoError(t, err)
	assert.Equal(t, 1, out.NumRows())
}

func TestPrepare_UnparseableRows(t *testing.T) {
	ds := mustDataset(t, txColumns, txRows(
		[3]string{"2024-01-02", "ok", "1"},
		[3]string{"garbage", "bad", "2"},
		[3]string{"2024-01-01", "ok2", "3"},
	))

	t.Run("no bounds keeps them last", func(t *testing.T) {
		out, err := Prepare(ds, "block_time", nil, nil)
		require.NoError(t, err)

		require.Equal(t, 3, out.NumRows())
		last, _ := out.Cell(2, "wallet")
		assert.Equal(t, "bad", last.Text())
		ts, _ := out.Cell(2, "block_time")
		assert.True(t, ts.Missing)
	})

	t.Run("bounded range drops them", func(t *testing.T) {
		out, err := Prepare(ds, "block_time", datePtr(day(2024, 1, 1)), nil)
		require.NoError(t, err)

		require.Equal(t, 2, out.NumRows())
		for r := 0; r < out.NumRows(); r++ {
			cell, _ := out.Cell(r, "wallet")
			assert.NotEqual(t, "bad", cell.Text())
		}
	})
}

func TestPrepare_MissingColumn(t *testing.T) {
	ds := mustDataset(t, txColumns, txRows([3]string{"2024-01-01", "a", "1"}))

	out, err := Prepare(ds, "nope", nil, nil)
	require.ErrorIs(t, err, ErrMissingColumn)
	require.NotNil(t, out)
	assert.Equal(t, 1, out.NumRows(), "unfiltered copy returned alongside the error")
}

func TestPrepare_DoesNotMutateInput(t *testing.T) {
	ds := mustDataset(t, txColumns, txRows(
		[3]string{"2024-01-02", "a", "1"},
		[3]string{"2024-01-01", "b", "2"},
	))

	_, err := Prepare(ds, "block_time", datePtr(day(2024, 1, 2)), nil)
	require.NoError(t, err)

	require.Equal(t, 2, ds.NumRows())
	first, _ := ds.Cell(0, "wallet")
	assert.Equal(t, "a", first.Text())
	kind, _ := ds.ColumnKind("block_time")
	assert.Equal(t, dataset.KindTime, kind)
}
