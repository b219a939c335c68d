package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name  string
		input time.Time
		want  time.Time
	}{
		{
			name:  "monday maps to itself",
			input: day(2024, 1, 1), // Monday
			want:  day(2024, 1, 1),
		},
		{
			name:  "sunday maps to preceding monday",
			input: day(2024, 1, 7),
			want:  day(2024, 1, 1),
		},
		{
			name:  "midweek with time of day",
			input: time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC),
			want:  day(2024, 1, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, weekStart(tt.input))
		})
	}
}

func TestBuildCohortRetention(t *testing.T) {
	// Week of Jan 1: alice, bob first seen. Week of Jan 8: alice returns,
	// carol first seen. Week of Jan 15: bob returns.
	ds := mustDataset(t, txColumns, txRows(
		[3]string{"2024-01-01", "alice", "1"},
		[3]string{"2024-01-02", "bob", "1"},
		[3]string{"2024-01-08", "alice", "1"},
		[3]string{"2024-01-09", "carol", "1"},
		[3]string{"2024-01-15", "bob", "1"},
	))

	m, err := BuildCohortRetention(ds, "block_time", "wallet")
	require.NoError(t, err)

	require.Len(t, m.Rows, 2)
	assert.Equal(t, []int{0, 1, 2}, m.Offsets)

	week1 := m.Rows[0]
	assert.Equal(t, day(2024, 1, 1), week1.Week)
	assert.Equal(t, 2, week1.Size)
	assert.Equal(t, CohortCell{ActiveUsers: 2, Retention: 100}, week1.Cells[0])
	assert.Equal(t, CohortCell{ActiveUsers: 1, Retention: 50}, week1.Cells[1])
	assert.Equal(t, CohortCell{ActiveUsers: 1, Retention: 50}, week1.Cells[2])

	week2 := m.Rows[1]
	assert.Equal(t, day(2024, 1, 8), week2.Week)
	assert.Equal(t, 1, week2.Size)
	assert.Equal(t, CohortCell{ActiveUsers: 1, Retention: 100}, week2.Cells[0])
	_, present := week2.Cells[1]
	assert.False(t, present, "absent offset means unobserved, not zero")
}

func TestBuildCohortRetention_DistinctIdentitiesPerCell(t *testing.T) {
	// alice trades three times in her first week; week 0 still counts her
	// once.
	ds := mustDataset(t, txColumns, txRows(
		[3]string{"2024-01-01", "alice", "1"},
		[3]string{"2024-01-02", "alice", "1"},
		[3]string{"2024-01-03", "alice", "1"},
		[3]string{"2024-01-08", "bob", "1"},
	))

	m, err := BuildCohortRetention(ds, "block_time", "wallet")
	require.NoError(t, err)

	require.Len(t, m.Rows, 2)
	assert.Equal(t, 1, m.Rows[0].Size)
	assert.Equal(t, CohortCell{ActiveUsers: 1, Retention: 100}, m.Rows[0].Cells[0])
}

func TestBuildCohortRetention_InsufficientData(t *testing.T) {
	tests := []struct {
		name string
		rows [][3]string
	}{
		{
			name: "single week",
			rows: [][3]string{
				{"2024-01-01", "alice", "1"},
				{"2024-01-05", "bob", "1"},
			},
		},
		{
			name: "empty dataset",
			rows: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := mustDataset(t, txColumns, txRows(tt.rows...))

			m, err := BuildCohortRetention(ds, "block_time", "wallet")
			require.ErrorIs(t, err, ErrInsufficientData)
			assert.True(t, m.Empty())
		})
	}
}

func TestBuildCohortRetention_MissingColumn(t *testing.T) {
	ds := mustDataset(t, txColumns, txRows([3]string{"2024-01-01", "a", "1"}))

	m, err := BuildCohortRetention(ds, "block_time", "nope")
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.True(t, m.Empty())
}
