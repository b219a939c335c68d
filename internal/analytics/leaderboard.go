package analytics

import (
	"fmt"
	"sort"

	"wdicli/internal/dataset"
)

// displayMaxLen is the identity length beyond which the display form is
// truncated to its first six and last four characters.
const displayMaxLen = 12

// TopEntry is one row of the ranked-entity leaderboard.
type TopEntry struct {
	Address     string  `json:"address"`
	TotalVolume float64 `json:"total_volume"`
	TxCount     int     `json:"tx_count"`
	Display     string  `json:"address_display"`
}

// BuildTopAddresses groups a prepared dataset by identity, sums and counts
// the value column per identity, and returns the top n by total volume.
// The sort is stable: identities with equal totals keep their first-
// encounter order. Rows with a missing identity are excluded; the count
// tallies non-missing value cells. A missing role column yields an empty
// table plus ErrMissingColumn.
func BuildTopAddresses(ds *dataset.Dataset, identityCol, valueCol string, n int) ([]TopEntry, error) {
	identities, ok := ds.ColumnValues(identityCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, identityCol)
	}
	values, ok := ds.ColumnValues(valueCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, valueCol)
	}
	if n <= 0 {
		return nil, nil
	}

	order := make([]string, 0)
	groups := make(map[string]*TopEntry)
	for r := range identities {
		if identities[r].Missing {
			continue
		}
		key := identities[r].Text()
		entry := groups[key]
		if entry == nil {
			entry = &TopEntry{Address: key}
			groups[key] = entry
			order = append(order, key)
		}
		if v, isNum := values[r].Number(); isNum {
			entry.TotalVolume += v
			entry.TxCount++
		}
	}

	ranked := make([]TopEntry, 0, len(order))
	for _, key := range order {
		ranked = append(ranked, *groups[key])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalVolume > ranked[j].TotalVolume
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	for i := range ranked {
		ranked[i].Display = TruncateAddress(ranked[i].Address)
	}
	return ranked, nil
}

// TruncateAddress shortens identities longer than 12 characters to
// "first6...last4" for display; shorter identities pass through unchanged.
func TruncateAddress(addr string) string {
	runes := []rune(addr)
	if len(runes) <= displayMaxLen {
		return addr
	}
	return string(runes[:6]) + "..." + string(runes[len(runes)-4:])
}
