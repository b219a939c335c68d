package detection

import (
	"strings"

	"wdicli/internal/dataset"
)

// Keyword sets used for name-based candidate detection. Matching is
// case-insensitive substring containment.
var (
	timestampKeywords = []string{"date", "time", "timestamp", "day", "created"}
	identityKeywords  = []string{"address", "wallet", "user", "account", "from", "to", "sender", "receiver"}
)

// Candidates groups the columns that plausibly hold each role.
type Candidates struct {
	Timestamps []string `json:"timestamp_candidates"`
	Identities []string `json:"identity_candidates"`
	Values     []string `json:"value_candidates"`
}

// Classify inspects column names and kind tags and returns per-role
// candidate sets. It is a pure function of the dataset.
//
// Timestamps: columns whose name contains a date-ish keyword, plus
// non-numeric columns whose sampled content parsed as timestamps at load
// time (the KindTime tag). Identities: columns whose name contains an
// address-ish keyword; when none match, every non-numeric column is a
// candidate so a dataset without a semantically named identity column
// still has a usable identity axis. Values: every numeric column.
//
// A role with no candidates is the caller's problem: the presentation
// layer falls back to offering all columns.
func Classify(ds *dataset.Dataset) Candidates {
	var c Candidates

	for _, col := range ds.Columns() {
		lower := strings.ToLower(col.Name)
		if containsAny(lower, timestampKeywords) {
			c.Timestamps = append(c.Timestamps, col.Name)
		} else if col.Kind == dataset.KindTime {
			c.Timestamps = append(c.Timestamps, col.Name)
		}
	}

	for _, col := range ds.Columns() {
		if containsAny(strings.ToLower(col.Name), identityKeywords) {
			c.Identities = append(c.Identities, col.Name)
		}
	}
	if len(c.Identities) == 0 {
		for _, col := range ds.Columns() {
			if col.Kind != dataset.KindNumber {
				c.Identities = append(c.Identities, col.Name)
			}
		}
	}

	for _, col := range ds.Columns() {
		if col.Kind == dataset.KindNumber {
			c.Values = append(c.Values, col.Name)
		}
	}

	return c
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
