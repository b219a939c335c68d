package detection

import (
	"strings"

	"wdicli/internal/dataset"
)

// Role points awarded on the first matching substring per role.
const (
	timestampPoints = 3
	identityPoints  = 3
	valuePoints     = 2
	optionalPoints  = 1

	// scoreThreshold is the minimum score a template must reach; below it
	// the detector falls back to the generic template with no suggestions.
	scoreThreshold = 5
)

// Suggestions holds the column names a matched template proposes for each
// role. Optional maps bonus substrings to the column that matched them.
type Suggestions struct {
	Timestamp string            `json:"date_col,omitempty"`
	Identity  string            `json:"address_col,omitempty"`
	Value     string            `json:"value_col,omitempty"`
	Optional  map[string]string `json:"optional,omitempty"`
}

// Match is the outcome of fingerprinting one dataset.
type Match struct {
	TemplateID  string      `json:"template_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Score       int         `json:"score"`
	Suggestions Suggestions `json:"suggestions"`
}

// Generic reports whether the match is the generic fallback.
func (m Match) Generic() bool {
	return m.TemplateID == GenericTemplateID
}

// Detect scores every non-generic template in the registry against the
// dataset's column names and returns the best match, or the generic
// fallback when no template reaches the threshold.
//
// Scoring is deliberately crude and order-sensitive, matching the
// behavior callers already rely on: within a role the first substring
// that appears in any column name wins the role's points outright and
// picks the first column (in dataset order) containing it, later
// substrings for that role are not consulted; every optional substring is
// checked and scores one point each. Ties between templates go to the
// template earlier in registry order.
func Detect(reg *Registry, ds *dataset.Dataset) Match {
	names := ds.ColumnNames()
	lower := make([]string, len(names))
	for i, n := range names {
		lower[i] = strings.ToLower(n)
	}

	best := Match{TemplateID: GenericTemplateID}
	bestScore := -1

	for _, tpl := range reg.Templates() {
		score := 0
		var sug Suggestions

		if col, ok := firstMatch(tpl.Patterns[RoleTimestamp], names, lower); ok {
			score += timestampPoints
			sug.Timestamp = col
		}
		if col, ok := firstMatch(tpl.Patterns[RoleIdentity], names, lower); ok {
			score += identityPoints
			sug.Identity = col
		}
		if col, ok := firstMatch(tpl.Patterns[RoleValue], names, lower); ok {
			score += valuePoints
			sug.Value = col
		}
		for _, pattern := range tpl.Optional {
			if col, ok := columnContaining(pattern, names, lower); ok {
				score += optionalPoints
				if sug.Optional == nil {
					sug.Optional = make(map[string]string)
				}
				sug.Optional[pattern] = col
			}
		}

		if score > bestScore {
			bestScore = score
			best = Match{
				TemplateID:  tpl.ID,
				Name:        tpl.Name,
				Description: tpl.Description,
				Score:       score,
				Suggestions: sug,
			}
		}
	}

	if bestScore < scoreThreshold {
		generic := reg.Lookup(GenericTemplateID)
		return Match{
			TemplateID:  generic.ID,
			Name:        generic.Name,
			Description: generic.Description,
		}
	}
	return best
}

// firstMatch scans the role's substrings in order and returns the first
// column containing the first substring that matches anything.
func firstMatch(patterns []string, names, lower []string) (string, bool) {
	for _, pattern := range patterns {
		if col, ok := columnContaining(pattern, names, lower); ok {
			return col, true
		}
	}
	return "", false
}

// columnContaining returns the first column (in dataset order) whose
// lower-cased name contains the pattern.
func columnContaining(pattern string, names, lower []string) (string, bool) {
	for i, name := range lower {
		if strings.Contains(name, pattern) {
			return names[i], true
		}
	}
	return "", false
}
