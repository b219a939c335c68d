// Package detection infers semantic column roles for an uploaded dataset.
// It combines name/content heuristics (Classifier) with a registry of known
// protocol shapes (fingerprinting) to pre-fill the role mapping the
// presentation layer offers to the user.
package detection

// Role identifies a semantic column role required by the analytics engine.
type Role string

const (
	RoleTimestamp Role = "date"
	RoleIdentity  Role = "address"
	RoleValue     Role = "value"
)

// Template describes one known dataset shape. Pattern lists hold
// case-insensitive name substrings checked in order; Optional substrings
// award bonus points without stopping the scan.
type Template struct {
	ID          string
	Name        string
	Description string
	Patterns    map[Role][]string
	Optional    []string
}

// GenericTemplateID is the fallback result when no template reaches the
// score threshold. The generic template itself is never scored.
const GenericTemplateID = "generic"

// Registry is the ordered, immutable set of protocol templates. Order
// matters: score ties are broken by registry position.
type Registry struct {
	templates []Template
	byID      map[string]Template
}

// NewRegistry builds a registry from ordered templates. Call once at
// process start; the result is read-only and safe for concurrent use.
func NewRegistry(templates []Template) *Registry {
	byID := make(map[string]Template, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
	}
	return &Registry{templates: templates, byID: byID}
}

// Templates returns the scored templates in registry order, excluding the
// generic fallback.
func (r *Registry) Templates() []Template {
	out := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		if t.ID == GenericTemplateID {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Lookup returns the template with the given id, falling back to the
// generic template for unknown ids.
func (r *Registry) Lookup(id string) Template {
	if t, ok := r.byID[id]; ok {
		return t
	}
	return r.byID[GenericTemplateID]
}

// DefaultRegistry returns the built-in protocol templates.
func DefaultRegistry() *Registry {
	return NewRegistry([]Template{
		{
			ID:          "uniswap",
			Name:        "Uniswap V3",
			Description: "DEX swaps on Uniswap V3",
			Patterns: map[Role][]string{
				RoleTimestamp: {"block_time", "timestamp", "date", "time"},
				RoleIdentity:  {"trader", "user", "from_address", "to_address", "wallet"},
				RoleValue:     {"amount_usd", "value_usd", "volume_usd", "amount"},
			},
			Optional: []string{"token_bought_symbol", "token_sold_symbol", "project", "version"},
		},
		{
			ID:          "opensea",
			Name:        "OpenSea NFT",
			Description: "NFT sales on OpenSea marketplace",
			Patterns: map[Role][]string{
				RoleTimestamp: {"block_time", "timestamp", "date", "time"},
				RoleIdentity:  {"buyer", "seller", "from_address", "to_address", "wallet"},
				RoleValue:     {"amount_usd", "price_usd", "value_usd", "amount"},
			},
			Optional: []string{"nft_project_name", "collection", "token_id", "marketplace"},
		},
		{
			ID:          "aave",
			Name:        "Aave V3",
			Description: "Lending/borrowing on Aave V3",
			Patterns: map[Role][]string{
				RoleTimestamp: {"block_time", "timestamp", "date", "time"},
				RoleIdentity:  {"user_address", "user", "borrower", "depositor", "wallet"},
				RoleValue:     {"amount_usd", "value_usd", "amount"},
			},
			Optional: []string{"action", "reserve_symbol", "protocol_version", "chain"},
		},
		{
			ID:          GenericTemplateID,
			Name:        "Generic Web3 Data",
			Description: "Generic blockchain/Web3 dataset",
			Patterns: map[Role][]string{
				RoleTimestamp: {"block_time", "timestamp", "date", "time", "created_at"},
				RoleIdentity:  {"address", "wallet", "user", "from", "to", "sender", "receiver"},
				RoleValue:     {"amount_usd", "value_usd", "volume", "amount", "value"},
			},
		},
	})
}
