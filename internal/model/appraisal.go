package model

// Appraisal is the uniform structured output every provider must return.
// Unknown or extra fields from a provider response are dropped at the
// boundary; they never propagate past this type.
type Appraisal struct {
	ItemName    string   `json:"item_name" validate:"required"`
	Category    string   `json:"category"`
	Value       float64  `json:"value" validate:"gte=0"`
	Decision    Decision `json:"decision" validate:"required,oneof=BUY SELL"`
	Confidence  float64  `json:"confidence" validate:"gte=0,lte=1"`
	Explanation string   `json:"explanation"`

	// WebPrices carries comparable prices found by web-search-capable
	// providers. Subject to sanity filtering before use.
	WebPrices []float64 `json:"web_prices,omitempty"`
}

// TiebreakerVerdict is the adjudicating response cast over conflicting vote
// summaries. Malformed verdicts (index out of range, bad ranges) are rejected
// at the boundary and never pass through silently.
type TiebreakerVerdict struct {
	SelectedIndex    int       `json:"selected_index" validate:"gte=0"`
	Confidence       float64   `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning        string    `json:"reasoning" validate:"required"`
	AdjustedValue    *float64  `json:"adjusted_value,omitempty" validate:"omitempty,gte=0"`
	AdjustedDecision *Decision `json:"adjusted_decision,omitempty" validate:"omitempty,oneof=BUY SELL"`
}
