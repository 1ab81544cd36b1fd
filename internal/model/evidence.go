package model

import "time"

// PriceSample is a single price from an evidence source. Suspect prices are
// retained for audit but excluded from ranges and formatted evidence text.
type PriceSample struct {
	Value         float64 `json:"value"`
	Suspect       bool    `json:"suspect"`
	SuspectReason string  `json:"suspect_reason,omitempty"`
}

// AuthorityData is a price and structured details from a trusted pricing
// authority (e.g. a price-guide API).
type AuthorityData struct {
	Price   float64           `json:"price"`
	Source  string            `json:"source"`
	Details map[string]string `json:"details,omitempty"`
}

// MarketplaceStats summarizes active marketplace listings for an item. The
// median is the anchor price used to sanity-check other sources.
type MarketplaceStats struct {
	MedianPrice  float64 `json:"median_price"`
	ListingCount int     `json:"listing_count"`
	Source       string  `json:"source"`
}

// PriceRange is the low/high band of clean (non-suspect) web prices.
type PriceRange struct {
	Low     float64  `json:"low"`
	High    float64  `json:"high"`
	Sources []string `json:"sources,omitempty"`
}

// WebSearchResult is the normalized output of one web-search-capable provider.
type WebSearchResult struct {
	Provider string        `json:"provider"`
	Prices   []PriceSample `json:"prices"`
	Summary  string        `json:"summary,omitempty"`
	Latency  time.Duration `json:"latency"`
	// AllSuspect is set when every price this source returned was flagged;
	// votes derived from such a source have their confidence halved.
	AllSuspect bool `json:"all_suspect"`
}

// EvidenceSummary is the non-vote market context built once per analysis. It
// feeds the model-calling stage's prompts and the consensus anchoring logic.
type EvidenceSummary struct {
	Authority      *AuthorityData    `json:"authority,omitempty"`
	Marketplace    *MarketplaceStats `json:"marketplace,omitempty"`
	WebPrices      *PriceRange       `json:"web_prices,omitempty"`
	FormattedBlock string            `json:"formatted_block"`
	// MarketConfidence scores the overall strength of the evidence in [0,1].
	MarketConfidence float64 `json:"market_confidence"`
	AllWebSuspect    bool    `json:"all_web_suspect"`
}

// AnchorPrice returns the trusted reference price for sanity checks: the
// marketplace median when available, else the authority price, else 0.
func (s *EvidenceSummary) AnchorPrice() float64 {
	if s.Marketplace != nil && s.Marketplace.MedianPrice > 0 {
		return s.Marketplace.MedianPrice
	}
	if s.Authority != nil && s.Authority.Price > 0 {
		return s.Authority.Price
	}
	return 0
}
