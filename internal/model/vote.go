// Package model defines the core data types shared across the appraisal engine.
package model

import "time"

// Decision is a binary buy/sell verdict for an item.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
)

// Valid reports whether d is one of the two known decisions.
func (d Decision) Valid() bool {
	return d == DecisionBuy || d == DecisionSell
}

// VoteRole identifies where in the pipeline a vote originated.
type VoteRole string

const (
	// RolePrimary is a standard appraisal vote from an item-analysis provider.
	RolePrimary VoteRole = "primary"
	// RoleMarketSearch marks votes derived from web-search evidence providers.
	RoleMarketSearch VoteRole = "market_search"
	// RoleTiebreaker marks the adjudicating vote cast on close or divergent tallies.
	RoleTiebreaker VoteRole = "tiebreaker"
	// RoleEmergency marks a fallback vote cast when primary providers failed.
	RoleEmergency VoteRole = "emergency"
)

// Vote is one provider's opinion about one item. Votes are created once by the
// vote factory and never mutated afterwards; Weight is always derived from
// base weight, confidence and role multipliers, never set by a provider.
type Vote struct {
	Provider   string        `json:"provider"`
	ItemName   string        `json:"item_name"`
	Category   string        `json:"category"`
	Value      float64       `json:"value"`
	Decision   Decision      `json:"decision"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"latency"`
	Weight     float64       `json:"weight"`
	Role       VoteRole      `json:"role"`

	// Raw preserves the provider's structured response for audit and
	// reasoning extraction.
	Raw *Appraisal `json:"raw,omitempty"`
}

// Explanation returns the provider's own reasoning text, if any.
func (v Vote) Explanation() string {
	if v.Raw == nil {
		return ""
	}
	return v.Raw.Explanation
}

// VoteTally is the weighted aggregation of a vote list. Derived fresh from a
// vote list every time; never mutated in place.
type VoteTally struct {
	BuyWeight        float64  `json:"buy_weight"`
	SellWeight       float64  `json:"sell_weight"`
	TotalWeight      float64  `json:"total_weight"`
	WeightDifference float64  `json:"weight_difference"` // normalized to [0,1]
	Decision         Decision `json:"decision"`
	IsCloseVote      bool     `json:"is_close_vote"`
	BuyCount         int      `json:"buy_count"`
	SellCount        int      `json:"sell_count"`
}

// VoteStats is a statistical summary of a vote list.
type VoteStats struct {
	MeanConfidence    float64       `json:"mean_confidence"`
	MeanLatency       time.Duration `json:"mean_latency"`
	WeightedMeanValue float64       `json:"weighted_mean_value"`
	// ValueAgreement is 1 - coefficient of variation over positive values,
	// floored at 0. A single positive value scores 1.0.
	ValueAgreement    float64 `json:"value_agreement"`
	DecisionAgreement float64 `json:"decision_agreement"`
	ConsensusItemName string  `json:"consensus_item_name"`
}
