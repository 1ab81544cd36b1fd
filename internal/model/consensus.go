package model

// QualityTier buckets how trustworthy a consensus result is.
type QualityTier string

const (
	QualityHigh     QualityTier = "HIGH"
	QualityGood     QualityTier = "GOOD"
	QualityModerate QualityTier = "MODERATE"
	QualityLow      QualityTier = "LOW"
	QualityDegraded QualityTier = "DEGRADED"
	QualityFailed   QualityTier = "FAILED"
)

// ConsensusResult is the engine's final output for one item. Created once per
// analysis request and immutable afterwards.
type ConsensusResult struct {
	ItemName       string      `json:"item_name"`
	EstimatedValue float64     `json:"estimated_value"`
	Decision       Decision    `json:"decision"`
	Confidence     int         `json:"confidence"` // 0-100
	Reasoning      string      `json:"reasoning"`
	Quality        QualityTier `json:"quality"`
	Tally          VoteTally   `json:"tally"`
	Stats          VoteStats   `json:"stats"`
}
