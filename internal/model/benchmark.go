package model

import "time"

// ErrorDirection labels whether a vote over- or under-estimated ground truth.
type ErrorDirection string

const (
	DirectionOver     ErrorDirection = "over"
	DirectionUnder    ErrorDirection = "under"
	DirectionAccurate ErrorDirection = "accurate"
)

// BenchmarkRecord grades one vote against realized ground truth. Records are
// created asynchronously after a consensus result exists, append-only, never
// updated.
type BenchmarkRecord struct {
	ID                string         `json:"id"`
	AnalysisID        string         `json:"analysis_id"`
	Provider          string         `json:"provider"`
	Category          string         `json:"category"`
	Value             float64        `json:"value"`
	Decision          Decision       `json:"decision"`
	Confidence        float64        `json:"confidence"`
	GroundTruth       float64        `json:"ground_truth"`
	GroundTruthSource string         `json:"ground_truth_source"`
	AbsError          float64        `json:"abs_error"`
	PctError          float64        `json:"pct_error"`
	Direction         ErrorDirection `json:"direction"`
	DecisionCorrect   bool           `json:"decision_correct"`
	Latency           time.Duration  `json:"latency"`
	ScoredAt          time.Time      `json:"scored_at"`
}

// CategoryBreakdown is a provider's per-category benchmark slice. Only
// categories with at least three scored votes are eligible for best/worst
// flags.
type CategoryBreakdown struct {
	Category         string  `json:"category"`
	VoteCount        int     `json:"vote_count"`
	MeanPctError     float64 `json:"mean_pct_error"`
	DecisionAccuracy float64 `json:"decision_accuracy"`
	Best             bool    `json:"best,omitempty"`
	Worst            bool    `json:"worst,omitempty"`
}

// WeeklyScorecard aggregates one provider's benchmark records for one week.
type WeeklyScorecard struct {
	Provider  string    `json:"provider"`
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`

	VoteCount        int     `json:"vote_count"`
	MeanPctError     float64 `json:"mean_pct_error"`
	MedianPctError   float64 `json:"median_pct_error"`
	Within10Pct      float64 `json:"within_10_pct"`
	Within25Pct      float64 `json:"within_25_pct"`
	OverCount        int     `json:"over_count"`
	UnderCount       int     `json:"under_count"`
	AccurateCount    int     `json:"accurate_count"`
	DecisionAccuracy float64 `json:"decision_accuracy"`

	LatencyP50 time.Duration `json:"latency_p50"`
	LatencyP95 time.Duration `json:"latency_p95"`

	// Composite is a 0-100 score weighted 40% accuracy, 20% decision
	// correctness, 20% speed, 20% volume coverage.
	Composite float64 `json:"composite"`

	Categories []CategoryBreakdown `json:"categories,omitempty"`
}

// RankEntry places one provider on one ranking dimension.
type RankEntry struct {
	Provider string  `json:"provider"`
	Rank     int     `json:"rank"`
	Score    float64 `json:"score"`
	// Delta is the rank change versus the prior week (positive = climbed).
	Delta int `json:"delta"`
}

// CompetitiveRanking ranks all providers on a single dimension for one week.
type CompetitiveRanking struct {
	WeekStart time.Time   `json:"week_start"`
	Dimension string      `json:"dimension"` // accuracy, decision, speed, composite
	Entries   []RankEntry `json:"entries"`
}
