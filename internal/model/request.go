package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrMissingItemName is the only synchronous rejection the engine produces:
// genuinely invalid input, before any work begins.
var ErrMissingItemName = eris.New("model: item name is required")

// AnalysisRequest is the input one appraisal run consumes from collaborators.
type AnalysisRequest struct {
	ID               string        `json:"id"`
	ItemName         string        `json:"item_name"`
	ImageDescription string        `json:"image_description,omitempty"`
	CategoryHint     string        `json:"category_hint,omitempty"`
	Context          string        `json:"context,omitempty"`
	Timeout          time.Duration `json:"timeout,omitempty"`
}

// Validate rejects requests the engine cannot work with at all.
func (r AnalysisRequest) Validate() error {
	if r.ItemName == "" {
		return ErrMissingItemName
	}
	return nil
}

// AnalysisResult bundles everything one appraisal run produced: the consensus,
// the evidence it was anchored on, and the raw votes for persistence/audit.
type AnalysisResult struct {
	ID        string            `json:"id"`
	Request   AnalysisRequest   `json:"request"`
	Detection CategoryDetection `json:"detection"`
	Evidence  *EvidenceSummary  `json:"evidence,omitempty"`
	Votes     []Vote            `json:"votes"`
	Consensus ConsensusResult   `json:"consensus"`
	CreatedAt time.Time         `json:"created_at"`
}
