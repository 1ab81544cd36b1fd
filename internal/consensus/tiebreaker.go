package consensus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/model"
	"github.com/flipscout/appraisal-cli/internal/provider"
	"github.com/flipscout/appraisal-cli/pkg/anthropic"
)

const tiebreakerSystemPrompt = `You are an arbitration judge for resale appraisals. You will receive numbered vote summaries that disagree. Select the most credible vote by index. You may optionally adjust its value or decision. Respond with a valid JSON object only:
{"selected_index": <0-based index>, "confidence": <0.0-1.0>, "reasoning": "<mandatory justification>", "adjusted_value": <dollars, optional>, "adjusted_decision": "BUY" or "SELL" (optional)}`

// NeedsTiebreaker reports whether a tally is close enough to warrant
// arbitration. The comparison is strict: a split of exactly the threshold
// does not trigger.
func NeedsTiebreaker(tally model.VoteTally, threshold float64) bool {
	if tally.TotalWeight <= 0 {
		return false
	}
	return tally.WeightDifference < threshold
}

// ValuesAreDivergent reports whether the vote value spread (max-min)/min
// exceeds the threshold. Non-positive values are ignored.
func ValuesAreDivergent(values []float64, threshold float64) bool {
	var min, max float64
	seen := false
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if !seen {
			min, max = v, v
			seen = true
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if !seen || min <= 0 {
		return false
	}
	return (max-min)/min > threshold
}

// Tiebreaker arbitrates conflicting votes with a text-only model call. It
// sees vote summaries, never the item image.
type Tiebreaker struct {
	client anthropic.Client
	model  string
	cfg    config.TiebreakerConfig
}

// NewTiebreaker creates the arbitration tiebreaker.
func NewTiebreaker(client anthropic.Client, modelID string, cfg config.TiebreakerConfig) *Tiebreaker {
	return &Tiebreaker{client: client, model: modelID, cfg: cfg}
}

// ShouldArbitrate reports whether either trigger condition holds for the
// given votes.
func (t *Tiebreaker) ShouldArbitrate(votes []model.Vote, tally model.VoteTally) bool {
	if len(votes) < 2 {
		return false
	}
	if NeedsTiebreaker(tally, t.cfg.SplitThreshold) {
		return true
	}
	values := make([]float64, 0, len(votes))
	for _, v := range votes {
		values = append(values, v.Value)
	}
	return ValuesAreDivergent(values, t.cfg.DivergenceThreshold)
}

// Arbitrate asks the model to select one of the conflicting votes. A
// malformed verdict is an error; it never passes through silently.
func (t *Tiebreaker) Arbitrate(ctx context.Context, votes []model.Vote, itemDescription string) (*model.TiebreakerVerdict, time.Duration, error) {
	if len(votes) == 0 {
		return nil, 0, eris.New("consensus: no votes to arbitrate")
	}

	start := time.Now()
	resp, err := t.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     t.model,
		MaxTokens: 512,
		System:    anthropic.BuildCachedSystemBlocks(tiebreakerSystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: buildArbitrationPrompt(votes, itemDescription)}},
	})
	latency := time.Since(start)
	if err != nil {
		return nil, latency, eris.Wrap(err, "consensus: arbitrate")
	}

	resp.Usage.LogCost(t.model, "arbitrate")

	verdict, err := provider.ParseTiebreakerVerdict(resp.Text(), len(votes))
	if err != nil {
		return nil, latency, err
	}

	zap.L().Info("consensus: tiebreaker verdict",
		zap.Int("selected_index", verdict.SelectedIndex),
		zap.Float64("confidence", verdict.Confidence),
		zap.Duration("latency", latency))

	return verdict, latency, nil
}

// Resolve applies a verdict to the arbitrated votes: the selected vote's
// appraisal, with any adjustments overlaid, at the verdict's confidence.
func Resolve(votes []model.Vote, verdict *model.TiebreakerVerdict) *model.Appraisal {
	selected := votes[verdict.SelectedIndex]
	a := model.Appraisal{
		ItemName:    selected.ItemName,
		Category:    selected.Category,
		Value:       selected.Value,
		Decision:    selected.Decision,
		Confidence:  verdict.Confidence,
		Explanation: verdict.Reasoning,
	}
	if verdict.AdjustedValue != nil {
		a.Value = *verdict.AdjustedValue
	}
	if verdict.AdjustedDecision != nil {
		a.Decision = *verdict.AdjustedDecision
	}
	return &a
}

func buildArbitrationPrompt(votes []model.Vote, itemDescription string) string {
	var b strings.Builder
	if itemDescription != "" {
		fmt.Fprintf(&b, "Item: %s\n\n", itemDescription)
	}
	b.WriteString("Conflicting votes:\n")
	for i, v := range votes {
		fmt.Fprintf(&b, "[%d] %s: %s at $%.2f (confidence %.2f)", i, v.Provider, v.Decision, v.Value, v.Confidence)
		if e := v.Explanation(); e != "" {
			fmt.Fprintf(&b, " - %s", e)
		}
		b.WriteString("\n")
	}
	return b.String()
}
