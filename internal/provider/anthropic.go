package provider

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/flipscout/appraisal-cli/internal/model"
	"github.com/flipscout/appraisal-cli/internal/resilience"
	"github.com/flipscout/appraisal-cli/pkg/anthropic"
)

const appraiseSystemPrompt = `You are a resale pricing analyst. Given an item description and market evidence, estimate the item's current resale value in USD and decide whether buying it for resale is worthwhile. Respond with a valid JSON object only:
{"item_name": "<canonical item name>", "category": "<category>", "value": <dollars>, "decision": "BUY" or "SELL", "confidence": <0.0-1.0>, "explanation": "<one or two sentences>"}`

const appraiseUserPrompt = `Item: %s
Category: %s
%s%s%s`

// AnthropicProvider appraises items with a Claude model. Registered as a
// pricing specialist.
type AnthropicProvider struct {
	id     string
	client anthropic.Client
	model  string
	retry  resilience.RetryConfig
}

// NewAnthropicProvider creates the Claude-backed appraisal provider. The
// retry policy gets a logging callback tagged with the provider ID unless
// the caller installed one.
func NewAnthropicProvider(id string, client anthropic.Client, modelID string, retry resilience.RetryConfig) *AnthropicProvider {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(id, "appraise")
	}
	return &AnthropicProvider{
		id:     id,
		client: client,
		model:  modelID,
		retry:  retry,
	}
}

func (p *AnthropicProvider) ID() string { return p.id }

func (p *AnthropicProvider) Capabilities() Capabilities {
	return Capabilities{Specialty: SpecialtyPricing}
}

func (p *AnthropicProvider) Appraise(ctx context.Context, item ItemContext) (*model.Appraisal, error) {
	prompt := buildAppraisePrompt(item)

	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.model,
			MaxTokens: 512,
			System:    anthropic.BuildCachedSystemBlocks(appraiseSystemPrompt),
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "provider: %s appraise", p.id)
	}

	resp.Usage.LogCost(p.model, "appraise")

	return ParseAppraisal(resp.Text())
}

func buildAppraisePrompt(item ItemContext) string {
	var image, extra, evidence string
	if item.ImageDescription != "" {
		image = "Observed condition: " + item.ImageDescription + "\n"
	}
	if item.Extra != "" {
		extra = "Additional context: " + item.Extra + "\n"
	}
	if item.EvidenceBlock != "" {
		evidence = "\nMarket evidence:\n" + item.EvidenceBlock + "\n"
	}
	return fmt.Sprintf(appraiseUserPrompt, item.ItemName, item.Category, image, extra, evidence)
}
