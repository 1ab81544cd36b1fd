package provider

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/flipscout/appraisal-cli/internal/model"
	"github.com/flipscout/appraisal-cli/pkg/openrouter"
	"github.com/flipscout/appraisal-cli/pkg/perplexity"
)

const webSearchSystemPrompt = `You are a resale market researcher with web search. Find recent sold and active listing prices for the item, then estimate its resale value. Respond with a valid JSON object only:
{"item_name": "<canonical item name>", "category": "<category>", "value": <dollars>, "decision": "BUY" or "SELL", "confidence": <0.0-1.0>, "explanation": "<one or two sentences>", "web_prices": [<comparable prices you found, dollars>]}`

const webSearchUserPrompt = `Find current market prices for: %s (category: %s).%s`

// marketplaceDomains restricts Perplexity's search to domains that carry
// real listing prices.
var marketplaceDomains = []string{"ebay.com", "pricecharting.com", "stockx.com", "mercari.com"}

func buildWebSearchPrompt(item ItemContext) string {
	var extra string
	if item.Extra != "" {
		extra = " " + item.Extra
	}
	return fmt.Sprintf(webSearchUserPrompt, item.ItemName, item.Category, extra)
}

// PerplexityProvider is a web-search-capable appraisal source backed by the
// Perplexity API.
type PerplexityProvider struct {
	id     string
	client perplexity.Client
	model  string
}

// NewPerplexityProvider creates the Perplexity web-search provider.
func NewPerplexityProvider(id string, client perplexity.Client, modelID string) *PerplexityProvider {
	return &PerplexityProvider{id: id, client: client, model: modelID}
}

func (p *PerplexityProvider) ID() string { return p.id }

func (p *PerplexityProvider) Capabilities() Capabilities {
	return Capabilities{WebSearch: true, Specialty: SpecialtyGeneral}
}

func (p *PerplexityProvider) Appraise(ctx context.Context, item ItemContext) (*model.Appraisal, error) {
	maxTokens := 512
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: p.model,
		Messages: []perplexity.Message{
			{Role: "system", Content: webSearchSystemPrompt},
			{Role: "user", Content: buildWebSearchPrompt(item)},
		},
		MaxTokens:           &maxTokens,
		SearchDomainFilter:  marketplaceDomains,
		SearchRecencyFilter: "month",
	})
	if err != nil {
		return nil, eris.Wrapf(err, "provider: %s appraise", p.id)
	}

	return ParseAppraisal(resp.Content())
}

// OpenRouterProvider is a second, independent web-search-capable appraisal
// source so web evidence never hinges on a single vendor.
type OpenRouterProvider struct {
	id     string
	client openrouter.Client
	model  string
}

// NewOpenRouterProvider creates the OpenRouter web-search provider.
func NewOpenRouterProvider(id string, client openrouter.Client, modelID string) *OpenRouterProvider {
	return &OpenRouterProvider{id: id, client: client, model: modelID}
}

func (p *OpenRouterProvider) ID() string { return p.id }

func (p *OpenRouterProvider) Capabilities() Capabilities {
	return Capabilities{WebSearch: true, Specialty: SpecialtyGeneral}
}

func (p *OpenRouterProvider) Appraise(ctx context.Context, item ItemContext) (*model.Appraisal, error) {
	maxTokens := 512
	resp, err := p.client.ChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model: p.model,
		Messages: []openrouter.Message{
			{Role: "system", Content: webSearchSystemPrompt},
			{Role: "user", Content: buildWebSearchPrompt(item)},
		},
		MaxTokens: &maxTokens,
		Plugins:   []openrouter.Plugin{{ID: "web", MaxResults: 5}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "provider: %s appraise", p.id)
	}

	return ParseAppraisal(resp.Content())
}
