package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipscout/appraisal-cli/internal/model"
)

func TestMedian(t *testing.T) {
	assert.InDelta(t, 0.0, median(nil), 1e-9)
	assert.InDelta(t, 42.0, median([]float64{42}), 1e-9)
	assert.InDelta(t, 40.0, median([]float64{50, 30, 40}), 1e-9)
}

func TestBuildSummary_FullEvidence(t *testing.T) {
	authority := &model.AuthorityData{Price: 650, Source: "pricecharting"}
	marketplace := &model.MarketplaceStats{MedianPrice: 620, ListingCount: 42, Source: "ebay"}
	web := []model.WebSearchResult{
		{Provider: "perplexity", Prices: []model.PriceSample{{Value: 600}, {Value: 680}}},
		{Provider: "openrouter", Prices: []model.PriceSample{{Value: 640}}},
	}

	s := buildSummary(authority, marketplace, web)

	require.NotNil(t, s.WebPrices)
	assert.InDelta(t, 600.0, s.WebPrices.Low, 1e-9)
	assert.InDelta(t, 680.0, s.WebPrices.High, 1e-9)
	assert.Equal(t, []string{"perplexity", "openrouter"}, s.WebPrices.Sources)

	// 0.4 listings + 0.3 authority + 0.2 clean web + 0.1 blended.
	assert.InDelta(t, 1.0, s.MarketConfidence, 1e-9)
	assert.False(t, s.AllWebSuspect)

	assert.Contains(t, s.FormattedBlock, "Authority (pricecharting): $650.00")
	assert.Contains(t, s.FormattedBlock, "42 active listings")
	assert.Contains(t, s.FormattedBlock, "$600.00 - $680.00")
}

func TestBuildSummary_ListingCountTiers(t *testing.T) {
	few := buildSummary(nil, &model.MarketplaceStats{MedianPrice: 10, ListingCount: 3, Source: "ebay"}, nil)
	assert.InDelta(t, 0.2, few.MarketConfidence, 1e-9)

	many := buildSummary(nil, &model.MarketplaceStats{MedianPrice: 10, ListingCount: 10, Source: "ebay"}, nil)
	assert.InDelta(t, 0.4, many.MarketConfidence, 1e-9)

	sparse := buildSummary(nil, &model.MarketplaceStats{MedianPrice: 10, ListingCount: 2, Source: "ebay"}, nil)
	assert.InDelta(t, 0.0, sparse.MarketConfidence, 1e-9)
}

func TestBuildSummary_AllSuspectWebPrices(t *testing.T) {
	marketplace := &model.MarketplaceStats{MedianPrice: 40, ListingCount: 12, Source: "ebay"}

	clean := buildSummary(nil, marketplace, []model.WebSearchResult{
		{Provider: "perplexity", Prices: []model.PriceSample{{Value: 45}}},
	})

	suspect := buildSummary(nil, marketplace, []model.WebSearchResult{
		{Provider: "perplexity", Prices: []model.PriceSample{{Value: 120, Suspect: true}}},
		{Provider: "openrouter", Prices: []model.PriceSample{{Value: 120, Suspect: true}}},
	})

	assert.Nil(t, suspect.WebPrices)
	assert.True(t, suspect.AllWebSuspect)
	assert.NotContains(t, suspect.FormattedBlock, "120")

	// Versus the clean case the suspect run loses the 0.2 clean-web credit
	// and takes the 0.1 all-suspect penalty.
	assert.InDelta(t, clean.MarketConfidence-0.3, suspect.MarketConfidence, 1e-9)
}

func TestBuildSummary_Empty(t *testing.T) {
	s := buildSummary(nil, nil, nil)
	assert.Nil(t, s.WebPrices)
	assert.InDelta(t, 0.0, s.MarketConfidence, 1e-9)
	assert.Empty(t, s.FormattedBlock)
	assert.InDelta(t, 0.0, s.AnchorPrice(), 1e-9)
}
