// Package evidence gathers market context for an item before any votes are
// cast: an authority price-guide lookup, a marketplace listing sample, and
// independent web searches, fetched concurrently and sanity-checked against
// each other.
package evidence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/model"
	"github.com/flipscout/appraisal-cli/internal/provider"
	"github.com/flipscout/appraisal-cli/pkg/ebay"
	"github.com/flipscout/appraisal-cli/pkg/pricecharting"
)

// WebFinding pairs a web-search provider's raw appraisal with its sanitized
// price list. The appraisal later becomes a market-search vote; the prices
// feed the evidence summary.
type WebFinding struct {
	Provider  string
	Appraisal *model.Appraisal
	Result    model.WebSearchResult
}

// Evidence is the full output of one fetch cycle.
type Evidence struct {
	Summary *model.EvidenceSummary
	Web     []WebFinding
}

// Fetcher runs the evidence stage. Any client may be nil; missing sources
// simply contribute nothing.
type Fetcher struct {
	authority   pricecharting.Client
	marketplace ebay.Client
	web         []provider.Provider
	sanitizer   *Sanitizer
	cfg         config.EvidenceConfig
	maxListings int
}

// NewFetcher creates the evidence fetcher. Only providers that declare web
// search capability are accepted into the web fan-out.
func NewFetcher(authority pricecharting.Client, marketplace ebay.Client, web []provider.Provider, cfg config.EvidenceConfig, maxListings int) *Fetcher {
	searchers := make([]provider.Provider, 0, len(web))
	for _, p := range web {
		if p.Capabilities().WebSearch {
			searchers = append(searchers, p)
		}
	}
	return &Fetcher{
		authority:   authority,
		marketplace: marketplace,
		web:         searchers,
		sanitizer:   NewSanitizer(cfg),
		cfg:         cfg,
		maxListings: maxListings,
	}
}

// Fetch gathers evidence for one item. Individual source failures and
// timeouts are logged and skipped; the returned summary reflects whatever
// arrived in time. Fetch never fails outright.
func (f *Fetcher) Fetch(ctx context.Context, itemName, category, extra string) *Evidence {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.EvidenceTimeout())
	defer cancel()

	var (
		mu          sync.Mutex
		authority   *model.AuthorityData
		marketplace *model.MarketplaceStats
		raw         []rawFinding
	)

	g, gctx := errgroup.WithContext(ctx)

	if f.authority != nil {
		g.Go(func() error {
			product, err := f.authority.LookupProduct(gctx, itemName)
			if err != nil {
				zap.L().Warn("evidence: authority lookup failed",
					zap.String("item", itemName), zap.Error(err))
				return nil
			}
			if price := product.BestPrice(); price > 0 {
				mu.Lock()
				authority = &model.AuthorityData{
					Price:  price,
					Source: "pricecharting",
					Details: map[string]string{
						"product_name": product.ProductName,
						"product_line": product.ConsoleName,
					},
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if f.marketplace != nil {
		g.Go(func() error {
			result, err := f.marketplace.SearchListings(gctx, itemName, f.maxListings)
			if err != nil {
				zap.L().Warn("evidence: marketplace search failed",
					zap.String("item", itemName), zap.Error(err))
				return nil
			}
			if len(result.Listings) == 0 {
				return nil
			}
			prices := make([]float64, 0, len(result.Listings))
			for _, l := range result.Listings {
				prices = append(prices, l.Price)
			}
			mu.Lock()
			marketplace = &model.MarketplaceStats{
				MedianPrice:  median(prices),
				ListingCount: result.Total,
				Source:       "ebay",
			}
			mu.Unlock()
			return nil
		})
	}

	for _, p := range f.web {
		p := p
		g.Go(func() error {
			callCtx, callCancel := context.WithTimeout(gctx, f.cfg.WebSearchTimeout())
			defer callCancel()

			start := time.Now()
			appraisal, err := p.Appraise(callCtx, provider.ItemContext{
				ItemName: itemName,
				Category: category,
				Extra:    extra,
			})
			latency := time.Since(start)
			if err != nil {
				// A timed-out or failed source contributes nothing this
				// cycle; it is not retried and not an error.
				zap.L().Warn("evidence: web search skipped",
					zap.String("provider", p.ID()),
					zap.Duration("latency", latency), zap.Error(err))
				return nil
			}
			mu.Lock()
			raw = append(raw, rawFinding{provider: p.ID(), appraisal: appraisal, latency: latency})
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only orders the collection phase.
	_ = g.Wait()

	// Sanitization needs the anchor, so it runs after the fan-out settles.
	anchor := anchorPrice(marketplace, authority)
	findings := make([]WebFinding, 0, len(raw))
	webResults := make([]model.WebSearchResult, 0, len(raw))
	for _, r := range raw {
		samples, allSuspect := f.sanitizer.Sanitize(r.appraisal.WebPrices, anchor)
		result := model.WebSearchResult{
			Provider:   r.provider,
			Prices:     samples,
			Summary:    r.appraisal.Explanation,
			Latency:    r.latency,
			AllSuspect: allSuspect,
		}
		findings = append(findings, WebFinding{Provider: r.provider, Appraisal: r.appraisal, Result: result})
		webResults = append(webResults, result)
	}

	summary := buildSummary(authority, marketplace, webResults)
	zap.L().Info("evidence: fetch complete",
		zap.String("item", itemName),
		zap.Bool("authority", authority != nil),
		zap.Bool("marketplace", marketplace != nil),
		zap.Int("web_sources", len(findings)),
		zap.Float64("market_confidence", summary.MarketConfidence))

	return &Evidence{Summary: summary, Web: findings}
}

type rawFinding struct {
	provider  string
	appraisal *model.Appraisal
	latency   time.Duration
}

func anchorPrice(marketplace *model.MarketplaceStats, authority *model.AuthorityData) float64 {
	if marketplace != nil && marketplace.MedianPrice > 0 {
		return marketplace.MedianPrice
	}
	if authority != nil && authority.Price > 0 {
		return authority.Price
	}
	return 0
}
