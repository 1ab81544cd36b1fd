package evidence

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"

	"github.com/flipscout/appraisal-cli/internal/model"
)

var usd = message.NewPrinter(language.AmericanEnglish)

// median returns the empirical median of vals, or 0 for an empty slice.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// buildSummary assembles the evidence summary from whatever sources
// responded. Partial evidence is normal; every field is optional.
func buildSummary(authority *model.AuthorityData, marketplace *model.MarketplaceStats, web []model.WebSearchResult) *model.EvidenceSummary {
	s := &model.EvidenceSummary{
		Authority:   authority,
		Marketplace: marketplace,
	}

	s.WebPrices, s.AllWebSuspect = webPriceRange(web)
	s.MarketConfidence = marketConfidence(s)
	s.FormattedBlock = formatBlock(s)

	return s
}

// webPriceRange computes the low/high band over clean prices only. The
// second return is true when web prices were found but all were suspect.
func webPriceRange(web []model.WebSearchResult) (*model.PriceRange, bool) {
	var r *model.PriceRange
	seen := false
	for _, w := range web {
		for _, p := range w.Prices {
			seen = true
			if p.Suspect {
				continue
			}
			if r == nil {
				r = &model.PriceRange{Low: p.Value, High: p.Value}
			} else {
				if p.Value < r.Low {
					r.Low = p.Value
				}
				if p.Value > r.High {
					r.High = p.Value
				}
			}
			if len(r.Sources) == 0 || r.Sources[len(r.Sources)-1] != w.Provider {
				r.Sources = append(r.Sources, w.Provider)
			}
		}
	}
	return r, seen && r == nil
}

// marketConfidence scores evidence strength additively. Each independent
// signal adds a fixed increment; an all-suspect web result subtracts one.
func marketConfidence(s *model.EvidenceSummary) float64 {
	var c float64
	if s.Marketplace != nil {
		switch {
		case s.Marketplace.ListingCount >= 10:
			c += 0.4
		case s.Marketplace.ListingCount >= 3:
			c += 0.2
		}
	}
	if s.Authority != nil && s.Authority.Price > 0 {
		c += 0.3
	}
	if s.WebPrices != nil {
		c += 0.2
	}
	if s.Authority != nil && s.Authority.Price > 0 &&
		s.Marketplace != nil && s.Marketplace.MedianPrice > 0 {
		// Two independent anchors means a blended market price exists.
		c += 0.1
	}
	if s.AllWebSuspect {
		c -= 0.1
	}

	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// formatBlock renders the evidence as prompt-ready text. Suspect prices
// never appear here.
func formatBlock(s *model.EvidenceSummary) string {
	var b strings.Builder
	if s.Authority != nil && s.Authority.Price > 0 {
		usd.Fprintf(&b, "Authority (%s): $%.2f\n", s.Authority.Source, s.Authority.Price)
	}
	if s.Marketplace != nil && s.Marketplace.MedianPrice > 0 {
		usd.Fprintf(&b, "Marketplace (%s): %d active listings, median $%.2f\n",
			s.Marketplace.Source, s.Marketplace.ListingCount, s.Marketplace.MedianPrice)
	}
	if s.WebPrices != nil {
		usd.Fprintf(&b, "Web comparables: $%.2f - $%.2f (%s)\n",
			s.WebPrices.Low, s.WebPrices.High, strings.Join(s.WebPrices.Sources, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
