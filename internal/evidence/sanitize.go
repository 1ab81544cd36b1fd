package evidence

import (
	"fmt"
	"math"

	"github.com/flipscout/appraisal-cli/internal/config"
	"github.com/flipscout/appraisal-cli/internal/model"
)

// priceEpsilon absorbs float noise when matching suspicious defaults.
const priceEpsilon = 0.005

// Sanitizer flags implausible web prices against a trusted anchor. Flagged
// prices are retained for audit but excluded from ranges and evidence text.
type Sanitizer struct {
	suspiciousDefaults []float64
	ratioHigh          float64
	ratioLow           float64
}

// NewSanitizer builds a sanitizer from config.
func NewSanitizer(cfg config.EvidenceConfig) *Sanitizer {
	return &Sanitizer{
		suspiciousDefaults: cfg.SuspiciousDefaults,
		ratioHigh:          cfg.RatioHigh,
		ratioLow:           cfg.RatioLow,
	}
}

// Sanitize tags each price as clean or suspect. A price is suspect when it
// matches a known round-number default models tend to confabulate, or when
// its ratio to the anchor falls outside the plausible band. The ratio check
// is skipped when no anchor is available. The second return is true when the
// list is non-empty and every price was flagged.
func (s *Sanitizer) Sanitize(prices []float64, anchor float64) ([]model.PriceSample, bool) {
	if len(prices) == 0 {
		return nil, false
	}

	samples := make([]model.PriceSample, 0, len(prices))
	clean := 0
	for _, p := range prices {
		sample := model.PriceSample{Value: p}
		switch {
		case s.isSuspiciousDefault(p):
			sample.Suspect = true
			sample.SuspectReason = "matches suspicious default"
		case anchor > 0 && p/anchor > s.ratioHigh:
			sample.Suspect = true
			sample.SuspectReason = fmt.Sprintf("exceeds %.1fx anchor %.2f", s.ratioHigh, anchor)
		case anchor > 0 && p/anchor < s.ratioLow:
			sample.Suspect = true
			sample.SuspectReason = fmt.Sprintf("below %.2fx anchor %.2f", s.ratioLow, anchor)
		default:
			clean++
		}
		samples = append(samples, sample)
	}

	return samples, clean == 0
}

func (s *Sanitizer) isSuspiciousDefault(p float64) bool {
	for _, d := range s.suspiciousDefaults {
		if math.Abs(p-d) < priceEpsilon {
			return true
		}
	}
	return false
}
