// Package category implements the pure, deterministic category detection
// cascade: override rules, model suggestion, caller hint, structural name
// parsing, keyword scoring, default.
package category

import (
	"regexp"
	"sort"
	"strings"

	"github.com/flipscout/appraisal-cli/internal/model"
)

// Tier confidences for the detection cascade. First satisfied tier wins.
const (
	overrideConfidence    = 0.98
	aiVoteConfidence      = 0.95
	hintConfidence        = 0.90
	nameParsingConfidence = 0.92
	defaultConfidence     = 0.5
)

// DefaultCategory is returned when no tier fires.
const DefaultCategory = "general"

// genericPlaceholders are model-suggested categories that carry no signal
// and must not short-circuit the cascade.
var genericPlaceholders = map[string]bool{
	"":        true,
	"general": true,
	"unknown": true,
	"other":   true,
	"item":    true,
	"misc":    true,
	"n/a":     true,
}

// Detector runs the detection cascade against a fixed rule set. Detectors
// are read-only after construction and safe for concurrent use.
type Detector struct {
	overrides []compiledOverride
}

type compiledOverride struct {
	rule     model.NamePatternOverride
	matchers []patternMatcher
}

type patternMatcher struct {
	raw string
	// re is non-nil for short tokens that need boundary-safe matching so a
	// 2-letter abbreviation cannot fire inside an unrelated compound word.
	re *regexp.Regexp
}

// NewDetector builds a detector from override rules sorted by descending
// priority, ties broken by list order, so the same input always yields the
// same detection.
func NewDetector(overrides []model.NamePatternOverride) *Detector {
	compiled := make([]compiledOverride, 0, len(overrides))
	for _, rule := range overrides {
		co := compiledOverride{rule: rule}
		for _, p := range rule.Patterns {
			co.matchers = append(co.matchers, compilePattern(p))
		}
		compiled = append(compiled, co)
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].rule.Priority > compiled[j].rule.Priority
	})
	return &Detector{overrides: compiled}
}

// shortTokenLimit is the pattern length at or below which plain substring
// matching is unsafe and word boundaries are required.
const shortTokenLimit = 3

func compilePattern(p string) patternMatcher {
	p = strings.ToLower(strings.TrimSpace(p))
	m := patternMatcher{raw: p}
	if len(p) <= shortTokenLimit {
		m.re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
	}
	return m
}

func (m patternMatcher) matches(name string) bool {
	if m.raw == "" {
		return false
	}
	if m.re != nil {
		return m.re.MatchString(name)
	}
	return strings.Contains(name, m.raw)
}

// Detect maps an item name (plus optional hints) to a category. Pure, no
// I/O, sub-millisecond.
func (d *Detector) Detect(itemName, categoryHint, modelSuggested string) model.CategoryDetection {
	name := strings.ToLower(strings.TrimSpace(itemName))

	// 1. Name-pattern overrides: first match by priority wins.
	for _, co := range d.overrides {
		for _, m := range co.matchers {
			if m.matches(name) {
				return model.CategoryDetection{
					Category:   co.rule.Category,
					Confidence: overrideConfidence,
					Matched:    []string{m.raw},
					Source:     model.SourceOverride,
				}
			}
		}
	}

	// 2. Model-suggested category, unless it is a generic placeholder.
	if norm := normalizeCategory(modelSuggested); !genericPlaceholders[norm] {
		return model.CategoryDetection{
			Category:   norm,
			Confidence: aiVoteConfidence,
			Source:     model.SourceAIVote,
		}
	}

	// 3. Caller-supplied hint.
	if norm := normalizeCategory(categoryHint); !genericPlaceholders[norm] {
		return model.CategoryDetection{
			Category:   norm,
			Confidence: hintConfidence,
			Source:     model.SourceCategoryHint,
		}
	}

	// 4. Structural name parsing.
	if det, ok := parseStructure(name); ok {
		return det
	}

	// 5. Keyword scoring.
	if det, ok := scoreKeywords(name); ok {
		return det
	}

	// 6. Default.
	return model.CategoryDetection{
		Category:   DefaultCategory,
		Confidence: defaultConfidence,
		Source:     model.SourceDefault,
	}
}

// normalizeCategory lowercases and snake-cases a raw category label.
func normalizeCategory(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// Structural patterns: category-specific shapes in item names that identify
// the category more reliably than individual keywords.
var (
	// LEGO set numbers: 4-7 digit number following "lego" or a standalone
	// "set <number>".
	legoSetPattern = regexp.MustCompile(`(?i)\blego\b.*\b\d{4,7}\b|\bset\s+#?\d{4,7}\b`)
	// Trading cards: "#123" card numbers or grading shorthand like "PSA 9".
	cardNumberPattern = regexp.MustCompile(`(?i)#\d{1,4}\b|\b(?:psa|bgs|cgc)\s*\d{1,2}(?:\.5)?\b`)
	// Shoes: US sizing, e.g. "size 10.5" or "sz 9".
	shoeSizePattern = regexp.MustCompile(`(?i)\b(?:size|sz)\s*\d{1,2}(?:\.5)?\b`)
	// Watch reference numbers, e.g. "ref. 116610".
	watchRefPattern = regexp.MustCompile(`(?i)\bref\.?\s*\d{4,6}\b`)
)

func parseStructure(name string) (model.CategoryDetection, bool) {
	type structural struct {
		re       *regexp.Regexp
		category string
	}
	// Order matters: more specific shapes first.
	checks := []structural{
		{legoSetPattern, "lego"},
		{watchRefPattern, "watches"},
		{cardNumberPattern, "trading_cards"},
		{shoeSizePattern, "shoes"},
	}
	for _, c := range checks {
		if m := c.re.FindString(name); m != "" {
			return model.CategoryDetection{
				Category:   c.category,
				Confidence: nameParsingConfidence,
				Matched:    []string{m},
				Source:     model.SourceNameParsing,
			}, true
		}
	}
	return model.CategoryDetection{}, false
}
