package category

import (
	"sort"

	"github.com/flipscout/appraisal-cli/internal/model"
)

// weightedKeyword scores an item name toward a category. Longer, more
// specific phrases carry higher weight than single generic words.
type weightedKeyword struct {
	phrase string
	weight float64
}

// categoryKeywords maps each category to its scoring vocabulary. Phrases are
// matched against the lowercased item name; multi-word phrases and brand
// names outweigh generic nouns. Short tokens like "nes" or "cib" are matched
// with word boundaries so they cannot fire inside longer words.
var categoryKeywords = map[string][]weightedKeyword{
	"trading_cards": {
		{"pokemon card", 3.0}, {"baseball card", 3.0}, {"basketball card", 3.0},
		{"trading card", 2.5}, {"rookie card", 2.5}, {"holo", 1.5}, {"charizard", 2.0},
		{"topps", 2.0}, {"panini", 2.0}, {"upper deck", 2.0}, {"tcg", 1.5},
		{"booster box", 2.0}, {"graded", 1.0}, {"card", 0.8},
	},
	"lego": {
		{"lego set", 3.0}, {"lego technic", 3.0}, {"lego star wars", 3.0},
		{"minifigure", 2.0}, {"lego", 2.5}, {"brick set", 1.5},
	},
	"electronics": {
		{"game console", 2.5}, {"graphics card", 2.5}, {"iphone", 2.0},
		{"macbook", 2.0}, {"laptop", 1.8}, {"headphones", 1.5}, {"camera", 1.5},
		{"nintendo switch", 2.5}, {"playstation", 2.0}, {"xbox", 2.0},
		{"tablet", 1.5}, {"monitor", 1.2}, {"keyboard", 1.0}, {"speaker", 1.0},
	},
	"video_games": {
		{"video game", 3.0}, {"sealed game", 2.5}, {"cartridge", 2.0},
		{"nes", 1.5}, {"snes", 1.8}, {"gamecube", 2.0}, {"game boy", 2.0},
		{"cib", 1.5},
	},
	"shoes": {
		{"air jordan", 3.0}, {"yeezy", 3.0}, {"sneaker", 2.0}, {"nike dunk", 2.5},
		{"new balance", 2.0}, {"running shoe", 2.0}, {"boots", 1.2}, {"shoes", 1.0},
	},
	"watches": {
		{"rolex", 3.0}, {"omega seamaster", 3.0}, {"seiko", 2.0}, {"casio", 1.5},
		{"wristwatch", 2.0}, {"chronograph", 1.8}, {"automatic watch", 2.5},
		{"watch", 1.0},
	},
	"coins": {
		{"silver dollar", 3.0}, {"morgan dollar", 3.0}, {"gold coin", 2.5},
		{"mint state", 2.0}, {"numismatic", 2.0}, {"proof set", 2.0},
		{"coin", 1.0}, {"bullion", 1.8},
	},
	"collectibles": {
		{"funko pop", 3.0}, {"action figure", 2.5}, {"comic book", 2.5},
		{"first edition", 1.8}, {"vintage toy", 2.0}, {"memorabilia", 1.8},
		{"autographed", 1.8}, {"figurine", 1.5},
	},
}

// compiledKeyword pairs a scoring weight with the same boundary-safe matcher
// the override rules use.
type compiledKeyword struct {
	matcher patternMatcher
	weight  float64
}

var compiledKeywords = compileKeywords(categoryKeywords)

func compileKeywords(vocab map[string][]weightedKeyword) map[string][]compiledKeyword {
	out := make(map[string][]compiledKeyword, len(vocab))
	for cat, keywords := range vocab {
		compiled := make([]compiledKeyword, 0, len(keywords))
		for _, kw := range keywords {
			compiled = append(compiled, compiledKeyword{
				matcher: compilePattern(kw.phrase),
				weight:  kw.weight,
			})
		}
		out[cat] = compiled
	}
	return out
}

// scoreKeywords scores the item name against every category's keyword list
// and returns the top-scoring category. Confidence grows with the score but
// stays below the structural-parsing tier.
func scoreKeywords(name string) (model.CategoryDetection, bool) {
	type scored struct {
		category string
		score    float64
		matched  []string
	}

	var results []scored
	for cat, keywords := range compiledKeywords {
		var s scored
		s.category = cat
		for _, kw := range keywords {
			if kw.matcher.matches(name) {
				s.score += kw.weight
				s.matched = append(s.matched, kw.matcher.raw)
			}
		}
		if s.score > 0 {
			results = append(results, s)
		}
	}
	if len(results) == 0 {
		return model.CategoryDetection{}, false
	}

	// Highest score wins; break ties by category name so detection stays
	// deterministic across map iteration orders.
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].category < results[j].category
	})

	top := results[0]
	return model.CategoryDetection{
		Category:   top.category,
		Confidence: keywordConfidence(top.score),
		Matched:    top.matched,
		Source:     model.SourceKeywordDetection,
	}, true
}

// keywordConfidence maps a raw keyword score to [0.55, 0.88]: a single weak
// keyword barely beats the default tier, a strong multi-phrase match
// approaches but never reaches the structural tier.
func keywordConfidence(score float64) float64 {
	c := 0.55 + score*0.08
	if c > 0.88 {
		c = 0.88
	}
	return c
}
