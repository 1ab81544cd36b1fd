package model

// DetectionSource identifies which detection tier produced a category.
type DetectionSource string

const (
	SourceOverride         DetectionSource = "override"
	SourceAIVote           DetectionSource = "ai_vote"
	SourceCategoryHint     DetectionSource = "category_hint"
	SourceNameParsing      DetectionSource = "name_parsing"
	SourceKeywordDetection DetectionSource = "keyword_detection"
	SourceDefault          DetectionSource = "default"
)

// CategoryDetection is the result of running an item name through the
// category detection cascade.
type CategoryDetection struct {
	Category   string          `json:"category"`
	Confidence float64         `json:"confidence"`
	Matched    []string        `json:"matched,omitempty"`
	Source     DetectionSource `json:"source"`
}

// NamePatternOverride is a static detection rule: data, not code. The
// detector sorts and evaluates overrides by descending priority; at most one
// override fires per detection.
type NamePatternOverride struct {
	Patterns []string `json:"patterns" yaml:"patterns"`
	Category string   `json:"category" yaml:"category"`
	Priority int      `json:"priority" yaml:"priority"`
}
