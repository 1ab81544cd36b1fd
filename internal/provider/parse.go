package provider

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/flipscout/appraisal-cli/internal/model"
)

var validate = validator.New()

// ParseAppraisal extracts and validates a structured appraisal from raw model
// text. Unknown fields are dropped by the decode; a response that fails shape
// or range validation is rejected, never passed through.
func ParseAppraisal(text string) (*model.Appraisal, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.New("provider: empty response")
	}

	var a model.Appraisal
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		return nil, eris.Wrap(err, "provider: unmarshal appraisal")
	}

	a.Decision = model.Decision(strings.ToUpper(string(a.Decision)))
	if err := validate.Struct(&a); err != nil {
		return nil, eris.Wrap(err, "provider: invalid appraisal")
	}

	// Drop non-positive web prices before they reach the sanitizer.
	if len(a.WebPrices) > 0 {
		clean := a.WebPrices[:0]
		for _, p := range a.WebPrices {
			if p > 0 {
				clean = append(clean, p)
			}
		}
		a.WebPrices = clean
	}

	return &a, nil
}

// ParseTiebreakerVerdict extracts and validates an adjudication response.
// voteCount bounds the selectable index.
func ParseTiebreakerVerdict(text string, voteCount int) (*model.TiebreakerVerdict, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.New("provider: empty tiebreaker response")
	}

	var v model.TiebreakerVerdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, eris.Wrap(err, "provider: unmarshal tiebreaker verdict")
	}

	if v.AdjustedDecision != nil {
		d := model.Decision(strings.ToUpper(string(*v.AdjustedDecision)))
		v.AdjustedDecision = &d
	}
	if err := validate.Struct(&v); err != nil {
		return nil, eris.Wrap(err, "provider: invalid tiebreaker verdict")
	}
	if v.SelectedIndex >= voteCount {
		return nil, eris.Errorf("provider: tiebreaker selected vote %d of %d", v.SelectedIndex, voteCount)
	}

	return &v, nil
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or prose wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
