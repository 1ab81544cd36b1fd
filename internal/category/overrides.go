package category

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/flipscout/appraisal-cli/internal/model"
)

// DefaultOverrides is the built-in name-pattern override set. Rules are data:
// operators can extend or replace them via a YAML file without code changes.
func DefaultOverrides() []model.NamePatternOverride {
	return []model.NamePatternOverride{
		{Patterns: []string{"psa", "bgs", "cgc"}, Category: "trading_cards", Priority: 90},
		{Patterns: []string{"lego"}, Category: "lego", Priority: 80},
		{Patterns: []string{"funko pop"}, Category: "collectibles", Priority: 70},
		{Patterns: []string{"rolex", "patek philippe", "audemars piguet"}, Category: "watches", Priority: 70},
		{Patterns: []string{"sealed in box", "factory sealed"}, Category: "collectibles", Priority: 20},
	}
}

// overridesFile is the on-disk shape of an override rule file.
type overridesFile struct {
	Overrides []model.NamePatternOverride `yaml:"overrides"`
}

// LoadOverrides reads override rules from a YAML file and appends them to
// the built-in set. Higher-priority file rules win over built-ins at
// detection time; equal priorities keep built-ins first (list order).
func LoadOverrides(path string) ([]model.NamePatternOverride, error) {
	rules := DefaultOverrides()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "category: read overrides %s", path)
	}

	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "category: parse overrides %s", path)
	}

	for _, r := range f.Overrides {
		if r.Category == "" || len(r.Patterns) == 0 {
			return nil, eris.Errorf("category: override rule missing category or patterns in %s", path)
		}
	}

	return append(rules, f.Overrides...), nil
}
