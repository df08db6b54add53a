package recipe

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/fallback_recipes.yaml
var fallbackYAML []byte

// Fallback returns a fresh copy of the built-in sample menu.
func Fallback() []Recipe {
	recipes, err := parseFallback(fallbackYAML)
	if err != nil {
		// The file is embedded at build time; a parse failure is a build defect.
		panic(err)
	}
	return recipes
}

func parseFallback(data []byte) ([]Recipe, error) {
	var recipes []Recipe
	if err := yaml.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("failed to parse fallback recipes: %w", err)
	}
	if len(recipes) != MaxSelections {
		return nil, fmt.Errorf("fallback set must hold %d recipes, got %d", MaxSelections, len(recipes))
	}
	return recipes, nil
}
