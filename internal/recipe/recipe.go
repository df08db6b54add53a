package recipe

import (
	"encoding/json"
	"slices"
)

// MaxSelections is the number of recipes that make up a weekly menu.
const MaxSelections = 4

// Recipe is a single suggestion as returned by the recipe service.
type Recipe struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Protein       string   `json:"protein" yaml:"protein"`
	Cuisine       string   `json:"cuisine" yaml:"cuisine"`
	CookingMethod string   `json:"cooking_method" yaml:"cooking_method"`
	Vegetables    []string `json:"vegetables" yaml:"vegetables"`
	Starch        string   `json:"starch_grain" yaml:"starch_grain"`
	PrepTime      string   `json:"prep_time" yaml:"prep_time"`
	Difficulty    string   `json:"difficulty" yaml:"difficulty"`
	Ingredients   []string `json:"ingredients,omitempty" yaml:"ingredients"`
	Instructions  []string `json:"instructions,omitempty" yaml:"instructions"`
	SourceURL     string   `json:"source_url,omitempty" yaml:"source_url"`
	Source        string   `json:"source,omitempty" yaml:"source"`
	IsFavorite    bool     `json:"is_favorite,omitempty" yaml:"is_favorite"`
}

// UnmarshalJSON accepts both "starch_grain" and "starch", and instructions
// given either as a list of steps or a single block of text.
func (r *Recipe) UnmarshalJSON(data []byte) error {
	type plain Recipe
	aux := struct {
		*plain
		Starch       string          `json:"starch"`
		Instructions json.RawMessage `json:"instructions"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.Starch == "" {
		r.Starch = aux.Starch
	}

	r.Instructions = nil
	if len(aux.Instructions) > 0 && string(aux.Instructions) != "null" {
		var steps []string
		if err := json.Unmarshal(aux.Instructions, &steps); err == nil {
			r.Instructions = steps
		} else {
			var text string
			if err := json.Unmarshal(aux.Instructions, &text); err != nil {
				return err
			}
			if text != "" {
				r.Instructions = []string{text}
			}
		}
	}
	return nil
}

// IDs returns the identifiers of recipes in order.
func IDs(recipes []Recipe) []string {
	ids := make([]string, 0, len(recipes))
	for _, r := range recipes {
		ids = append(ids, r.ID)
	}
	return ids
}

// Find returns the recipe with the given id.
func Find(recipes []Recipe, id string) (Recipe, bool) {
	i := slices.IndexFunc(recipes, func(r Recipe) bool { return r.ID == id })
	if i < 0 {
		return Recipe{}, false
	}
	return recipes[i], true
}

// Contains reports whether a recipe with the given id is present.
func Contains(recipes []Recipe, id string) bool {
	_, ok := Find(recipes, id)
	return ok
}

// Without returns the recipes whose ids are not in exclude, order preserved.
func Without(recipes []Recipe, exclude []Recipe) []Recipe {
	skip := make(map[string]struct{}, len(exclude))
	for _, r := range exclude {
		skip[r.ID] = struct{}{}
	}
	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		if _, ok := skip[r.ID]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Criteria holds optional equality constraints. Empty fields match everything.
type Criteria struct {
	Protein       string `json:"protein,omitempty"`
	Cuisine       string `json:"cuisine,omitempty"`
	CookingMethod string `json:"cooking_method,omitempty"`
}

// IsZero reports whether no constraint is set.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// Matches reports whether r satisfies every constraint that is set.
func (c Criteria) Matches(r Recipe) bool {
	if c.Protein != "" && r.Protein != c.Protein {
		return false
	}
	if c.Cuisine != "" && r.Cuisine != c.Cuisine {
		return false
	}
	if c.CookingMethod != "" && r.CookingMethod != c.CookingMethod {
		return false
	}
	return true
}

// Filter returns the recipes matching c, order preserved.
func Filter(recipes []Recipe, c Criteria) []Recipe {
	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		if c.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Options lists the distinct non-empty values of a field across recipes, in
// first-seen order. Surfaces use it to populate their filter controls.
func Options(recipes []Recipe, field func(Recipe) string) []string {
	var out []string
	for _, r := range recipes {
		v := field(r)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
