package backend

import (
	"encoding/json"

	"weekly-menu-planner/internal/grocery"
	"weekly-menu-planner/internal/recipe"
)

// Suggestions is the result of a weekly suggestions load.
type Suggestions struct {
	Recipes []recipe.Recipe
	Summary *Summary
}

// Summary describes where the suggested recipes came from.
type Summary struct {
	TotalRecipes    int            `json:"total_recipes,omitempty"`
	SourceBreakdown map[string]int `json:"source_breakdown,omitempty"`
}

// Overlap is the shared-ingredient analysis of the selected recipes.
type Overlap struct {
	SharedIngredients      []string
	TotalUniqueIngredients int
	// Score is the service's own score, when it sent one.
	Score *float64
}

// GroceryListRequest is the body of a grocery list request.
type GroceryListRequest struct {
	RecipeIDs []string        `json:"recipe_ids"`
	Recipes   []recipe.Recipe `json:"selected_recipes"`
	// WeekDate is the ISO date (YYYY-MM-DD) of the week.
	WeekDate string `json:"week_date"`
}

type status struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s status) apiStatus() status { return s }

type statusCarrier interface {
	apiStatus() status
}

type suggestionsResponse struct {
	status
	Suggestions []recipe.Recipe `json:"suggestions"`
	Summary     *Summary        `json:"summary,omitempty"`
}

type updateRequest struct {
	SelectedRecipe       recipe.Recipe   `json:"selected_recipe"`
	RemainingSuggestions []recipe.Recipe `json:"remaining_suggestions"`
}

type updateResponse struct {
	status
	UpdatedSuggestions []recipe.Recipe `json:"updated_suggestions"`
}

type overlapRequest struct {
	RecipeIDs []string `json:"recipe_ids"`
}

type overlapResponse struct {
	status
	SharedIngredients      []string `json:"shared_ingredients"`
	TotalUniqueIngredients int      `json:"total_unique_ingredients"`
	OverlapScore           *float64 `json:"overlap_score,omitempty"`
	OverlapPercentage      *float64 `json:"overlap_percentage,omitempty"`
}

func (r overlapResponse) toOverlap() *Overlap {
	score := r.OverlapScore
	if score == nil {
		score = r.OverlapPercentage
	}
	return &Overlap{
		SharedIngredients:      r.SharedIngredients,
		TotalUniqueIngredients: r.TotalUniqueIngredients,
		Score:                  score,
	}
}

type groceryResponse struct {
	status
	GroceryList        json.RawMessage `json:"grocery_list"`
	RawData            json.RawMessage `json:"raw_data"`
	EquipmentReminders []string        `json:"equipment_reminders"`
	ShoppingTips       []string        `json:"shopping_tips"`
	FormattedList      json.RawMessage `json:"formatted_list"`
	EstimatedCost      json.RawMessage `json:"estimated_cost"`
}

// toList normalises the several response shapes the service has used: the
// department map may sit at the top level, under raw_data.grocery_list, as
// raw_data itself, or inside a structured formatted_list.
func (r groceryResponse) toList(req GroceryListRequest) *grocery.List {
	l := &grocery.List{
		EquipmentReminders: r.EquipmentReminders,
		ShoppingTips:       r.ShoppingTips,
		EstimatedCost:      grocery.RawText(r.EstimatedCost),
		WeekDate:           req.WeekDate,
		Recipes:            req.Recipes,
	}

	var formattedText string
	if err := json.Unmarshal(r.FormattedList, &formattedText); err == nil {
		l.Formatted = formattedText
	}

	for _, candidate := range []json.RawMessage{
		r.GroceryList,
		nested(r.RawData, "grocery_list"),
		r.RawData,
		nested(r.FormattedList, "grocery_list"),
	} {
		if depts := departments(candidate); len(depts) > 0 {
			l.Departments = depts
			break
		}
	}

	if l.EquipmentReminders == nil {
		_ = json.Unmarshal(nested(r.RawData, "equipment_reminders"), &l.EquipmentReminders)
	}
	if l.ShoppingTips == nil {
		_ = json.Unmarshal(nested(r.RawData, "shopping_tips"), &l.ShoppingTips)
	}
	return l
}

func nested(raw json.RawMessage, key string) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj[key]
}

// notDepartments are list-valued keys that travel next to the departments.
var notDepartments = map[string]bool{
	"equipment_reminders": true,
	"shopping_tips":       true,
	"selected_recipes":    true,
}

// departments decodes a department map, skipping entries that are not item lists.
func departments(raw json.RawMessage) map[string][]grocery.Item {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	out := make(map[string][]grocery.Item)
	for name, value := range obj {
		if notDepartments[name] {
			continue
		}
		var items []grocery.Item
		if err := json.Unmarshal(value, &items); err != nil || len(items) == 0 {
			continue
		}
		out[name] = items
	}
	return out
}
