package selector

import (
	"fmt"
	"math"

	"weekly-menu-planner/internal/grocery"
	"weekly-menu-planner/internal/recipe"
)

// State is the controller's lifecycle state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Mutating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Mutating:
		return "mutating"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient message for the user.
type Notification struct {
	Level   Level
	Message string
}

// Surface renders controller state. Calls are made without the controller's
// lock held, so a surface may call back into Snapshot.
type Surface interface {
	Render(v View)
	Notify(n Notification)
	// SetLoading shows or hides a busy indicator with the given message.
	SetLoading(message string, loading bool)
}

// OverlapReport summarises ingredients shared across the selection.
type OverlapReport struct {
	SharedIngredients []string
	TotalUnique       int
	// Efficiency is round(100 * shared / total), 0 when total is 0.
	Efficiency int
	Score      *float64
}

// Efficiency returns the share of unique ingredients used by more than one recipe, in percent.
func Efficiency(shared, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(shared) / float64(total) * 100))
}

// Tier grades the efficiency: "excellent" from 70%, "good" from 50%, else "low".
func (r OverlapReport) Tier() string {
	switch {
	case r.Efficiency >= 70:
		return "excellent"
	case r.Efficiency >= 50:
		return "good"
	default:
		return "low"
	}
}

// Progress is the menu completion indicator.
type Progress struct {
	Selected int
	Percent  int
	Message  string
}

var progressMessages = [...]string{
	"Select 4 delicious recipes for your week (0/4 selected)",
	"Great start! Keep building your menu (1/4 selected)",
	"You're halfway there! (2/4 selected)",
	"Almost ready for a fantastic week! (3/4 selected)",
	"Perfect! Your weekly menu is complete! (4/4 selected)",
}

// ProgressFor returns the indicator for n selected recipes.
func ProgressFor(n int) Progress {
	n = max(0, min(n, recipe.MaxSelections))
	return Progress{
		Selected: n,
		Percent:  n * 100 / recipe.MaxSelections,
		Message:  progressMessages[n],
	}
}

// GroceryButtonLabel is the grocery action's label for n selected recipes.
func GroceryButtonLabel(n int) string {
	remaining := recipe.MaxSelections - n
	switch {
	case remaining <= 0:
		return "Generate Smart Grocery List"
	case remaining == 1:
		return "Select 1 more recipe"
	default:
		return fmt.Sprintf("Select %d more recipes", remaining)
	}
}

// View is a read-only copy of everything a surface needs to draw.
type View struct {
	State State
	// Pool is the full suggestion pool, selected recipes first.
	Pool []recipe.Recipe
	// Displayed is the pool without selected recipes, with filters applied.
	Displayed []recipe.Recipe
	Selection []recipe.Recipe
	Filters   recipe.Criteria
	Overlap   *OverlapReport
	Progress  Progress

	GroceryEnabled bool
	GroceryLabel   string
	GroceryList    *grocery.List

	// Fallback is set while the built-in sample menu is shown.
	Fallback bool
}

// IsSelected reports whether the recipe with id is in the selection.
func (v View) IsSelected(id string) bool {
	return recipe.Contains(v.Selection, id)
}

type nopSurface struct{}

func (nopSurface) Render(View) {}
func (nopSurface) Notify(Notification) {}
func (nopSurface) SetLoading(string, bool) {}
