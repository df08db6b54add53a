// Package grocery holds the consolidated shopping list returned by the recipe
// service and renders it for display and download.
package grocery

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"weekly-menu-planner/internal/recipe"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Item is one line of the shopping list.
type Item struct {
	Name     string   `json:"name"`
	Quantity string   `json:"quantity,omitempty"`
	Recipes  []string `json:"recipes,omitempty"`
}

// UnmarshalJSON accepts a bare string or an object whose quantity may be a number.
func (i *Item) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*i = Item{Name: name}
		return nil
	}

	var aux struct {
		Name     string          `json:"name"`
		Item     string          `json:"item"`
		Quantity json.RawMessage `json:"quantity"`
		Recipes  []string        `json:"recipes"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to decode grocery item: %w", err)
	}
	i.Name = aux.Name
	if i.Name == "" {
		i.Name = aux.Item
	}
	i.Quantity = RawText(aux.Quantity)
	i.Recipes = aux.Recipes
	return nil
}

// RawText renders a JSON scalar as plain text: strings are unquoted, numbers
// are kept as written, null and empty input give "".
func RawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(raw)
}

// List is a grocery list for one week's menu.
type List struct {
	Departments        map[string][]Item `json:"grocery_list"`
	EquipmentReminders []string          `json:"equipment_reminders,omitempty"`
	ShoppingTips       []string          `json:"shopping_tips,omitempty"`
	// Formatted is the service's own text rendering, when it sent one.
	Formatted     string          `json:"formatted_list,omitempty"`
	EstimatedCost string          `json:"estimated_cost,omitempty"`
	WeekDate      string          `json:"week_date"`
	Recipes       []recipe.Recipe `json:"selected_recipes,omitempty"`
}

// departmentOrder is the aisle order used when listing departments.
var departmentOrder = []string{"produce", "meat_seafood", "dairy", "pantry", "frozen", "condiments", "spices"}

var departmentLabels = map[string]string{
	"produce":      "Produce",
	"meat_seafood": "Meat & Seafood",
	"dairy":        "Dairy",
	"pantry":       "Pantry",
	"frozen":       "Frozen",
	"condiments":   "Condiments",
	"spices":       "Spices",
}

var titleCaser = cases.Title(language.English)

// DepartmentLabel turns a department key such as "meat_seafood" into a heading.
func DepartmentLabel(key string) string {
	if label, ok := departmentLabels[strings.ToLower(key)]; ok {
		return label
	}
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

// DepartmentNames returns the non-empty departments in aisle order, unknown
// departments last in alphabetical order.
func (l *List) DepartmentNames() []string {
	var known, other []string
	for name, items := range l.Departments {
		if len(items) == 0 {
			continue
		}
		if slices.Contains(departmentOrder, strings.ToLower(name)) {
			known = append(known, name)
		} else {
			other = append(other, name)
		}
	}
	sort.Slice(known, func(i, j int) bool {
		return slices.Index(departmentOrder, strings.ToLower(known[i])) < slices.Index(departmentOrder, strings.ToLower(known[j]))
	})
	sort.Strings(other)
	return append(known, other...)
}

// ItemCount is the number of lines across all departments.
func (l *List) ItemCount() int {
	n := 0
	for _, items := range l.Departments {
		n += len(items)
	}
	return n
}

// FileName returns the download name for the given extension, e.g.
// "weekly-grocery-list-2024-05-06.txt".
func (l *List) FileName(ext string) string {
	return fmt.Sprintf("weekly-grocery-list-%s.%s", l.WeekDate, strings.TrimPrefix(ext, "."))
}

// Text returns the plain-text list, preferring the service's rendering.
func (l *List) Text() string {
	if strings.TrimSpace(l.Formatted) != "" {
		return l.Formatted
	}
	return l.render(false)
}

// Markdown renders the list as a markdown checklist.
func (l *List) Markdown() string {
	return l.render(true)
}

func (l *List) render(markdown bool) string {
	var sb strings.Builder

	heading := func(level int, text string) {
		if markdown {
			sb.WriteString(strings.Repeat("#", level) + " " + text + "\n\n")
			return
		}
		if level == 1 {
			sb.WriteString(strings.ToUpper(text) + "\n")
			sb.WriteString(strings.Repeat("=", len(text)) + "\n\n")
			return
		}
		sb.WriteString(text + ":\n")
	}
	bullet := "- "
	check := "- [ ] "
	if !markdown {
		check = "[ ] "
	}

	heading(1, fmt.Sprintf("Weekly Grocery List (%s)", l.WeekDate))

	if len(l.Recipes) > 0 {
		heading(2, "Your Weekly Menu")
		for i, r := range l.Recipes {
			sb.WriteString(fmt.Sprintf("%d. %s", i+1, r.Name))
			if r.PrepTime != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", r.PrepTime))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	for _, dept := range l.DepartmentNames() {
		heading(2, DepartmentLabel(dept))
		for _, item := range l.Departments[dept] {
			sb.WriteString(check + item.Name)
			if item.Quantity != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", item.Quantity))
			}
			if len(item.Recipes) > 0 {
				if markdown {
					sb.WriteString(fmt.Sprintf(" _%s_", strings.Join(item.Recipes, ", ")))
				} else {
					sb.WriteString(fmt.Sprintf(" - for %s", strings.Join(item.Recipes, ", ")))
				}
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(l.EquipmentReminders) > 0 {
		heading(2, "Equipment Reminders")
		for _, e := range l.EquipmentReminders {
			sb.WriteString(bullet + e + "\n")
		}
		sb.WriteString("\n")
	}
	if len(l.ShoppingTips) > 0 {
		heading(2, "Shopping Tips")
		for _, tip := range l.ShoppingTips {
			sb.WriteString(bullet + tip + "\n")
		}
		sb.WriteString("\n")
	}
	if l.EstimatedCost != "" {
		sb.WriteString(fmt.Sprintf("Estimated cost: %s\n", l.EstimatedCost))
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}
