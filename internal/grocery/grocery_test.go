package grocery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"weekly-menu-planner/internal/recipe"

	"github.com/xuri/excelize/v2"
)

func sampleList() *List {
	return &List{
		WeekDate: "2024-05-06",
		Departments: map[string][]Item{
			"spices":       {{Name: "paprika"}},
			"produce":      {{Name: "zucchini", Quantity: "2", Recipes: []string{"Grilled Chicken", "Veggie Bowl"}}},
			"bakery":       {{Name: "pita bread", Quantity: "1 pack"}},
			"meat_seafood": {{Name: "chicken breast", Quantity: "1 lb"}},
			"frozen":       {},
		},
		ShoppingTips: []string{"Buy the zucchini last"},
		Recipes: []recipe.Recipe{
			{ID: "a", Name: "Grilled Chicken", PrepTime: "30 min"},
		},
	}
}

func TestDepartmentNames(t *testing.T) {
	got := sampleList().DepartmentNames()
	want := "produce,meat_seafood,spices,bakery"
	if strings.Join(got, ",") != want {
		t.Errorf("Expected %s, got %v", want, got)
	}
}

func TestDepartmentLabel(t *testing.T) {
	cases := map[string]string{
		"meat_seafood": "Meat & Seafood",
		"produce":      "Produce",
		"baking_goods": "Baking Goods",
	}
	for in, want := range cases {
		if got := DepartmentLabel(in); got != want {
			t.Errorf("DepartmentLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestItemUnmarshalJSON(t *testing.T) {
	var items []Item
	data := `["olive oil", {"name": "rice", "quantity": 2, "recipes": ["Bowl"]}, {"item": "lemons", "quantity": "3"}]`
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if items[0].Name != "olive oil" || items[0].Quantity != "" {
		t.Errorf("Unexpected string item: %+v", items[0])
	}
	if items[1].Quantity != "2" || len(items[1].Recipes) != 1 {
		t.Errorf("Unexpected object item: %+v", items[1])
	}
	if items[2].Name != "lemons" || items[2].Quantity != "3" {
		t.Errorf("Unexpected item alias: %+v", items[2])
	}
}

func TestText(t *testing.T) {
	t.Run("RenderedLocally", func(t *testing.T) {
		text := sampleList().Text()
		for _, want := range []string{
			"WEEKLY GROCERY LIST (2024-05-06)",
			"1. Grilled Chicken (30 min)",
			"Produce:\n[ ] zucchini (2) - for Grilled Chicken, Veggie Bowl",
			"Shopping Tips:\n- Buy the zucchini last",
		} {
			if !strings.Contains(text, want) {
				t.Errorf("Expected text to contain %q, got:\n%s", want, text)
			}
		}
		if strings.Index(text, "Produce:") > strings.Index(text, "Meat & Seafood:") {
			t.Error("Produce must be listed before Meat & Seafood")
		}
	})

	t.Run("PrefersServiceFormatting", func(t *testing.T) {
		l := sampleList()
		l.Formatted = "served by backend"
		if l.Text() != "served by backend" {
			t.Errorf("Expected backend text, got %q", l.Text())
		}
	})
}

func TestMarkdown(t *testing.T) {
	md := sampleList().Markdown()
	if !strings.HasPrefix(md, "# Weekly Grocery List (2024-05-06)") {
		t.Errorf("Unexpected markdown heading:\n%s", md)
	}
	if !strings.Contains(md, "## Meat & Seafood\n\n- [ ] chicken breast (1 lb)") {
		t.Errorf("Expected markdown checklist, got:\n%s", md)
	}
}

func TestFileName(t *testing.T) {
	if got := sampleList().FileName("txt"); got != "weekly-grocery-list-2024-05-06.txt" {
		t.Errorf("Unexpected file name %q", got)
	}
	if got := sampleList().FileName(".xlsx"); got != "weekly-grocery-list-2024-05-06.xlsx" {
		t.Errorf("Unexpected file name %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "markdown": FormatMarkdown, ".xlsx": FormatXLSX} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("Expected an error for pdf")
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()

	t.Run("Text", func(t *testing.T) {
		path, err := sampleList().Export(dir, FormatText)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if filepath.Base(path) != "weekly-grocery-list-2024-05-06.txt" {
			t.Errorf("Unexpected path %s", path)
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "zucchini") {
			t.Error("Exported text is missing items")
		}
	})

	t.Run("XLSX", func(t *testing.T) {
		path, err := sampleList().Export(dir, FormatXLSX)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		f, err := excelize.OpenFile(path)
		if err != nil {
			t.Fatalf("Failed to open workbook: %v", err)
		}
		defer f.Close()

		rows, err := f.GetRows(listSheet)
		if err != nil {
			t.Fatalf("Failed to read rows: %v", err)
		}
		// header + 4 items
		if len(rows) != 5 {
			t.Fatalf("Expected 5 rows, got %d", len(rows))
		}
		if rows[1][0] != "Produce" || rows[1][1] != "zucchini" {
			t.Errorf("Unexpected first item row: %v", rows[1])
		}
		menu, _ := f.GetRows(menuSheet)
		if len(menu) != 2 || menu[1][0] != "Grilled Chicken" {
			t.Errorf("Unexpected menu rows: %v", menu)
		}
	})
}
