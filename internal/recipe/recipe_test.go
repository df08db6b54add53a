package recipe

import (
	"encoding/json"
	"strings"
	"testing"
)

func samplePool() []Recipe {
	return []Recipe{
		{ID: "r1", Name: "Lemon Chicken", Protein: "chicken", Cuisine: "mediterranean", CookingMethod: "oven"},
		{ID: "r2", Name: "Beef Tacos", Protein: "beef", Cuisine: "mexican", CookingMethod: "stove"},
		{ID: "r3", Name: "Chicken Satay", Protein: "chicken", Cuisine: "asian", CookingMethod: "grill"},
		{ID: "r4", Name: "Salmon Bowl", Protein: "salmon", Cuisine: "asian", CookingMethod: "stove"},
		{ID: "r5", Name: "Pork Chops", Protein: "pork", Cuisine: "american", CookingMethod: "grill"},
	}
}

func TestFilter(t *testing.T) {
	pool := samplePool()

	t.Run("ByProtein", func(t *testing.T) {
		got := Filter(pool, Criteria{Protein: "chicken"})
		if len(got) != 2 {
			t.Fatalf("Expected 2 recipes, got %d", len(got))
		}
		if got[0].ID != "r1" || got[1].ID != "r3" {
			t.Errorf("Expected order [r1 r3], got %v", IDs(got))
		}
	})

	t.Run("Conjunctive", func(t *testing.T) {
		got := Filter(pool, Criteria{Cuisine: "asian", CookingMethod: "stove"})
		if len(got) != 1 || got[0].ID != "r4" {
			t.Errorf("Expected only r4, got %v", IDs(got))
		}
	})

	t.Run("ZeroCriteriaMatchesAll", func(t *testing.T) {
		if got := Filter(pool, Criteria{}); len(got) != len(pool) {
			t.Errorf("Expected %d recipes, got %d", len(pool), len(got))
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		c := Criteria{Protein: "chicken"}
		once := Filter(pool, c)
		twice := Filter(once, c)
		if strings.Join(IDs(once), ",") != strings.Join(IDs(twice), ",") {
			t.Errorf("Filtering twice changed the result: %v vs %v", IDs(once), IDs(twice))
		}
	})
}

func TestWithout(t *testing.T) {
	pool := samplePool()
	got := Without(pool, []Recipe{{ID: "r2"}, {ID: "r5"}})
	if strings.Join(IDs(got), ",") != "r1,r3,r4" {
		t.Errorf("Expected r1,r3,r4, got %v", IDs(got))
	}
	if !Contains(pool, "r2") || Contains(got, "r2") {
		t.Error("Without must not modify its input")
	}
}

func TestOptions(t *testing.T) {
	got := Options(samplePool(), func(r Recipe) string { return r.Cuisine })
	if strings.Join(got, ",") != "mediterranean,mexican,asian,american" {
		t.Errorf("Unexpected cuisine options: %v", got)
	}
}

func TestUnmarshalJSON(t *testing.T) {
	t.Run("StarchAliasAndTextInstructions", func(t *testing.T) {
		var r Recipe
		err := json.Unmarshal([]byte(`{"id":"x","name":"Rice Bowl","starch":"rice","instructions":"Cook it."}`), &r)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if r.Starch != "rice" {
			t.Errorf("Expected starch 'rice', got '%s'", r.Starch)
		}
		if len(r.Instructions) != 1 || r.Instructions[0] != "Cook it." {
			t.Errorf("Expected a single instruction, got %v", r.Instructions)
		}
	})

	t.Run("StepList", func(t *testing.T) {
		var r Recipe
		err := json.Unmarshal([]byte(`{"id":"x","starch_grain":"quinoa","instructions":["Boil","Serve"],"source":"web_search"}`), &r)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if r.Starch != "quinoa" || len(r.Instructions) != 2 || r.Source != "web_search" {
			t.Errorf("Unexpected decode result: %+v", r)
		}
	})

	t.Run("BadInstructions", func(t *testing.T) {
		var r Recipe
		if err := json.Unmarshal([]byte(`{"id":"x","instructions":42}`), &r); err == nil {
			t.Fatal("Expected an error for numeric instructions, got nil")
		}
	})
}

func TestFallback(t *testing.T) {
	got := Fallback()
	want := []string{"fallback_001", "fallback_002", "fallback_003", "fallback_004"}
	if strings.Join(IDs(got), ",") != strings.Join(want, ",") {
		t.Fatalf("Expected %v, got %v", want, IDs(got))
	}
	if got[0].Protein != "chicken" || len(got[0].Vegetables) != 2 {
		t.Errorf("Unexpected first fallback recipe: %+v", got[0])
	}

	// Each call hands out an independent copy.
	got[0].Name = "changed"
	if Fallback()[0].Name == "changed" {
		t.Error("Fallback must return a fresh copy")
	}

	if _, err := parseFallback([]byte("- id: only_one\n")); err == nil {
		t.Error("Expected an error for a short fallback set")
	}
}
