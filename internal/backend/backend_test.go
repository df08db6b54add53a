package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"weekly-menu-planner/internal/config"
	"weekly-menu-planner/internal/recipe"

	"github.com/golang-jwt/jwt/v5"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	errs  []error
}

func (o *recordingObserver) ObserveCall(call, requestID string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call+":"+requestID)
	o.errs = append(o.errs, err)
}

func newTestClient(serverURL string, opts ...Option) Client {
	cfg := &config.Config{RecipeAPIURL: serverURL, RequestTimeout: time.Second}
	return NewClient(cfg, opts...)
}

func TestWeeklySuggestions(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/recipe/weekly-suggestions" {
				t.Errorf("Unexpected path %s", r.URL.Path)
			}
			if r.URL.RawQuery != "" {
				t.Errorf("Expected no query for a normal load, got %s", r.URL.RawQuery)
			}
			if r.Header.Get("X-Request-ID") == "" {
				t.Error("Expected an X-Request-ID header")
			}
			fmt.Fprintln(w, `{
				"success": true,
				"suggestions": [
					{"id": "r1", "name": "Lemon Chicken", "protein": "chicken", "starch": "rice"},
					{"id": "r2", "name": "Beef Tacos", "protein": "beef"}
				],
				"summary": {"total_recipes": 2, "source_breakdown": {"web_search": 1, "user_favorite": 1}}
			}`)
		}))
		defer server.Close()

		obs := &recordingObserver{}
		got, err := newTestClient(server.URL, WithObserver(obs)).WeeklySuggestions(context.Background(), false)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(got.Recipes) != 2 || got.Recipes[0].Starch != "rice" {
			t.Fatalf("Unexpected recipes: %+v", got.Recipes)
		}
		if got.Summary == nil || got.Summary.SourceBreakdown["web_search"] != 1 {
			t.Errorf("Unexpected summary: %+v", got.Summary)
		}
		if len(obs.calls) != 1 || !strings.HasPrefix(obs.calls[0], CallSuggestions+":") || obs.errs[0] != nil {
			t.Errorf("Unexpected observed calls: %v %v", obs.calls, obs.errs)
		}
	})

	t.Run("FreshQuery", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("include_web") != "true" || q.Get("fresh") != "true" {
				t.Errorf("Expected fresh query params, got %s", r.URL.RawQuery)
			}
			if q.Get("timestamp") != "1700000000000" {
				t.Errorf("Expected timestamp 1700000000000, got %s", q.Get("timestamp"))
			}
			fmt.Fprintln(w, `{"success": true, "suggestions": []}`)
		}))
		defer server.Close()

		clock := func() time.Time { return time.UnixMilli(1700000000000) }
		if _, err := newTestClient(server.URL, WithClock(clock)).WeeklySuggestions(context.Background(), true); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintln(w, `{"success": false, "error": "database down"}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).WeeklySuggestions(context.Background(), false)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected *APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "database down" {
			t.Errorf("Unexpected api error: %+v", apiErr)
		}
	})

	t.Run("SuccessFalseIsAnError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"success": false, "error": "no recipes"}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).WeeklySuggestions(context.Background(), false)
		if !IsAPIError(err) {
			t.Fatalf("Expected an api error for success:false, got %v", err)
		}
		if !strings.Contains(err.Error(), "no recipes") {
			t.Errorf("Expected backend message in error, got %v", err)
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"success": true, "suggestions": [`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).WeeklySuggestions(context.Background(), false)
		if err == nil || IsAPIError(err) {
			t.Fatalf("Expected a decode error, got %v", err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		cfg := &config.Config{RecipeAPIURL: server.URL, RequestTimeout: 50 * time.Millisecond}
		_, err := NewClient(cfg).WeeklySuggestions(context.Background(), false)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Expected deadline exceeded, got %v", err)
		}
	})
}

func TestUpdateSuggestions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/recipe/update-suggestions" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			SelectedRecipe       recipe.Recipe   `json:"selected_recipe"`
			RemainingSuggestions []recipe.Recipe `json:"remaining_suggestions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode body: %v", err)
			return
		}
		if body.SelectedRecipe.ID != "x" || len(body.RemainingSuggestions) != 2 {
			t.Errorf("Unexpected body: %+v", body)
		}
		fmt.Fprintln(w, `{"success": true, "updated_suggestions": [{"id": "b"}, {"id": "c"}]}`)
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).UpdateSuggestions(context.Background(),
		recipe.Recipe{ID: "x"}, []recipe.Recipe{{ID: "a"}, {ID: "b"}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Join(recipe.IDs(got), ",") != "b,c" {
		t.Errorf("Unexpected updated suggestions: %v", recipe.IDs(got))
	}
}

func TestIngredientOverlap(t *testing.T) {
	t.Run("OverlapScore", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"recipe_ids":["a","b"]}` {
				t.Errorf("Unexpected body %s", body)
			}
			fmt.Fprintln(w, `{"success": true, "shared_ingredients": ["garlic", "onion", "lemon"], "total_unique_ingredients": 10, "overlap_score": 0.3}`)
		}))
		defer server.Close()

		got, err := newTestClient(server.URL).IngredientOverlap(context.Background(), []string{"a", "b"})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(got.SharedIngredients) != 3 || got.TotalUniqueIngredients != 10 {
			t.Errorf("Unexpected overlap: %+v", got)
		}
		if got.Score == nil || *got.Score != 0.3 {
			t.Errorf("Expected score 0.3, got %v", got.Score)
		}
	})

	t.Run("OverlapPercentageAlias", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"success": true, "shared_ingredients": [], "total_unique_ingredients": 0, "overlap_percentage": 12.5}`)
		}))
		defer server.Close()

		got, err := newTestClient(server.URL).IngredientOverlap(context.Background(), []string{"a", "b"})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got.Score == nil || *got.Score != 12.5 {
			t.Errorf("Expected score 12.5, got %v", got.Score)
		}
	})
}

func TestGroceryList(t *testing.T) {
	req := GroceryListRequest{
		Recipes:  []recipe.Recipe{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		WeekDate: "2024-05-06",
	}

	t.Run("TopLevelList", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("Failed to decode body: %v", err)
				return
			}
			if body["week_date"] != "2024-05-06" || len(body["recipe_ids"].([]interface{})) != 4 {
				t.Errorf("Unexpected body: %v", body)
			}
			if len(body["selected_recipes"].([]interface{})) != 4 {
				t.Errorf("Expected full recipes in body, got %v", body["selected_recipes"])
			}
			fmt.Fprintln(w, `{
				"success": true,
				"grocery_list": {"produce": ["zucchini", {"name": "lemons", "quantity": 3}], "dairy": []},
				"equipment_reminders": ["grill"],
				"formatted_list": "PRODUCE\n- zucchini",
				"estimated_cost": 42.5
			}`)
		}))
		defer server.Close()

		got, err := newTestClient(server.URL).GroceryList(context.Background(), req)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(got.Departments["produce"]) != 2 || got.Departments["produce"][1].Quantity != "3" {
			t.Errorf("Unexpected departments: %+v", got.Departments)
		}
		if _, ok := got.Departments["dairy"]; ok {
			t.Error("Empty departments should be dropped")
		}
		if got.Formatted != "PRODUCE\n- zucchini" || got.EstimatedCost != "42.5" || got.WeekDate != "2024-05-06" {
			t.Errorf("Unexpected list: %+v", got)
		}
	})

	t.Run("NestedUnderRawData", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{
				"success": true,
				"raw_data": {"grocery_list": {"pantry": ["rice"]}, "shopping_tips": ["Buy in bulk"]},
				"formatted_list": {"title": "Weekly list", "total_items": 1}
			}`)
		}))
		defer server.Close()

		got, err := newTestClient(server.URL).GroceryList(context.Background(), req)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(got.Departments["pantry"]) != 1 || got.Formatted != "" {
			t.Errorf("Unexpected list: %+v", got)
		}
		if len(got.ShoppingTips) != 1 {
			t.Errorf("Expected tips from raw_data, got %v", got.ShoppingTips)
		}
		if !strings.Contains(got.Text(), "[ ] rice") {
			t.Errorf("Expected local rendering, got %s", got.Text())
		}
	})

	t.Run("BadRequest", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, `{"success": false, "error": "Exactly 4 recipes required"}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GroceryList(context.Background(), req)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
			t.Fatalf("Expected 400 api error, got %v", err)
		}
	})
}

func TestAuthorizationHeader(t *testing.T) {
	secret := "s3cret"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			t.Errorf("Expected bearer token, got %q", auth)
			return
		}
		token, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithAudience(tokenAudience), jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			t.Errorf("Expected a valid token, got %v", err)
		}
		fmt.Fprintln(w, `{"success": true, "suggestions": []}`)
	}))
	defer server.Close()

	cfg := &config.Config{RecipeAPIURL: server.URL, RecipeAPISecret: secret}
	if _, err := NewClient(cfg).WeeklySuggestions(context.Background(), false); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}
