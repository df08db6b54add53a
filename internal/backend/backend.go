// Package backend is the HTTP client for the recipe suggestion service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"weekly-menu-planner/internal/config"
	"weekly-menu-planner/internal/grocery"
	"weekly-menu-planner/internal/recipe"

	"github.com/google/uuid"
)

// Call names, used in metrics and logs.
const (
	CallSuggestions = "weekly_suggestions"
	CallUpdate      = "update_suggestions"
	CallOverlap     = "ingredient_overlap"
	CallGroceryList = "grocery_list"
)

const (
	apiPrefix      = "/api/recipe"
	defaultTimeout = 10 * time.Second
)

// APIError is returned for a non-2xx status or a body with success:false.
type APIError struct {
	Call       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: api error: status %d", e.Call, e.StatusCode)
	}
	return fmt.Sprintf("%s: api error: status %d: %s", e.Call, e.StatusCode, e.Message)
}

// IsAPIError reports whether err carries an *APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Client is the set of calls the selection controller makes.
type Client interface {
	WeeklySuggestions(ctx context.Context, fresh bool) (*Suggestions, error)
	UpdateSuggestions(ctx context.Context, selected recipe.Recipe, remaining []recipe.Recipe) ([]recipe.Recipe, error)
	IngredientOverlap(ctx context.Context, recipeIDs []string) (*Overlap, error)
	GroceryList(ctx context.Context, req GroceryListRequest) (*grocery.List, error)
}

// Observer is told about every finished call.
type Observer interface {
	ObserveCall(call, requestID string, latency time.Duration, err error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *httpClient) { h.http = c }
}

// WithObserver registers an observer for call outcomes.
func WithObserver(o Observer) Option {
	return func(h *httpClient) { h.observer = o }
}

// WithClock overrides time.Now, used for the fresh-load timestamp and tokens.
func WithClock(now func() time.Time) Option {
	return func(h *httpClient) { h.now = now }
}

type httpClient struct {
	baseURL  string
	timeout  time.Duration
	secret   []byte
	http     *http.Client
	observer Observer
	now      func() time.Time
}

// NewClient creates a client for the service at cfg.RecipeAPIURL.
func NewClient(cfg *config.Config, opts ...Option) Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &httpClient{
		baseURL: cfg.RecipeAPIURL,
		timeout: timeout,
		http:    &http.Client{},
		now:     time.Now,
	}
	if cfg.RecipeAPISecret != "" {
		c.secret = []byte(cfg.RecipeAPISecret)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WeeklySuggestions fetches the current suggestion pool. A fresh load asks
// the service to search the web for new recipes.
func (c *httpClient) WeeklySuggestions(ctx context.Context, fresh bool) (*Suggestions, error) {
	q := url.Values{}
	if fresh {
		q.Set("include_web", "true")
		q.Set("fresh", "true")
		q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	}

	var resp suggestionsResponse
	if err := c.do(ctx, CallSuggestions, http.MethodGet, "/weekly-suggestions", q, nil, &resp); err != nil {
		return nil, err
	}
	return &Suggestions{Recipes: resp.Suggestions, Summary: resp.Summary}, nil
}

// UpdateSuggestions asks the service to re-rank the pool around the latest pick.
func (c *httpClient) UpdateSuggestions(ctx context.Context, selected recipe.Recipe, remaining []recipe.Recipe) ([]recipe.Recipe, error) {
	if remaining == nil {
		remaining = []recipe.Recipe{}
	}
	body := updateRequest{SelectedRecipe: selected, RemainingSuggestions: remaining}

	var resp updateResponse
	if err := c.do(ctx, CallUpdate, http.MethodPost, "/update-suggestions", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.UpdatedSuggestions, nil
}

// IngredientOverlap reports the ingredients shared by the given recipes.
func (c *httpClient) IngredientOverlap(ctx context.Context, recipeIDs []string) (*Overlap, error) {
	var resp overlapResponse
	if err := c.do(ctx, CallOverlap, http.MethodPost, "/ingredient-overlap", nil, overlapRequest{RecipeIDs: recipeIDs}, &resp); err != nil {
		return nil, err
	}
	return resp.toOverlap(), nil
}

// GroceryList requests the consolidated shopping list for a full menu.
func (c *httpClient) GroceryList(ctx context.Context, req GroceryListRequest) (*grocery.List, error) {
	if req.RecipeIDs == nil {
		req.RecipeIDs = recipe.IDs(req.Recipes)
	}

	var resp groceryResponse
	if err := c.do(ctx, CallGroceryList, http.MethodPost, "/grocery-list", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.toList(req), nil
}

// do performs one round-trip. out must embed status.
func (c *httpClient) do(ctx context.Context, call, method, path string, query url.Values, body interface{}, out statusCarrier) (err error) {
	requestID := uuid.NewString()
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveCall(call, requestID, time.Since(start), err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", call, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != nil {
		token, err := createToken(c.secret, c.now())
		if err != nil {
			return fmt.Errorf("failed to create api token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", call, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", call, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Error bodies are usually {"success": false, "error": "..."}; keep the message when present.
		var st status
		_ = json.Unmarshal(raw, &st)
		return &APIError{Call: call, StatusCode: resp.StatusCode, Message: st.Error}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", call, err)
	}
	if st := out.apiStatus(); !st.Success {
		return &APIError{Call: call, StatusCode: resp.StatusCode, Message: st.Error}
	}
	return nil
}
