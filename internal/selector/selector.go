// Package selector implements the recipe selection controller: it owns the
// suggestion pool and the weekly selection, talks to the recipe service and
// pushes every change to a Surface.
//
// Load, Toggle and RequestGroceryList run one at a time in submission order.
// Pool replacements carry a sequence number assigned at dispatch and are
// applied only if no later replacement has been applied already.
package selector

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"weekly-menu-planner/internal/backend"
	"weekly-menu-planner/internal/grocery"
	"weekly-menu-planner/internal/logger"
	"weekly-menu-planner/internal/recipe"
	"weekly-menu-planner/internal/retry"
)

var (
	// ErrCapacityReached is returned when adding to a full selection.
	ErrCapacityReached = errors.New("selection is full")
	// ErrSelectionIncomplete is returned when a grocery list is requested without a full menu.
	ErrSelectionIncomplete = errors.New("selection is incomplete")
	// ErrRecipeNotFound is returned when toggling an id that is neither selected nor suggested.
	ErrRecipeNotFound = errors.New("recipe not found in suggestions")

	errNoSuggestions = errors.New("no recipes returned from server")
)

// Action is what a toggle did.
type Action int

const (
	Rejected Action = iota
	Added
	Removed
)

func (a Action) String() string {
	switch a {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "rejected"
	}
}

// ToggleResult describes the outcome of Toggle.
type ToggleResult struct {
	Action   Action
	Recipe   recipe.Recipe
	Selected int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithRetryPolicy sets the policy for suggestion loads.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithClock sets the clock used for the grocery list week date.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the recipe selection controller. Create it with New.
type Controller struct {
	client  backend.Client
	surface Surface
	log     logger.Logger
	policy  retry.Policy
	now     func() time.Time

	// gate admits one Load, Toggle or grocery request at a time; blocked
	// callers are admitted in the order they arrived.
	gate chan struct{}

	mu          sync.Mutex
	state       State
	pool        []recipe.Recipe
	selection   []recipe.Recipe
	filters     recipe.Criteria
	overlap     *OverlapReport
	groceryList *grocery.List
	fallback    bool
	dispatched  uint64
	applied     uint64
}

// New creates a controller. A nil surface discards all output.
func New(client backend.Client, surface Surface, opts ...Option) *Controller {
	if surface == nil {
		surface = nopSurface{}
	}
	c := &Controller{
		client:  client,
		surface: surface,
		log:     logger.NewNop(),
		policy:  retry.DefaultPolicy(),
		now:     time.Now,
		gate:    make(chan struct{}, 1),
		state:   Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) acquire(ctx context.Context) error {
	select {
	case c.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) release() { <-c.gate }

// Load fetches the suggestion pool, retrying with a growing delay and falling
// back to the built-in sample menu when every attempt fails. A fresh load asks
// the service for new web recipes and starts a new week with an empty
// selection. Only a cancelled ctx is reported as an error.
func (c *Controller) Load(ctx context.Context, fresh bool) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	prev := c.state
	c.state = Loading
	seq := c.dispatch()
	c.mu.Unlock()

	loadingMsg := "Loading this week's recipe suggestions..."
	if fresh {
		loadingMsg = "Searching cooking websites for fresh recipes..."
	}
	c.surface.SetLoading(loadingMsg, true)
	defer c.surface.SetLoading("", false)

	policy := c.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.log.Warn("Suggestion load failed, retrying",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", policy.MaxAttempts),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
		c.surface.Notify(Notification{
			Level:   LevelWarning,
			Message: fmt.Sprintf("Retrying connection to the recipe service (%d/%d)...", attempt, policy.MaxAttempts-1),
		})
	}

	var result *backend.Suggestions
	err := retry.Do(ctx, policy, func(attempt int) error {
		s, err := c.client.WeeklySuggestions(ctx, fresh)
		if err != nil {
			return err
		}
		if len(s.Recipes) == 0 {
			return errNoSuggestions
		}
		result = s
		return nil
	})

	if err != nil && ctx.Err() != nil {
		c.mu.Lock()
		c.state = prev
		c.mu.Unlock()
		return fmt.Errorf("failed to load suggestions: %w", err)
	}

	var note Notification
	var recipes []recipe.Recipe
	usedFallback := err != nil
	if usedFallback {
		c.log.Error("Suggestion load failed, using sample recipes", logger.Error(err))
		recipes = recipe.Fallback()
		note = Notification{
			Level:   LevelError,
			Message: "We had trouble connecting to the recipe service. Showing sample recipes instead. Please refresh to try again.",
		}
	} else {
		recipes = result.Recipes
		note = Notification{Level: LevelSuccess, Message: loadedMessage(result, fresh)}
		c.log.Info("Loaded suggestions", logger.Int("count", len(recipes)), logger.Bool("fresh", fresh))
	}

	c.mu.Lock()
	if fresh {
		c.selection = nil
		c.overlap = nil
	}
	if c.applyPool(seq, recipes) {
		c.fallback = usedFallback
		c.filters = recipe.Criteria{}
		c.groceryList = nil
	}
	c.state = Ready
	v := c.viewLocked()
	c.mu.Unlock()

	c.surface.Notify(note)
	c.surface.Render(v)
	return nil
}

func loadedMessage(s *backend.Suggestions, fresh bool) string {
	if !fresh {
		return fmt.Sprintf("Loaded %d recipes for your week!", len(s.Recipes))
	}
	msg := fmt.Sprintf("Generated %d fresh recipes! Ready for meal planning!", len(s.Recipes))
	if s.Summary != nil && len(s.Summary.SourceBreakdown) > 0 {
		msg = fmt.Sprintf("Generated %d fresh recipes! (%d new from cooking websites, %d favorites)",
			len(s.Recipes), s.Summary.SourceBreakdown["web_search"], s.Summary.SourceBreakdown["user_favorite"])
	}
	return msg
}

// Toggle adds or removes a recipe from the selection. Adding asks the service
// to re-rank the remaining suggestions around the new pick before the view is
// refreshed. Rejections return ErrCapacityReached or ErrRecipeNotFound and
// leave the state unchanged.
func (c *Controller) Toggle(ctx context.Context, id string) (ToggleResult, error) {
	if err := c.acquire(ctx); err != nil {
		return ToggleResult{}, err
	}
	defer c.release()

	c.mu.Lock()
	res := ToggleResult{Action: Rejected, Selected: len(c.selection)}

	if i := slices.IndexFunc(c.selection, func(r recipe.Recipe) bool { return r.ID == id }); i >= 0 {
		res.Recipe = c.selection[i]
		c.selection = slices.Delete(slices.Clone(c.selection), i, i+1)
		res.Action = Removed
	} else if len(c.selection) >= recipe.MaxSelections {
		c.mu.Unlock()
		c.surface.Notify(Notification{
			Level:   LevelWarning,
			Message: fmt.Sprintf("You can only select %d recipes", recipe.MaxSelections),
		})
		return res, ErrCapacityReached
	} else {
		r, ok := recipe.Find(c.pool, id)
		if !ok {
			c.mu.Unlock()
			c.surface.Notify(Notification{Level: LevelWarning, Message: "That recipe is no longer available"})
			return res, fmt.Errorf("%w: %s", ErrRecipeNotFound, id)
		}
		res.Recipe = r
		c.selection = append(slices.Clone(c.selection), r)
		res.Action = Added
	}
	res.Selected = len(c.selection)
	c.state = Mutating
	c.mu.Unlock()

	c.log.Debug("Selection changed",
		logger.String("action", res.Action.String()),
		logger.String("recipe_id", id),
		logger.Int("selected", res.Selected),
	)

	if res.Action == Added {
		c.surface.Notify(Notification{Level: LevelSuccess, Message: fmt.Sprintf("Added %q to your menu!", res.Recipe.Name)})
		c.optimizeSuggestions(ctx, res.Recipe)
	} else {
		c.surface.Notify(Notification{Level: LevelInfo, Message: fmt.Sprintf("Removed %q from your menu", res.Recipe.Name)})
	}

	c.computeOverlap(ctx)

	c.mu.Lock()
	c.state = Ready
	v := c.viewLocked()
	c.mu.Unlock()

	c.surface.Render(v)
	return res, nil
}

// optimizeSuggestions sends the latest pick and the unselected pool to the
// service and rebuilds the pool as selection ++ (returned - selection).
// Failures are logged and the prior pool stands.
func (c *Controller) optimizeSuggestions(ctx context.Context, latest recipe.Recipe) {
	c.mu.Lock()
	if len(c.selection) == 0 {
		c.mu.Unlock()
		return
	}
	seq := c.dispatch()
	remaining := recipe.Without(c.pool, c.selection)
	c.mu.Unlock()

	c.surface.SetLoading("Finding recipes with shared ingredients...", true)
	defer c.surface.SetLoading("", false)

	updated, err := c.client.UpdateSuggestions(ctx, latest, remaining)
	if err != nil {
		c.log.Warn("Failed to optimize suggestions", logger.String("recipe_id", latest.ID), logger.Error(err))
		return
	}
	if len(updated) == 0 {
		c.log.Warn("Optimize returned no suggestions, keeping current pool", logger.String("recipe_id", latest.ID))
		return
	}

	c.mu.Lock()
	applied := c.applyPool(seq, updated)
	c.mu.Unlock()
	if applied {
		c.log.Debug("Suggestions optimized", logger.Int("returned", len(updated)))
	}
}

// computeOverlap refreshes the overlap report. Below two selected recipes the
// report is cleared without a call; on failure the previous report stays.
func (c *Controller) computeOverlap(ctx context.Context) {
	c.mu.Lock()
	if len(c.selection) < 2 {
		c.overlap = nil
		c.mu.Unlock()
		return
	}
	ids := recipe.IDs(c.selection)
	c.mu.Unlock()

	o, err := c.client.IngredientOverlap(ctx, ids)
	if err != nil {
		c.log.Warn("Failed to compute ingredient overlap", logger.Strings("recipe_ids", ids), logger.Error(err))
		return
	}

	report := &OverlapReport{
		SharedIngredients: o.SharedIngredients,
		TotalUnique:       o.TotalUniqueIngredients,
		Efficiency:        Efficiency(len(o.SharedIngredients), o.TotalUniqueIngredients),
		Score:             o.Score,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// The selection cannot change while the gate is held, but a report for a
	// different selection must never be shown.
	if slices.Equal(ids, recipe.IDs(c.selection)) {
		c.overlap = report
	}
}

// ApplyFilters sets the active filter criteria and returns the displayed
// recipes. It never calls the service.
func (c *Controller) ApplyFilters(criteria recipe.Criteria) []recipe.Recipe {
	c.mu.Lock()
	c.filters = criteria
	v := c.viewLocked()
	c.mu.Unlock()

	c.surface.Render(v)
	return v.Displayed
}

// RequestGroceryList asks the service for the shopping list of the full menu.
// With fewer than four recipes selected it returns ErrSelectionIncomplete
// without any call.
func (c *Controller) RequestGroceryList(ctx context.Context) (*grocery.List, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	c.mu.Lock()
	selected := slices.Clone(c.selection)
	c.mu.Unlock()

	if len(selected) != recipe.MaxSelections {
		c.surface.Notify(Notification{
			Level:   LevelWarning,
			Message: fmt.Sprintf("Please select exactly %d recipes first (%d/%d selected)", recipe.MaxSelections, len(selected), recipe.MaxSelections),
		})
		return nil, ErrSelectionIncomplete
	}

	c.surface.SetLoading("Building your smart grocery list...", true)
	list, err := c.client.GroceryList(ctx, backend.GroceryListRequest{
		RecipeIDs: recipe.IDs(selected),
		Recipes:   selected,
		WeekDate:  c.now().Format(time.DateOnly),
	})
	c.surface.SetLoading("", false)
	if err != nil {
		c.log.Error("Failed to generate grocery list", logger.Error(err))
		c.surface.Notify(Notification{Level: LevelError, Message: "Failed to generate grocery list. Please try again."})
		return nil, fmt.Errorf("failed to generate grocery list: %w", err)
	}

	c.mu.Lock()
	c.groceryList = list
	v := c.viewLocked()
	c.mu.Unlock()

	c.log.Info("Grocery list generated", logger.Int("items", list.ItemCount()), logger.String("week_date", list.WeekDate))
	c.surface.Notify(Notification{Level: LevelSuccess, Message: "Your grocery list is ready!"})
	c.surface.Render(v)
	return list, nil
}

// CloseGroceryList discards the current grocery list.
func (c *Controller) CloseGroceryList() {
	c.mu.Lock()
	c.groceryList = nil
	v := c.viewLocked()
	c.mu.Unlock()

	c.surface.Render(v)
}

// Snapshot returns a copy of the current view.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// dispatch hands out the next pool replacement number. Callers hold mu.
func (c *Controller) dispatch() uint64 {
	c.dispatched++
	return c.dispatched
}

// applyPool replaces the pool with selection ++ (recipes - selection) unless a
// replacement dispatched later has already been applied. Callers hold mu.
func (c *Controller) applyPool(seq uint64, recipes []recipe.Recipe) bool {
	if seq <= c.applied {
		c.log.Debug("Discarding stale suggestions", logger.Uint64("seq", seq), logger.Uint64("applied", c.applied))
		return false
	}
	c.applied = seq

	pool := slices.Clone(c.selection)
	for _, r := range recipe.Without(recipes, c.selection) {
		if !recipe.Contains(pool, r.ID) {
			pool = append(pool, r)
		}
	}
	c.pool = pool
	return true
}

// viewLocked builds a View. Callers hold mu.
func (c *Controller) viewLocked() View {
	n := len(c.selection)
	v := View{
		State:          c.state,
		Pool:           slices.Clone(c.pool),
		Displayed:      recipe.Filter(recipe.Without(c.pool, c.selection), c.filters),
		Selection:      slices.Clone(c.selection),
		Filters:        c.filters,
		Progress:       ProgressFor(n),
		GroceryEnabled: n == recipe.MaxSelections,
		GroceryLabel:   GroceryButtonLabel(n),
		GroceryList:    c.groceryList,
		Fallback:       c.fallback,
	}
	if c.overlap != nil && n >= 2 {
		o := *c.overlap
		o.SharedIngredients = slices.Clone(o.SharedIngredients)
		v.Overlap = &o
	}
	return v
}
