// Package preview fetches a recipe's source page and pulls out a short
// summary for display next to the suggestion.
package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxIngredients = 15

// Preview is what a source page says about a recipe.
type Preview struct {
	URL         string
	Title       string
	Description string
	Ingredients []string
}

// Fetcher downloads and summarises recipe pages.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. A nil client gets a 15s timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads url and extracts the title, description and ingredient lines.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Preview, error) {
	doc, err := f.fetchAndCleanHTML(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	p := &Preview{URL: url}

	// Structured data first; most recipe sites publish schema.org JSON-LD.
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if ld, ok := parseLDRecipe(s.Text()); ok {
			p.Title = ld.Name
			p.Description = ld.Description
			p.Ingredients = ld.Ingredients
			return false
		}
		return true
	})

	if p.Title == "" {
		p.Title = firstNonEmpty(
			doc.Find(`meta[property="og:title"]`).AttrOr("content", ""),
			doc.Find("h1").First().Text(),
			doc.Find("title").Text(),
		)
	}
	if p.Description == "" {
		p.Description = firstNonEmpty(
			doc.Find(`meta[property="og:description"]`).AttrOr("content", ""),
			doc.Find(`meta[name="description"]`).AttrOr("content", ""),
		)
	}
	if len(p.Ingredients) == 0 {
		doc.Find(`[itemprop="recipeIngredient"], [itemprop="ingredients"], .ingredients li, .recipe-ingredients li`).Each(func(_ int, s *goquery.Selection) {
			if line := clean(s.Text()); line != "" {
				p.Ingredients = append(p.Ingredients, line)
			}
		})
	}

	p.Title = clean(p.Title)
	p.Description = clean(p.Description)
	if len(p.Ingredients) > maxIngredients {
		p.Ingredients = p.Ingredients[:maxIngredients]
	}
	return p, nil
}

func (f *Fetcher) fetchAndCleanHTML(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "weekly-menu-planner/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	// JSON-LD scripts are kept, everything else that is not content goes.
	doc.Find(`script:not([type="application/ld+json"]), style, nav, footer, iframe, .ads, #ads`).Remove()
	return doc, nil
}

type ldRecipe struct {
	Name        string
	Description string
	Ingredients []string
}

// parseLDRecipe finds a Recipe node in a JSON-LD block, which may be a single
// object, an array, or an object with an @graph array.
func parseLDRecipe(raw string) (ldRecipe, bool) {
	var nodes []map[string]json.RawMessage

	var single map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		nodes = append(nodes, single)
		var graph []map[string]json.RawMessage
		if err := json.Unmarshal(single["@graph"], &graph); err == nil {
			nodes = append(nodes, graph...)
		}
	} else if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
		return ldRecipe{}, false
	}

	for _, n := range nodes {
		if !isRecipeType(n["@type"]) {
			continue
		}
		var r ldRecipe
		_ = json.Unmarshal(n["name"], &r.Name)
		_ = json.Unmarshal(n["description"], &r.Description)
		_ = json.Unmarshal(n["recipeIngredient"], &r.Ingredients)
		for i := range r.Ingredients {
			r.Ingredients[i] = clean(r.Ingredients[i])
		}
		return r, true
	}
	return ldRecipe{}, false
}

func isRecipeType(raw json.RawMessage) bool {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return one == "Recipe"
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, t := range many {
			if t == "Recipe" {
				return true
			}
		}
	}
	return false
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
