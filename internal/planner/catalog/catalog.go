// Package catalog provides the immutable item and recipe lookup used by the
// planning engine.
package catalog

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/rsned/tower-planner/pkg/planner"
)

// DefaultRawCategories are the item categories treated as raw resources.
var DefaultRawCategories = []string{"ore", "fluid", "gas", "raw"}

// Catalog is a read-only view over items and recipes. It is safe for
// concurrent use once constructed.
type Catalog struct {
	items     map[string]planner.Item
	byName    map[string]string
	order     map[string]int
	ordered   []string
	recipes   []*planner.Recipe
	recipeIDs map[string]*planner.Recipe
	producers map[string][]*planner.Recipe
	consumers map[string][]string
	raw       map[string]bool
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithRawCategories replaces the raw category set.
func WithRawCategories(categories ...string) Option {
	return func(c *Catalog) {
		c.raw = make(map[string]bool, len(categories))
		for _, cat := range categories {
			c.raw[strings.ToLower(cat)] = true
		}
	}
}

// New builds a catalog. Item order and recipe order are significant: they
// define the catalog iteration order and the last-resort recipe tie-break.
func New(items []planner.Item, recipes []planner.Recipe, opts ...Option) *Catalog {
	c := &Catalog{
		items:     make(map[string]planner.Item, len(items)),
		byName:    make(map[string]string, len(items)),
		order:     make(map[string]int, len(items)),
		recipeIDs: make(map[string]*planner.Recipe, len(recipes)),
		producers: make(map[string][]*planner.Recipe),
		consumers: make(map[string][]string),
	}
	WithRawCategories(DefaultRawCategories...)(c)
	for _, opt := range opts {
		opt(c)
	}

	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, dup := c.items[it.ID]; dup {
			continue
		}
		c.items[it.ID] = it
		c.addOrder(it.ID)
		if it.Name != "" {
			key := strings.ToLower(it.Name)
			if _, exists := c.byName[key]; !exists {
				c.byName[key] = it.ID
			}
		}
	}

	c.recipes = make([]*planner.Recipe, 0, len(recipes))
	for i := range recipes {
		r := recipes[i]
		r.Inputs = append([]planner.ItemAmount(nil), r.Inputs...)
		r.Outputs = append([]planner.ItemAmount(nil), r.Outputs...)
		c.recipes = append(c.recipes, &r)
		if r.ID != "" {
			c.recipeIDs[r.ID] = &r
		}
		for _, in := range r.Inputs {
			c.addOrder(in.ItemID)
			c.consumers[in.ItemID] = append(c.consumers[in.ItemID], r.ID)
		}
		for _, out := range r.Outputs {
			c.addOrder(out.ItemID)
		}
	}

	c.buildProducers()
	return c
}

func (c *Catalog) addOrder(id string) {
	if id == "" {
		return
	}
	if _, ok := c.order[id]; ok {
		return
	}
	c.order[id] = len(c.ordered)
	c.ordered = append(c.ordered, id)
}

// buildProducers ranks candidate recipes for every item.
//
// When multiple recipes produce the same item, prefer:
// 1. A dedicated recipe (the item is its only output)
// 2. The highest production rate of the item
// 3. The first recipe in table order
//
// Self-referential recipes and recipes yielding a non-positive amount of the
// item are never candidates.
func (c *Catalog) buildProducers() {
	seq := make(map[*planner.Recipe]int, len(c.recipes))
	for i, r := range c.recipes {
		seq[r] = i
		if r.IsSelfReferential() {
			continue
		}
		for _, out := range r.Outputs {
			if out.Amount <= 0 {
				continue
			}
			if containsRecipe(c.producers[out.ItemID], r) {
				continue
			}
			c.producers[out.ItemID] = append(c.producers[out.ItemID], r)
		}
	}

	for itemID, cands := range c.producers {
		id := itemID
		sort.SliceStable(cands, func(i, j int) bool {
			a, b := cands[i], cands[j]
			if a.IsDedicated() != b.IsDedicated() {
				return a.IsDedicated()
			}
			ra, rb := a.Rate(id), b.Rate(id)
			if ra != rb {
				return ra > rb
			}
			return seq[a] < seq[b]
		})
	}
}

func containsRecipe(list []*planner.Recipe, r *planner.Recipe) bool {
	for _, x := range list {
		if x == r {
			return true
		}
	}
	return false
}

// Item returns the item with the given ID.
func (c *Catalog) Item(id string) (planner.Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// ItemByName looks an item up by display name, ignoring case.
func (c *Catalog) ItemByName(name string) (planner.Item, bool) {
	id, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return planner.Item{}, false
	}
	return c.items[id], true
}

// Resolve accepts either an item ID or a display name.
func (c *Catalog) Resolve(nameOrID string) (planner.Item, bool) {
	if it, ok := c.items[nameOrID]; ok {
		return it, true
	}
	return c.ItemByName(nameOrID)
}

// Name returns the display name for id, or id itself when unknown.
func (c *Catalog) Name(id string) string {
	if it, ok := c.items[id]; ok && it.Name != "" {
		return it.Name
	}
	return id
}

// IsRaw reports whether the item belongs to a raw category.
func (c *Catalog) IsRaw(id string) bool {
	it, ok := c.items[id]
	if !ok {
		return false
	}
	return c.raw[strings.ToLower(it.Category)]
}

// IsCategory reports whether the item's category is one of categories.
func (c *Catalog) IsCategory(id string, categories ...string) bool {
	it, ok := c.items[id]
	if !ok {
		return false
	}
	for _, cat := range categories {
		if strings.EqualFold(it.Category, cat) {
			return true
		}
	}
	return false
}

// Recipe returns the preferred recipe producing itemID.
func (c *Catalog) Recipe(itemID string) (*planner.Recipe, bool) {
	cands := c.producers[itemID]
	if len(cands) == 0 {
		return nil, false
	}
	return cands[0], true
}

// RecipeByID returns a recipe by its identity.
func (c *Catalog) RecipeByID(id string) (*planner.Recipe, bool) {
	r, ok := c.recipeIDs[id]
	return r, ok
}

// Producers returns every candidate recipe for itemID in preference order.
func (c *Catalog) Producers(itemID string) []*planner.Recipe {
	cands := c.producers[itemID]
	out := make([]*planner.Recipe, len(cands))
	copy(out, cands)
	return out
}

// Consumers returns the IDs of recipes that take itemID as an input.
func (c *Catalog) Consumers(itemID string) []string {
	ids := c.consumers[itemID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Order returns the catalog iteration index of an item. Unknown items sort
// after every known one.
func (c *Catalog) Order(id string) int {
	if i, ok := c.order[id]; ok {
		return i
	}
	return len(c.ordered)
}

// Items returns all items in catalog order.
func (c *Catalog) Items() []planner.Item {
	out := make([]planner.Item, 0, len(c.items))
	for _, id := range c.ordered {
		if it, ok := c.items[id]; ok {
			out = append(out, it)
		}
	}
	return out
}

// Len returns the number of known items and recipes.
func (c *Catalog) Len() (items, recipes int) {
	return len(c.items), len(c.recipes)
}

// Suggest returns up to n display names closest to name by edit distance.
func (c *Catalog) Suggest(name string, n int) []string {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" || n <= 0 {
		return nil
	}

	type scored struct {
		name string
		dist int
	}
	limit := len(query)/2 + 1
	var results []scored
	for _, id := range c.ordered {
		it, ok := c.items[id]
		if !ok || it.Name == "" {
			continue
		}
		cand := strings.ToLower(it.Name)
		dist := levenshtein.ComputeDistance(query, cand)
		if strings.Contains(cand, query) {
			dist = 0
		}
		if dist > limit {
			continue
		}
		results = append(results, scored{name: it.Name, dist: dist})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].dist == results[j].dist {
			return results[i].name < results[j].name
		}
		return results[i].dist < results[j].dist
	})

	if len(results) > n {
		results = results[:n]
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.name
	}
	return out
}
