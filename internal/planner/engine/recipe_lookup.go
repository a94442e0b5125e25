package engine

import (
	"context"

	"github.com/rsned/tower-planner/pkg/planner"
)

// RecipeLookup executes the recipe_lookup tool logic.
func (e *Engine) RecipeLookup(ctx context.Context, name string) (*planner.RecipeLookupResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	item, ok := e.catalog.Resolve(name)
	if !ok {
		return nil, &planner.TargetError{
			Query:       name,
			Suggestions: e.catalog.Suggest(name, suggestionCount),
		}
	}

	resp := &planner.RecipeLookupResponse{
		Item: item,
		Raw:  e.catalog.IsRaw(item.ID),
	}

	// Global stops only; per-target stops depend on what is being planned.
	stops, _ := e.cfg.ResolveStops(e.catalog, planner.Item{})
	resp.Stopped = stops.Contains(item.ID)

	producers := e.catalog.Producers(item.ID)
	if len(producers) > 0 {
		resp.Recipe = producers[0]
		resp.Alternatives = producers[1:]
	}

	// Report consumers by display name where the recipe has one
	for _, id := range e.catalog.Consumers(item.ID) {
		label := id
		if r, ok := e.catalog.RecipeByID(id); ok && r.Name != "" {
			label = r.Name
		}
		resp.UsedBy = append(resp.UsedBy, label)
	}

	return resp, nil
}
