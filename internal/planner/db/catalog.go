package db

import (
	"context"
	"fmt"

	"github.com/rsned/tower-planner/internal/planner/catalog"
)

// LoadCatalog builds an immutable catalog from the stored items and recipes,
// keeping import order.
func LoadCatalog(ctx context.Context, db *DB, opts ...catalog.Option) (*catalog.Catalog, error) {
	items, err := NewItemStore(db).ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	recipes, err := NewRecipeStore(db).GetAllRecipes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading recipes: %w", err)
	}
	return catalog.New(items, recipes, opts...), nil
}
