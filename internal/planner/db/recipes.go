package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rsned/tower-planner/pkg/planner"
)

// RecipeStore handles recipe data access.
type RecipeStore struct {
	db *DB
}

// NewRecipeStore creates a new RecipeStore.
func NewRecipeStore(db *DB) *RecipeStore {
	return &RecipeStore{db: db}
}

// GetRecipe retrieves a single recipe by ID with its inputs and outputs.
// A missing recipe returns nil.
func (s *RecipeStore) GetRecipe(ctx context.Context, id string) (*planner.Recipe, error) {
	r := &planner.Recipe{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, building, duration_sec
		FROM recipes WHERE id = ?
	`, id).Scan(&r.Name, &r.Building, &r.DurationSec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying recipe: %w", err)
	}

	if r.Inputs, err = s.amounts(ctx, "recipe_inputs", id); err != nil {
		return nil, err
	}
	if r.Outputs, err = s.amounts(ctx, "recipe_outputs", id); err != nil {
		return nil, err
	}
	return r, nil
}

// amounts reads the ordered rows of recipe_inputs or recipe_outputs.
func (s *RecipeStore) amounts(ctx context.Context, table, recipeID string) ([]planner.ItemAmount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, amount FROM `+table+` WHERE recipe_id = ? ORDER BY position`,
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []planner.ItemAmount
	for rows.Next() {
		var a planner.ItemAmount
		if err := rows.Scan(&a.ItemID, &a.Amount); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAllRecipes retrieves every recipe in import order. Inputs and outputs
// are read in two passes instead of one query per recipe.
func (s *RecipeStore) GetAllRecipes(ctx context.Context) ([]planner.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, building, duration_sec
		FROM recipes
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recipes []planner.Recipe
	index := make(map[string]int)
	for rows.Next() {
		var r planner.Recipe
		if err := rows.Scan(&r.ID, &r.Name, &r.Building, &r.DurationSec); err != nil {
			return nil, fmt.Errorf("scanning recipe: %w", err)
		}
		index[r.ID] = len(recipes)
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.eachAmount(ctx, "recipe_inputs", func(recipeID string, a planner.ItemAmount) {
		if i, ok := index[recipeID]; ok {
			recipes[i].Inputs = append(recipes[i].Inputs, a)
		}
	})
	if err != nil {
		return nil, err
	}
	err = s.eachAmount(ctx, "recipe_outputs", func(recipeID string, a planner.ItemAmount) {
		if i, ok := index[recipeID]; ok {
			recipes[i].Outputs = append(recipes[i].Outputs, a)
		}
	})
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

func (s *RecipeStore) eachAmount(ctx context.Context, table string, fn func(string, planner.ItemAmount)) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT recipe_id, item_id, amount FROM `+table+` ORDER BY recipe_id, position`,
	)
	if err != nil {
		return fmt.Errorf("querying %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var recipeID string
		var a planner.ItemAmount
		if err := rows.Scan(&recipeID, &a.ItemID, &a.Amount); err != nil {
			return fmt.Errorf("scanning %s: %w", table, err)
		}
		fn(recipeID, a)
	}
	return rows.Err()
}

// FindRecipesByOutput finds recipes that produce a given item.
func (s *RecipeStore) FindRecipesByOutput(ctx context.Context, itemID string) ([]string, error) {
	return s.recipeIDs(ctx, `
		SELECT DISTINCT o.recipe_id
		FROM recipe_outputs o JOIN recipes r ON r.id = o.recipe_id
		WHERE o.item_id = ?
		ORDER BY r.seq
	`, itemID)
}

// GetRecipesUsingItem finds recipes that take a given item as an input.
func (s *RecipeStore) GetRecipesUsingItem(ctx context.Context, itemID string) ([]string, error) {
	return s.recipeIDs(ctx, `
		SELECT DISTINCT i.recipe_id
		FROM recipe_inputs i JOIN recipes r ON r.id = i.recipe_id
		WHERE i.item_id = ?
		ORDER BY r.seq
	`, itemID)
}

func (s *RecipeStore) recipeIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning recipe id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountRecipes returns the total number of recipes.
func (s *RecipeStore) CountRecipes(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting recipes: %w", err)
	}
	return count, nil
}

// BulkInsertRecipes inserts multiple recipes in a transaction. A recipe that
// already exists is replaced, inputs and outputs included.
func (s *RecipeStore) BulkInsertRecipes(ctx context.Context, recipes []planner.Recipe) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		var base int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM recipes`).Scan(&base); err != nil {
			return fmt.Errorf("reading recipe sequence: %w", err)
		}

		// Prepare statements
		recipeStmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO recipes (id, name, building, duration_sec, seq)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing recipe statement: %w", err)
		}
		defer func() { _ = recipeStmt.Close() }()

		inStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO recipe_inputs (recipe_id, position, item_id, amount)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing input statement: %w", err)
		}
		defer func() { _ = inStmt.Close() }()

		outStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO recipe_outputs (recipe_id, position, item_id, amount)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing output statement: %w", err)
		}
		defer func() { _ = outStmt.Close() }()

		for i, r := range recipes {
			for _, table := range []string{"recipe_inputs", "recipe_outputs"} {
				if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE recipe_id = ?`, r.ID); err != nil {
					return fmt.Errorf("clearing %s for %s: %w", table, r.ID, err)
				}
			}
			if _, err := recipeStmt.ExecContext(ctx, r.ID, r.Name, r.Building, r.DurationSec, base+i); err != nil {
				return fmt.Errorf("inserting recipe %s: %w", r.ID, err)
			}
			for pos, in := range r.Inputs {
				if _, err := inStmt.ExecContext(ctx, r.ID, pos, in.ItemID, in.Amount); err != nil {
					return fmt.Errorf("inserting input for %s: %w", r.ID, err)
				}
			}
			for pos, out := range r.Outputs {
				if _, err := outStmt.ExecContext(ctx, r.ID, pos, out.ItemID, out.Amount); err != nil {
					return fmt.Errorf("inserting output for %s: %w", r.ID, err)
				}
			}
		}
		return nil
	})
}

// ClearRecipes removes all recipe data (for re-import).
func (s *RecipeStore) ClearRecipes(ctx context.Context) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		// Foreign keys will cascade delete inputs and outputs
		_, err := tx.ExecContext(ctx, `DELETE FROM recipes`)
		return err
	})
}
