package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rsned/tower-planner/pkg/planner"
)

// ItemStore handles item data access.
type ItemStore struct {
	db *DB
}

// NewItemStore creates a new ItemStore.
func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

// GetItem retrieves a single item by ID. A missing item returns nil.
func (s *ItemStore) GetItem(ctx context.Context, id string) (*planner.Item, error) {
	it := &planner.Item{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, category FROM items WHERE id = ?`, id,
	).Scan(&it.Name, &it.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return it, nil
}

// ListItems returns every item in import order.
func (s *ItemStore) ListItems(ctx context.Context) ([]planner.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, category FROM items ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []planner.Item
	for rows.Next() {
		var it planner.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Category); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CountItems returns the total number of items.
func (s *ItemStore) CountItems(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return count, nil
}

// BulkInsertItems inserts items in a transaction, appending them after any
// items already stored.
func (s *ItemStore) BulkInsertItems(ctx context.Context, items []planner.Item) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		var base int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM items`).Scan(&base); err != nil {
			return fmt.Errorf("reading item sequence: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO items (id, name, category, seq)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				category = excluded.category
		`)
		if err != nil {
			return fmt.Errorf("preparing item statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, it := range items {
			if _, err := stmt.ExecContext(ctx, it.ID, it.Name, it.Category, base+i); err != nil {
				return fmt.Errorf("inserting item %s: %w", it.ID, err)
			}
		}
		return nil
	})
}

// ClearItems removes all item data (for re-import).
func (s *ItemStore) ClearItems(ctx context.Context) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM items`)
		return err
	})
}
