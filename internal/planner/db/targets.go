package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rsned/tower-planner/pkg/planner"
)

// TargetStore handles the tier list.
type TargetStore struct {
	db *DB
}

// NewTargetStore creates a new TargetStore.
func NewTargetStore(db *DB) *TargetStore {
	return &TargetStore{db: db}
}

// ReplaceTargets swaps the stored tier list for targets.
func (s *TargetStore) ReplaceTargets(ctx context.Context, targets []planner.Target) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM targets`); err != nil {
			return fmt.Errorf("clearing targets: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO targets (idx, tier, name, rate)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing target statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, t := range targets {
			if _, err := stmt.ExecContext(ctx, t.Index, t.Tier, t.Name, t.Rate); err != nil {
				return fmt.Errorf("inserting target %d (%s): %w", t.Index, t.Name, err)
			}
		}
		return nil
	})
}

// ListTargets returns the tier list in index order. A non-empty tier limits
// the result to that tier.
func (s *TargetStore) ListTargets(ctx context.Context, tier string) ([]planner.Target, error) {
	query := `SELECT idx, tier, name, rate FROM targets`
	var args []any
	if tier != "" {
		query += ` WHERE tier = ? COLLATE NOCASE`
		args = append(args, tier)
	}
	query += ` ORDER BY idx`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var targets []planner.Target
	for rows.Next() {
		var t planner.Target
		if err := rows.Scan(&t.Index, &t.Tier, &t.Name, &t.Rate); err != nil {
			return nil, fmt.Errorf("scanning target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// GetTarget looks a target up by name, ignoring case. A missing target
// returns nil.
func (s *TargetStore) GetTarget(ctx context.Context, name string) (*planner.Target, error) {
	var t planner.Target
	err := s.db.QueryRowContext(ctx, `
		SELECT idx, tier, name, rate FROM targets
		WHERE name = ? COLLATE NOCASE
		ORDER BY idx LIMIT 1
	`, name).Scan(&t.Index, &t.Tier, &t.Name, &t.Rate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying target: %w", err)
	}
	return &t, nil
}
