package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PlanRecord is one stored plan document.
type PlanRecord struct {
	Slug       string
	TargetID   string
	TargetName string
	Tier       string
	Index      int
	RunID      string
	Steps      int
	OK         bool
	Notes      []string
	Document   []byte
	CreatedAt  string
}

// PlanStore handles emitted plan documents.
type PlanStore struct {
	db *DB
}

// NewPlanStore creates a new PlanStore.
func NewPlanStore(db *DB) *PlanStore {
	return &PlanStore{db: db}
}

// SavePlans upserts plan records by slug in a single transaction.
func (s *PlanStore) SavePlans(ctx context.Context, records []PlanRecord) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO plans (slug, target_id, target_name, tier, idx, run_id, steps, ok, notes, document, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
			ON CONFLICT(slug) DO UPDATE SET
				target_id = excluded.target_id,
				target_name = excluded.target_name,
				tier = excluded.tier,
				idx = excluded.idx,
				run_id = excluded.run_id,
				steps = excluded.steps,
				ok = excluded.ok,
				notes = excluded.notes,
				document = excluded.document,
				created_at = excluded.created_at
		`)
		if err != nil {
			return fmt.Errorf("preparing plan statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, r := range records {
			_, err := stmt.ExecContext(ctx,
				r.Slug, r.TargetID, r.TargetName, r.Tier, r.Index, r.RunID,
				r.Steps, r.OK, strings.Join(r.Notes, ","), string(r.Document),
			)
			if err != nil {
				return fmt.Errorf("saving plan %s: %w", r.Slug, err)
			}
		}
		return nil
	})
}

const planColumns = `slug, target_id, target_name, tier, idx, run_id, steps, ok, notes, document, created_at`

func scanPlan(scan func(...any) error) (*PlanRecord, error) {
	var r PlanRecord
	var notes, doc string
	if err := scan(&r.Slug, &r.TargetID, &r.TargetName, &r.Tier, &r.Index, &r.RunID,
		&r.Steps, &r.OK, &notes, &doc, &r.CreatedAt); err != nil {
		return nil, err
	}
	if notes != "" {
		r.Notes = strings.Split(notes, ",")
	}
	r.Document = []byte(doc)
	return &r, nil
}

// GetPlan retrieves a stored plan by slug. A missing plan returns nil.
func (s *PlanStore) GetPlan(ctx context.Context, slug string) (*PlanRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE slug = ?`, slug)
	r, err := scanPlan(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying plan: %w", err)
	}
	return r, nil
}

// ListPlans returns stored plans ordered by target index. A non-empty runID
// limits the result to one batch.
func (s *PlanStore) ListPlans(ctx context.Context, runID string) ([]PlanRecord, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY idx, slug`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PlanRecord
	for rows.Next() {
		r, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CountPlans returns the total number of stored plans.
func (s *PlanStore) CountPlans(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting plans: %w", err)
	}
	return count, nil
}
