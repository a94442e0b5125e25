// Package emit serializes plans into the per-target JSON documents consumed
// by the tower front-end.
package emit

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/rsned/tower-planner/pkg/planner"
)

// Source identifies documents written by this package.
const Source = "tower-planner"

// DefaultPrecision is the number of decimals kept in emitted quantities.
const DefaultPrecision = 4

// IndexFile is the name of the document listing every emitted plan.
const IndexFile = "index.json"

// Note values attached to a document.
const (
	NoteLevelized       = "levelized_scheduler=true"
	NoteWidthExceeded   = "width_exceeded"
	NoteWidthBlocked    = "width_blocked"
	NoteCycleBreak      = "cycle_break"
	NoteIterationCapHit = "iteration_cap_hit"
	NoteUnsequenced     = "unsequenced"
	NoteOverflow        = "overflow"
	NoteAutoStops       = "auto_stops"
)

// Meta describes where a document came from.
type Meta struct {
	Slug   string   `json:"slug"`
	Source string   `json:"source"`
	Tier   string   `json:"tier,omitempty"`
	Index  int      `json:"index,omitempty"`
	RunID  string   `json:"run_id,omitempty"`
	Notes  []string `json:"notes"`
}

// Document is the persisted plan for one target.
type Document struct {
	Meta        Meta                 `json:"meta"`
	Target      string               `json:"target"`
	TargetID    string               `json:"target_id"`
	Rate        float64              `json:"rate"`
	MaxWidth    int                  `json:"max_width"`
	Inputs      []planner.ItemAmount `json:"inputs"`
	Byproducts  []planner.ItemAmount `json:"byproducts"`
	Stops       []string             `json:"stops,omitempty"`
	AutoStops   []string             `json:"auto_stops,omitempty"`
	Steps       []planner.Step       `json:"steps"`
	Levels      []planner.LaneRow    `json:"levels"`
	Diagnostics planner.Diagnostics  `json:"diagnostics"`
}

// NewRunID returns a fresh identifier for one batch of emitted documents.
func NewRunID() string {
	return uuid.NewString()
}

// Build converts a plan into a document with every quantity rounded to
// precision decimals. The plan is not modified. Build carries no run ID, so
// identical plans yield identical documents.
func Build(plan *planner.Plan, precision int) Document {
	if precision < 0 {
		precision = DefaultPrecision
	}
	r := rounder(precision)

	doc := Document{
		Meta: Meta{
			Slug:   Slugify(plan.TargetName),
			Source: Source,
			Tier:   plan.Tier,
			Index:  plan.Index,
			Notes:  Notes(plan.Diagnostics),
		},
		Target:      plan.TargetName,
		TargetID:    plan.TargetID,
		Rate:        r(plan.TargetRate),
		MaxWidth:    plan.MaxWidth,
		Inputs:      roundAmounts(plan.RawInputs, r),
		Byproducts:  roundAmounts(plan.Byproducts, r),
		Stops:       append([]string(nil), plan.Stops...),
		AutoStops:   append([]string(nil), plan.AutoStops...),
		Diagnostics: plan.Diagnostics,
	}
	if len(plan.AutoStops) > 0 {
		doc.Meta.Notes = append(doc.Meta.Notes, NoteAutoStops)
	}
	if doc.Meta.Slug == "" {
		doc.Meta.Slug = Slugify(plan.TargetID)
	}
	if doc.Byproducts == nil {
		doc.Byproducts = []planner.ItemAmount{}
	}
	if doc.Inputs == nil {
		doc.Inputs = []planner.ItemAmount{}
	}

	doc.Steps = make([]planner.Step, len(plan.Steps))
	for i, s := range plan.Steps {
		s.Runs = r(s.Runs)
		s.Produced = roundAmounts(s.Produced, r)
		s.Required = roundAmounts(s.Required, r)
		s.Byproducts = roundAmounts(s.Byproducts, r)
		doc.Steps[i] = s
	}

	doc.Levels = make([]planner.LaneRow, len(plan.Rows))
	for i, row := range plan.Rows {
		lanes := make([]*planner.LaneEntry, len(row.Lanes))
		for j, l := range row.Lanes {
			if l == nil {
				continue
			}
			cp := *l
			cp.Quantity = r(cp.Quantity)
			cp.Remaining = r(cp.Remaining)
			lanes[j] = &cp
		}
		row.Lanes = lanes
		doc.Levels[i] = row
	}

	return doc
}

// WithRunID returns a copy of d stamped with a batch run ID.
func (d Document) WithRunID(id string) Document {
	d.Meta.RunID = id
	return d
}

// Notes lists the diagnostic flags of a plan in a fixed order.
func Notes(d planner.Diagnostics) []string {
	notes := []string{NoteLevelized}
	if d.WidthExceeded {
		notes = append(notes, NoteWidthExceeded)
	}
	if len(d.WidthBlocked) > 0 {
		notes = append(notes, NoteWidthBlocked)
	}
	if d.CycleBreak {
		notes = append(notes, NoteCycleBreak)
	}
	if d.IterationCapHit {
		notes = append(notes, NoteIterationCapHit)
	}
	if len(d.Unsequenced) > 0 {
		notes = append(notes, NoteUnsequenced)
	}
	if d.OverflowRows > 0 {
		notes = append(notes, NoteOverflow)
	}
	return notes
}

func rounder(precision int) func(float64) float64 {
	scale := math.Pow(10, float64(precision))
	return func(v float64) float64 {
		out := math.Round(v*scale) / scale
		if out == 0 {
			// Normalize negative zero.
			return 0
		}
		return out
	}
}

func roundAmounts(in []planner.ItemAmount, r func(float64) float64) []planner.ItemAmount {
	if in == nil {
		return nil
	}
	out := make([]planner.ItemAmount, len(in))
	for i, a := range in {
		out[i] = planner.ItemAmount{ItemID: a.ItemID, Amount: r(a.Amount)}
	}
	return out
}

// Marshal encodes a document the way WriteFile stores it.
func Marshal(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding document %s: %w", doc.Meta.Slug, err)
	}
	return append(data, '\n'), nil
}

// WriteFile writes doc to <dir>/<slug>.json and returns the path and size.
func WriteFile(dir string, doc Document) (string, int64, error) {
	if doc.Meta.Slug == "" {
		return "", 0, errors.New("writing document: empty slug")
	}
	data, err := Marshal(doc)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(dir, doc.Meta.Slug+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return path, int64(len(data)), nil
}

// IndexEntry is one line of the index document.
type IndexEntry struct {
	Slug   string   `json:"slug"`
	Target string   `json:"target"`
	Tier   string   `json:"tier,omitempty"`
	Index  int      `json:"index,omitempty"`
	Steps  int      `json:"steps"`
	Inputs int      `json:"inputs"`
	Notes  []string `json:"notes"`
}

// Index is the document listing every emitted plan of a run.
type Index struct {
	Source string       `json:"source"`
	RunID  string       `json:"run_id,omitempty"`
	Plans  []IndexEntry `json:"plans"`
}

// BuildIndex summarizes docs ordered by target index, then slug.
func BuildIndex(docs []Document) Index {
	idx := Index{Source: Source, Plans: make([]IndexEntry, 0, len(docs))}
	for _, d := range docs {
		if idx.RunID == "" {
			idx.RunID = d.Meta.RunID
		}
		idx.Plans = append(idx.Plans, IndexEntry{
			Slug:   d.Meta.Slug,
			Target: d.Target,
			Tier:   d.Meta.Tier,
			Index:  d.Meta.Index,
			Steps:  len(d.Steps),
			Inputs: len(d.Inputs),
			Notes:  d.Meta.Notes,
		})
	}
	sort.SliceStable(idx.Plans, func(i, j int) bool {
		a, b := idx.Plans[i], idx.Plans[j]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.Slug < b.Slug
	})
	return idx
}

// WriteIndex writes <dir>/index.json for docs and returns its path.
func WriteIndex(dir string, docs []Document) (string, error) {
	data, err := json.MarshalIndent(BuildIndex(docs), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding index: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(dir, IndexFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
