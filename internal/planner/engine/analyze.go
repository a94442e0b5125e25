package engine

import (
	"sort"

	"github.com/rsned/tower-planner/internal/planner/catalog"
	"github.com/rsned/tower-planner/pkg/planner"
)

// maxSuggestedStops caps the stop suggestions of an analysis.
const maxSuggestedStops = 5

// Analyze verifies a plan against its lane width and suggests additional
// forced stops: intermediates consumed by two or more steps, excluding the
// target and fluid items, most used first.
func Analyze(plan *planner.Plan, cat *catalog.Catalog, fluidCategories []string) planner.Analysis {
	a := planner.Analysis{
		TargetName: plan.TargetName,
		NumInputs:  len(plan.RawInputs),
		NumSteps:   len(plan.Steps),
	}

	for _, in := range plan.RawInputs {
		if cat.IsCategory(in.ItemID, fluidCategories...) {
			a.FluidInputs = append(a.FluidInputs, cat.Name(in.ItemID))
		}
	}

	for _, row := range plan.Rows {
		if n := row.Occupied() + row.Overflow; n > a.MaxConcurrentLanes {
			a.MaxConcurrentLanes = n
		}
		if row.Overflow > 0 {
			a.OverflowRows = append(a.OverflowRows, row.Level)
		}
	}

	width := plan.MaxWidth
	if width <= 0 {
		width = planner.DefaultMaxWidth
	}
	a.ExceedsInputLimit = a.NumInputs > width
	a.ExceedsLaneLimit = a.MaxConcurrentLanes > width

	// Count how many steps consume each intermediate.
	intermediate := make(map[string]bool, len(plan.Steps))
	for _, s := range plan.Steps {
		if s.ItemID != plan.TargetID {
			intermediate[s.ItemID] = true
		}
	}
	uses := make(map[string]int)
	for _, s := range plan.Steps {
		for _, req := range s.Required {
			if intermediate[req.ItemID] {
				uses[req.ItemID]++
			}
		}
	}

	var cands []string
	for id, n := range uses {
		if n < 2 || cat.IsCategory(id, fluidCategories...) {
			continue
		}
		cands = append(cands, id)
	}
	sort.Slice(cands, func(i, j int) bool {
		if uses[cands[i]] != uses[cands[j]] {
			return uses[cands[i]] > uses[cands[j]]
		}
		if oi, oj := cat.Order(cands[i]), cat.Order(cands[j]); oi != oj {
			return oi < oj
		}
		return cands[i] < cands[j]
	})
	if len(cands) > maxSuggestedStops {
		cands = cands[:maxSuggestedStops]
	}
	for _, id := range cands {
		a.SuggestedStops = append(a.SuggestedStops, cat.Name(id))
	}

	return a
}
