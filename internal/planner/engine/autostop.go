package engine

import (
	"sort"

	"github.com/rsned/tower-planner/internal/planner/config"
	"github.com/rsned/tower-planner/pkg/planner"
)

// maxAutoStops caps the intermediates tried by the automatic stop search.
const maxAutoStops = 5

// autoStop re-plans item with extra forced stops until the plan fits the bus.
// Candidates are tried one at a time, most used first, then as growing
// prefixes of the ranking. The first plan that fits wins and records the
// stops it added; when none fits, base is returned unchanged.
func (e *Engine) autoStop(item planner.Item, rate float64, stops config.StopSet, base *planner.Plan) (*planner.Plan, error) {
	cands, err := e.stopCandidates(item.ID, rate, stops)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return base, nil
	}

	var trials [][]string
	for _, id := range cands {
		trials = append(trials, []string{id})
	}
	for n := 2; n <= len(cands); n++ {
		trials = append(trials, cands[:n])
	}

	for _, extra := range trials {
		plan, err := e.build(item, rate, stops.With(extra...))
		if err != nil {
			return nil, err
		}
		if plan.Diagnostics.WidthExceeded {
			continue
		}
		for _, id := range extra {
			plan.AutoStops = append(plan.AutoStops, e.catalog.Name(id))
		}
		e.logger.Info("applied automatic stops", "target", item.Name, "stops", plan.AutoStops)
		return plan, nil
	}

	e.logger.Debug("no automatic stops fit the bus", "target", item.Name, "candidates", len(cands))
	return base, nil
}

// stopCandidates decomposes item without a width limit and ranks the
// intermediates it needs by how many steps consume them. Raw, fluid and
// already stopped items and the target itself are left out.
func (e *Engine) stopCandidates(itemID string, rate float64, stops config.StopSet) ([]string, error) {
	dec, err := e.wide.Decompose(itemID, rate, stops)
	if err != nil {
		return nil, err
	}

	uses := make(map[string]int)
	for _, s := range dec.Steps {
		for _, req := range s.Required {
			id := req.ItemID
			if id == itemID || stops.Contains(id) || e.catalog.IsRaw(id) ||
				e.catalog.IsCategory(id, e.cfg.FluidCategories...) {
				continue
			}
			if _, ok := e.catalog.Recipe(id); !ok {
				continue
			}
			uses[id]++
		}
	}

	cands := make([]string, 0, len(uses))
	for id := range uses {
		cands = append(cands, id)
	}
	sort.Slice(cands, func(i, j int) bool {
		if uses[cands[i]] != uses[cands[j]] {
			return uses[cands[i]] > uses[cands[j]]
		}
		if oi, oj := e.catalog.Order(cands[i]), e.catalog.Order(cands[j]); oi != oj {
			return oi < oj
		}
		return cands[i] < cands[j]
	})
	if len(cands) > maxAutoStops {
		cands = cands[:maxAutoStops]
	}
	return cands, nil
}
