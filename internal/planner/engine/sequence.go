package engine

import (
	"github.com/rsned/tower-planner/pkg/planner"
)

// SequenceResult is the forward, merged step order.
type SequenceResult struct {
	Steps []planner.Step

	// Residual is the residual bus with the output of dropped steps folded in.
	Residual Bus

	// Dropped lists recipe IDs of steps whose output was raw or residual.
	Dropped []string

	// Unsequenced lists recipe IDs appended after topological ordering failed.
	Unsequenced []string
}

// Sequence turns decomposer output into a buildable forward order.
//
// Steps whose output is a raw item or already part of the residual are
// dropped. Steps sharing a recipe and output item are merged at the position
// of their first occurrence. The merged steps are then ordered so every step
// comes after the steps producing its inputs, keeping the incoming order
// wherever dependencies allow.
func Sequence(steps []planner.Step, residual Bus, isRaw func(string) bool) SequenceResult {
	res := SequenceResult{Residual: residual}

	// Drop steps that only re-derive raw or residual material.
	kept := make([]planner.Step, 0, len(steps))
	for _, s := range steps {
		if isRaw(s.ItemID) || residual.Has(s.ItemID) {
			res.Residual = res.Residual.Add(s.ItemID, s.ProducedAmount())
			res.Dropped = append(res.Dropped, s.RecipeID)
			continue
		}
		kept = append(kept, s)
	}

	merged := mergeSteps(kept)

	// Order by repeated passes; each pass places every step whose inputs are
	// available.
	available := func(id string) bool {
		return isRaw(id) || res.Residual.Has(id)
	}
	produced := make(map[string]bool)
	ready := func(s planner.Step) bool {
		for _, req := range s.Required {
			if !produced[req.ItemID] && !available(req.ItemID) {
				return false
			}
		}
		return true
	}

	remaining := merged
	ordered := make([]planner.Step, 0, len(merged))
	for pass := 0; pass <= len(merged) && len(remaining) > 0; pass++ {
		var deferred []planner.Step
		for _, s := range remaining {
			if !ready(s) {
				deferred = append(deferred, s)
				continue
			}
			ordered = append(ordered, s)
			for _, p := range s.Produced {
				produced[p.ItemID] = true
			}
			for _, b := range s.Byproducts {
				produced[b.ItemID] = true
			}
		}
		progress := len(deferred) < len(remaining)
		remaining = deferred
		if !progress {
			break
		}
	}

	for _, s := range remaining {
		ordered = append(ordered, s)
		res.Unsequenced = append(res.Unsequenced, s.RecipeID)
	}

	res.Steps = ordered
	return res
}

type mergeKey struct {
	recipeID string
	itemID   string
}

// mergeSteps combines steps with the same recipe and output item. The result
// never aliases the input slices.
func mergeSteps(steps []planner.Step) []planner.Step {
	index := make(map[mergeKey]int, len(steps))
	out := make([]planner.Step, 0, len(steps))
	for _, s := range steps {
		key := mergeKey{recipeID: s.RecipeID, itemID: s.ItemID}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, copyStep(s))
			continue
		}
		m := &out[i]
		m.Runs += s.Runs
		m.Produced = sumAmounts(m.Produced, s.Produced)
		m.Required = sumAmounts(m.Required, s.Required)
		m.Byproducts = sumAmounts(m.Byproducts, s.Byproducts)
	}
	return out
}

func copyStep(s planner.Step) planner.Step {
	s.Produced = append([]planner.ItemAmount(nil), s.Produced...)
	s.Required = append([]planner.ItemAmount(nil), s.Required...)
	s.Byproducts = append([]planner.ItemAmount(nil), s.Byproducts...)
	return s
}

// sumAmounts adds b into a by item, keeping a's order and appending items
// only present in b.
func sumAmounts(a, b []planner.ItemAmount) []planner.ItemAmount {
	for _, x := range b {
		found := false
		for i := range a {
			if a[i].ItemID == x.ItemID {
				a[i].Amount += x.Amount
				found = true
				break
			}
		}
		if !found {
			a = append(a, x)
		}
	}
	return a
}
