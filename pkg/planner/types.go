// Package planner contains the core types for the tower planner.
package planner

// Epsilon is the quantity below which a bus entry is considered empty.
const Epsilon = 1e-6

// DefaultMaxWidth is the number of lanes in the observed tower layout.
const DefaultMaxWidth = 5

// ============================================
// CATALOG TYPES
// ============================================

// Item is a single material known to the catalog.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ItemAmount pairs an item with a quantity (per run or per minute).
type ItemAmount struct {
	ItemID string  `json:"item_id"`
	Amount float64 `json:"amount"`
}

// Recipe converts ordered inputs into one or more outputs.
type Recipe struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Building    string       `json:"building,omitempty"`
	DurationSec float64      `json:"duration_sec,omitempty"`
	Inputs      []ItemAmount `json:"inputs"`
	Outputs     []ItemAmount `json:"outputs"`
}

// OutputAmount returns the quantity of itemID produced per run.
func (r *Recipe) OutputAmount(itemID string) float64 {
	for _, o := range r.Outputs {
		if o.ItemID == itemID {
			return o.Amount
		}
	}
	return 0
}

// Rate returns the per-minute production rate of itemID. Recipes without a
// duration already carry rates.
func (r *Recipe) Rate(itemID string) float64 {
	amt := r.OutputAmount(itemID)
	if r.DurationSec > 0 {
		return amt * 60 / r.DurationSec
	}
	return amt
}

// IsDedicated reports whether the recipe has a single output.
func (r *Recipe) IsDedicated() bool {
	return len(r.Outputs) == 1
}

// IsSelfReferential reports whether any input is also an output.
func (r *Recipe) IsSelfReferential() bool {
	for _, in := range r.Inputs {
		for _, out := range r.Outputs {
			if in.ItemID == out.ItemID {
				return true
			}
		}
	}
	return false
}

// Target is one row of the tier list.
type Target struct {
	Index int     `json:"index"`
	Tier  string  `json:"tier"`
	Name  string  `json:"name"`
	Rate  float64 `json:"rate"`
}

// ============================================
// PLAN TYPES
// ============================================

// Step records one recipe expansion. Steps are never mutated once a
// decomposition has produced them.
type Step struct {
	ItemID     string       `json:"item_id"`
	RecipeID   string       `json:"recipe_id"`
	RecipeName string       `json:"recipe_name"`
	Building   string       `json:"building,omitempty"`
	Runs       float64      `json:"runs"`
	Produced   []ItemAmount `json:"produced"`
	Required   []ItemAmount `json:"required"`
	Byproducts []ItemAmount `json:"byproducts,omitempty"`
}

// ProducedAmount returns how much of the step's primary item it makes.
func (s Step) ProducedAmount() float64 {
	for _, p := range s.Produced {
		if p.ItemID == s.ItemID {
			return p.Amount
		}
	}
	return 0
}

// Provenance tags where a lane's material comes from.
type Provenance string

const (
	// ProvenanceCarried marks a consumed flow produced by the row directly below.
	ProvenanceCarried Provenance = "carried"
	// ProvenanceConsumed marks a flow consumed by this row's recipe.
	ProvenanceConsumed Provenance = "consumed"
	// ProvenancePassing marks a flow that is not used at this level.
	ProvenancePassing Provenance = "passing"
)

// LaneEntry is the content of one occupied lane.
type LaneEntry struct {
	ItemID     string     `json:"item_id"`
	Name       string     `json:"name"`
	Quantity   float64    `json:"quantity"`
	Provenance Provenance `json:"provenance"`
	FromPrev   bool       `json:"from_prev"`
	Remaining  float64    `json:"remaining,omitempty"`
	Overflow   int        `json:"overflow,omitempty"`
}

// LaneRow is the fixed-width lane layout for a single step. Lanes always has
// MaxWidth slots; nil slots are empty.
type LaneRow struct {
	Level        int          `json:"level"`
	RecipeID     string       `json:"recipe_id"`
	Lanes        []*LaneEntry `json:"lanes"`
	Overflow     int          `json:"overflow"`
	HasPrevMatch bool         `json:"has_prev_match"`
}

// Occupied returns the number of non-nil lanes.
func (r LaneRow) Occupied() int {
	n := 0
	for _, l := range r.Lanes {
		if l != nil {
			n++
		}
	}
	return n
}

// LaneOf returns the lane index holding itemID, or -1.
func (r LaneRow) LaneOf(itemID string) int {
	for i, l := range r.Lanes {
		if l != nil && l.ItemID == itemID {
			return i
		}
	}
	return -1
}

// Diagnostics are the structured failure facts attached to a plan.
type Diagnostics struct {
	WidthExceeded      bool     `json:"width_exceeded"`
	ResidualWidth      int      `json:"residual_width"`
	WidthBlocked       []string `json:"width_blocked,omitempty"`
	CycleBreak         bool     `json:"cycle_break"`
	IterationCapHit    bool     `json:"iteration_cap_hit"`
	Unsequenced        []string `json:"unsequenced,omitempty"`
	OverflowRows       int      `json:"overflow_rows"`
	MaxConcurrentLanes int      `json:"max_concurrent_lanes"`
}

// OK reports whether the plan satisfied every constraint.
func (d Diagnostics) OK() bool {
	return !d.WidthExceeded && len(d.WidthBlocked) == 0 && !d.CycleBreak &&
		!d.IterationCapHit && len(d.Unsequenced) == 0 && d.OverflowRows == 0
}

// Plan is the full production plan for one target.
type Plan struct {
	TargetID    string       `json:"target_id"`
	TargetName  string       `json:"target_name"`
	Tier        string       `json:"tier,omitempty"`
	Index       int          `json:"index,omitempty"`
	TargetRate  float64      `json:"target_rate"`
	MaxWidth    int          `json:"max_width"`
	Steps       []Step       `json:"steps"`
	RawInputs   []ItemAmount `json:"raw_inputs"`
	Byproducts  []ItemAmount `json:"byproducts"`
	Rows        []LaneRow    `json:"rows"`
	Stops       []string     `json:"stops,omitempty"`
	AutoStops   []string     `json:"auto_stops,omitempty"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}

// ============================================
// REQUEST / RESPONSE TYPES
// ============================================

// PlanRequest asks for a plan for a single target.
type PlanRequest struct {
	// Target is a display name or an item ID.
	Target string  `json:"target"`
	Rate   float64 `json:"rate,omitempty"`
	Tier   string  `json:"tier,omitempty"`
	Index  int     `json:"index,omitempty"`
}

// Outcome is the per-target result of a batch run. Exactly one of Plan and
// Err is set.
type Outcome struct {
	Target Target `json:"target"`
	Plan   *Plan  `json:"plan,omitempty"`
	Err    error  `json:"-"`
}

// RecipeLookupResponse describes how an item is produced.
type RecipeLookupResponse struct {
	Item         Item      `json:"item"`
	Raw          bool      `json:"raw"`
	Stopped      bool      `json:"stopped,omitempty"`
	Recipe       *Recipe   `json:"recipe,omitempty"`
	Alternatives []*Recipe `json:"alternatives,omitempty"`
	UsedBy       []string  `json:"used_by,omitempty"`
}

// Analysis is the verification report for a plan.
type Analysis struct {
	TargetName         string   `json:"target_name"`
	NumInputs          int      `json:"num_inputs"`
	FluidInputs        []string `json:"fluid_inputs,omitempty"`
	NumSteps           int      `json:"num_steps"`
	MaxConcurrentLanes int      `json:"max_concurrent_lanes"`
	OverflowRows       []int    `json:"overflow_rows,omitempty"`
	ExceedsInputLimit  bool     `json:"exceeds_input_limit"`
	ExceedsLaneLimit   bool     `json:"exceeds_lane_limit"`
	SuggestedStops     []string `json:"suggested_stops,omitempty"`
}

// HasIssues reports whether the analysis found anything to act on.
func (a Analysis) HasIssues() bool {
	return a.ExceedsInputLimit || a.ExceedsLaneLimit || len(a.FluidInputs) > 0 || len(a.OverflowRows) > 0
}
