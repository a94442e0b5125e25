package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/rsned/tower-planner/internal/planner/catalog"
	"github.com/rsned/tower-planner/internal/planner/config"
	"github.com/rsned/tower-planner/pkg/planner"
)

// DefaultMaxIterations bounds a single decomposition.
const DefaultMaxIterations = 1000

// MaxGrowth bounds any bus quantity relative to the target rate. A recipe
// loop that multiplies its quantities every round never repeats a bus state,
// so it is cut here instead.
const MaxGrowth = 1e9

// DecomposeOptions tunes a Decomposer. Zero values select the defaults.
type DecomposeOptions struct {
	MaxWidth      int
	MaxIterations int
	Logger        *slog.Logger

	// Trace keeps a bus snapshot per iteration on the Decomposition.
	Trace bool
}

// Decomposer expands a target backwards into recipe steps while keeping the
// bus within MaxWidth distinct items.
type Decomposer struct {
	catalog       *catalog.Catalog
	maxWidth      int
	maxIterations int
	logger        *slog.Logger
	trace         bool
}

// Decomposition is the result of expanding one target.
type Decomposition struct {
	TargetID string
	Rate     float64

	// Steps are in forward (raw-to-target) order.
	Steps    []planner.Step
	Residual Bus

	// Trace holds the bus before every iteration, starting with {target: rate}.
	// It is only filled when DecomposeOptions.Trace is set.
	Trace      []Bus
	Iterations int

	CycleBreak      bool
	IterationCapHit bool
	WidthBlocked    []string
}

// NewDecomposer creates a Decomposer over cat.
func NewDecomposer(cat *catalog.Catalog, opts DecomposeOptions) *Decomposer {
	d := &Decomposer{
		catalog:       cat,
		maxWidth:      opts.MaxWidth,
		maxIterations: opts.MaxIterations,
		logger:        opts.Logger,
		trace:         opts.Trace,
	}
	if d.maxWidth <= 0 {
		d.maxWidth = planner.DefaultMaxWidth
	}
	if d.maxIterations <= 0 {
		d.maxIterations = DefaultMaxIterations
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// MaxWidth returns the configured bus width.
func (d *Decomposer) MaxWidth() int {
	return d.maxWidth
}

// candidate is an admissible expansion of one bus item.
type candidate struct {
	itemID string
	recipe *planner.Recipe
	width  int
}

// Decompose expands targetID at rate until no admissible expansion remains,
// a bus state repeats, a quantity grows past MaxGrowth times the rate, or the
// iteration cap is reached. Items in stops are never expanded, the target
// included.
func (d *Decomposer) Decompose(targetID string, rate float64, stops config.StopSet) (*Decomposition, error) {
	if targetID == "" {
		return nil, fmt.Errorf("%w: empty target", planner.ErrInvalidRequest)
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return nil, fmt.Errorf("%w: rate must be positive, got %v", planner.ErrInvalidRequest, rate)
	}

	res := &Decomposition{TargetID: targetID, Rate: rate}
	bus := NewBus(planner.ItemAmount{ItemID: targetID, Amount: rate})
	seen := make(map[string]bool)
	var backward []planner.Step

	for {
		if res.Iterations >= d.maxIterations {
			res.IterationCapHit = true
			d.logger.Warn("iteration cap reached", "target", targetID, "iterations", res.Iterations)
			break
		}

		sig := bus.Signature()
		if seen[sig] {
			res.CycleBreak = true
			d.logger.Warn("repeated bus state", "target", targetID, "bus", sig)
			break
		}
		seen[sig] = true
		if d.trace {
			res.Trace = append(res.Trace, bus)
		}
		res.Iterations++

		best, blocked := d.choose(bus, stops)
		if best == nil {
			res.WidthBlocked = blocked
			break
		}

		step, next := expand(bus, best)
		if limit := rate * MaxGrowth; !(next.Max() <= limit) {
			res.CycleBreak = true
			d.logger.Warn("runaway bus quantity", "target", targetID, "item", best.itemID, "limit", limit)
			break
		}
		d.logger.Debug("expand",
			"target", targetID,
			"item", best.itemID,
			"recipe", best.recipe.ID,
			"runs", step.Runs,
			"width", next.Len(),
			"bus", sig,
		)
		backward = append(backward, step)
		bus = next
	}

	// Steps were recorded target-first; flip to raw-first.
	res.Steps = make([]planner.Step, len(backward))
	for i, s := range backward {
		res.Steps[len(backward)-1-i] = s
	}
	res.Residual = bus
	return res, nil
}

// choose picks the expansion that leaves the narrowest bus. Ties go to the
// item that comes first in catalog order. Expandable items whose expansion
// would exceed the width are returned when nothing is admissible.
func (d *Decomposer) choose(bus Bus, stops config.StopSet) (*candidate, []string) {
	keys := bus.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return d.catalog.Order(keys[i]) < d.catalog.Order(keys[j])
	})

	var best *candidate
	var blocked []string
	for _, id := range keys {
		if stops.Contains(id) {
			continue
		}
		if d.catalog.IsRaw(id) {
			continue
		}
		recipe, ok := d.catalog.Recipe(id)
		if !ok {
			continue
		}

		width := bus.WidthAfter(id, recipe.Inputs)
		if width > d.maxWidth {
			blocked = append(blocked, id)
			continue
		}
		if best == nil || width < best.width {
			best = &candidate{itemID: id, recipe: recipe, width: width}
		}
	}

	if best != nil {
		return best, nil
	}
	return nil, blocked
}

// expand replaces the candidate item on the bus with its scaled inputs.
func expand(bus Bus, c *candidate) (planner.Step, Bus) {
	qty := bus.Get(c.itemID)
	runs := qty / c.recipe.OutputAmount(c.itemID)

	step := planner.Step{
		ItemID:     c.itemID,
		RecipeID:   c.recipe.ID,
		RecipeName: c.recipe.Name,
		Building:   c.recipe.Building,
		Runs:       runs,
		Produced:   []planner.ItemAmount{{ItemID: c.itemID, Amount: qty}},
	}
	for _, in := range c.recipe.Inputs {
		if in.Amount <= 0 {
			continue
		}
		step.Required = append(step.Required, planner.ItemAmount{ItemID: in.ItemID, Amount: in.Amount * runs})
	}
	for _, out := range c.recipe.Outputs {
		if out.ItemID == c.itemID || out.Amount <= 0 {
			continue
		}
		step.Byproducts = append(step.Byproducts, planner.ItemAmount{ItemID: out.ItemID, Amount: out.Amount * runs})
	}

	return step, bus.Expand(c.itemID, c.recipe.Inputs, runs)
}
