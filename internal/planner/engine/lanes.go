package engine

import (
	"github.com/rsned/tower-planner/pkg/planner"
)

// ColumnMap records the lane each item occupied in the previous row.
type ColumnMap map[string]int

// CenterFirstOrder returns the fallback lane fill order: the center lane,
// then alternating one step left and one step right. Width 5 yields
// [2 1 3 0 4].
func CenterFirstOrder(width int) []int {
	if width <= 0 {
		return nil
	}
	order := make([]int, 0, width)
	center := (width - 1) / 2
	order = append(order, center)
	for d := 1; len(order) < width; d++ {
		if l := center - d; l >= 0 {
			order = append(order, l)
		}
		if r := center + d; r < width {
			order = append(order, r)
		}
	}
	return order
}

// RowInput is everything AssignRow needs to lay out one level.
type RowInput struct {
	Level int
	Step  planner.Step

	// Bus holds the material available below this level.
	Bus Bus

	// Columns are the lanes used by the previous row.
	Columns ColumnMap

	// PrevOutput is the primary output of the previous step, or "".
	PrevOutput string

	Width int
	Names func(string) string
}

type flow struct {
	itemID     string
	quantity   float64
	provenance planner.Provenance
	fromPrev   bool
	remaining  float64
}

// AssignRow places the flows of one step into fixed lanes. It returns the
// row, the bus handed to the next level and the new column map.
func AssignRow(in RowInput) (planner.LaneRow, Bus, ColumnMap) {
	width := in.Width
	if width <= 0 {
		width = planner.DefaultMaxWidth
	}
	names := in.Names
	if names == nil {
		names = func(id string) string { return id }
	}

	flows := buildFlows(in.Bus, in.Step, in.PrevOutput)

	row := planner.LaneRow{
		Level:    in.Level,
		RecipeID: in.Step.RecipeID,
		Lanes:    make([]*planner.LaneEntry, width),
	}

	shown := flows
	if len(flows) > width {
		shown = flows[:width]
		row.Overflow = len(flows) - width
	}

	entry := func(f flow) *planner.LaneEntry {
		return &planner.LaneEntry{
			ItemID:     f.itemID,
			Name:       names(f.itemID),
			Quantity:   f.quantity,
			Provenance: f.provenance,
			FromPrev:   f.fromPrev,
			Remaining:  f.remaining,
		}
	}

	// Pass 1: keep items in the lane they used one level down.
	placed := make([]bool, len(shown))
	for i, f := range shown {
		col, ok := in.Columns[f.itemID]
		if !ok || col < 0 || col >= width || row.Lanes[col] != nil {
			continue
		}
		row.Lanes[col] = entry(f)
		placed[i] = true
	}

	// Pass 2: everything else fills center-first.
	order := CenterFirstOrder(width)
	for i, f := range shown {
		if placed[i] {
			continue
		}
		for _, col := range order {
			if row.Lanes[col] == nil {
				row.Lanes[col] = entry(f)
				break
			}
		}
	}

	// Hidden flows are counted on the last filled lane.
	if row.Overflow > 0 {
		for col := width - 1; col >= 0; col-- {
			if row.Lanes[col] != nil {
				row.Lanes[col].Overflow = row.Overflow
				break
			}
		}
	}

	cols := make(ColumnMap, width)
	for col, l := range row.Lanes {
		if l == nil {
			continue
		}
		cols[l.ItemID] = col
		if in.PrevOutput != "" && l.ItemID == in.PrevOutput {
			row.HasPrevMatch = true
		}
	}

	// Consumed inputs leave the bus; the primary output joins it.
	next := in.Bus
	for _, req := range in.Step.Required {
		next = next.Sub(req.ItemID, req.Amount)
	}
	next = next.Add(in.Step.ItemID, in.Step.ProducedAmount())

	return row, next, cols
}

// buildFlows lists consumed inputs in recipe order followed by the bus items
// passing through untouched, in bus order.
func buildFlows(bus Bus, step planner.Step, prevOutput string) []flow {
	var flows []flow
	consumed := make(map[string]int, len(step.Required))

	for _, req := range step.Required {
		if req.Amount <= planner.Epsilon {
			continue
		}
		if i, ok := consumed[req.ItemID]; ok {
			flows[i].quantity += req.Amount
			flows[i].remaining = remainder(bus.Get(req.ItemID), flows[i].quantity)
			continue
		}

		f := flow{
			itemID:     req.ItemID,
			quantity:   req.Amount,
			provenance: planner.ProvenanceConsumed,
			remaining:  remainder(bus.Get(req.ItemID), req.Amount),
		}
		if prevOutput != "" && req.ItemID == prevOutput {
			f.provenance = planner.ProvenanceCarried
			f.fromPrev = true
		}
		consumed[req.ItemID] = len(flows)
		flows = append(flows, f)
	}

	for _, e := range bus.Entries() {
		if _, ok := consumed[e.ItemID]; ok {
			continue
		}
		flows = append(flows, flow{
			itemID:     e.ItemID,
			quantity:   e.Amount,
			provenance: planner.ProvenancePassing,
			fromPrev:   prevOutput != "" && e.ItemID == prevOutput,
		})
	}
	return flows
}

func remainder(have, need float64) float64 {
	if r := have - need; r > planner.Epsilon {
		return r
	}
	return 0
}

// AssignLanes lays out every step bottom-up starting from the initial bus
// (the residual inputs). Rows are numbered from 1 at the bottom.
func AssignLanes(steps []planner.Step, initial Bus, width int, names func(string) string) []planner.LaneRow {
	rows := make([]planner.LaneRow, 0, len(steps))
	bus := initial
	cols := ColumnMap{}
	prevOutput := ""

	for i, s := range steps {
		var row planner.LaneRow
		row, bus, cols = AssignRow(RowInput{
			Level:      i + 1,
			Step:       s,
			Bus:        bus,
			Columns:    cols,
			PrevOutput: prevOutput,
			Width:      width,
			Names:      names,
		})
		rows = append(rows, row)
		prevOutput = s.ItemID
	}
	return rows
}
