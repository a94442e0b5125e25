package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/tower-planner/internal/planner/config"
	"github.com/rsned/tower-planner/pkg/planner"
)

func TestCenterFirstOrder(t *testing.T) {
	tests := []struct {
		width int
		want  []int
	}{
		{0, nil},
		{1, []int{0}},
		{2, []int{0, 1}},
		{4, []int{1, 0, 2, 3}},
		{5, []int{2, 1, 3, 0, 4}},
		{6, []int{2, 1, 3, 0, 4, 5}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CenterFirstOrder(tt.width), "width %d", tt.width)
	}
}

func motorRows(t *testing.T) ([]planner.Step, []planner.LaneRow, Bus) {
	t.Helper()
	cat := motorCatalog()
	res, err := NewDecomposer(cat, DecomposeOptions{}).Decompose("motor", 1, config.NewStopSet())
	require.NoError(t, err)
	seq := Sequence(res.Steps, res.Residual, cat.IsRaw)
	return seq.Steps, AssignLanes(seq.Steps, seq.Residual, 5, cat.Name), seq.Residual
}

func TestAssignLanesMotor(t *testing.T) {
	_, rows, _ := motorRows(t)
	require.Len(t, rows, 5)

	// Level 1: ore is consumed in the center, passing items fan out.
	assert.Equal(t, 1, rows[0].Level)
	assert.Equal(t, 2, rows[0].LaneOf("iron-ore"))
	assert.Equal(t, 1, rows[0].LaneOf("copper-ore"))
	assert.Equal(t, 3, rows[0].LaneOf("limestone"))
	assert.False(t, rows[0].HasPrevMatch)

	// Level 2: ingot is carried up from the row below.
	ingot := rows[1].Lanes[2]
	require.NotNil(t, ingot)
	assert.Equal(t, "iron-ingot", ingot.ItemID)
	assert.Equal(t, "Iron Ingot", ingot.Name)
	assert.Equal(t, planner.ProvenanceCarried, ingot.Provenance)
	assert.True(t, ingot.FromPrev)
	assert.True(t, rows[1].HasPrevMatch)

	// Level 3: the frame takes 3 of 5 plates; the rest stays in the lane.
	plate := rows[2].Lanes[rows[2].LaneOf("iron-plate")]
	require.NotNil(t, plate)
	assert.Equal(t, planner.ProvenanceCarried, plate.Provenance)
	assert.InDelta(t, 3, plate.Quantity, 1e-9)
	assert.InDelta(t, 2, plate.Remaining, 1e-9)
	assert.Equal(t, planner.ProvenanceConsumed, rows[2].Lanes[3].Provenance)
	assert.Equal(t, planner.ProvenancePassing, rows[2].Lanes[1].Provenance)

	// Level 4: the plate keeps its column while the frame passes by.
	assert.Equal(t, rows[2].LaneOf("iron-plate"), rows[3].LaneOf("iron-plate"))
	plate = rows[3].Lanes[rows[3].LaneOf("iron-plate")]
	assert.Equal(t, planner.ProvenanceConsumed, plate.Provenance)
	assert.Zero(t, plate.Remaining)
	frame := rows[3].Lanes[rows[3].LaneOf("frame")]
	require.NotNil(t, frame)
	assert.Equal(t, planner.ProvenancePassing, frame.Provenance)
	assert.True(t, frame.FromPrev)
	assert.Equal(t, 3, rows[3].LaneOf("frame"))

	// Level 5: the motor.
	assert.Equal(t, 3, rows[4].LaneOf("frame"))
	assert.Equal(t, 2, rows[4].LaneOf("rotor"))
	assert.Equal(t, 2, rows[4].Occupied())
}

func TestAssignLanesStability(t *testing.T) {
	_, rows, _ := motorRows(t)
	for i := 1; i < len(rows); i++ {
		for col, l := range rows[i-1].Lanes {
			if l == nil {
				continue
			}
			// Anything still on the bus one level up keeps its column.
			if now := rows[i].LaneOf(l.ItemID); now >= 0 {
				assert.Equal(t, col, now, "level %d item %s", rows[i].Level, l.ItemID)
			}
		}
	}
}

func TestAssignLanesConservation(t *testing.T) {
	steps, rows, residual := motorRows(t)
	require.Len(t, rows, len(steps))

	// Replaying every row from the residual leaves exactly the target.
	bus := residual
	cols := ColumnMap{}
	prev := ""
	for i, s := range steps {
		_, bus, cols = AssignRow(RowInput{Level: i + 1, Step: s, Bus: bus, Columns: cols, PrevOutput: prev, Width: 5})
		prev = s.ItemID
	}
	assert.Equal(t, []string{"motor"}, bus.Keys())
	assert.InDelta(t, 1, bus.Get("motor"), 1e-9)
}

func TestAssignLanesSingleChain(t *testing.T) {
	cat := scopeCatalog()
	res, err := NewDecomposer(cat, DecomposeOptions{}).Decompose("scope", 1, config.NewStopSet())
	require.NoError(t, err)
	seq := Sequence(res.Steps, res.Residual, cat.IsRaw)

	rows := AssignLanes(seq.Steps, seq.Residual, 5, cat.Name)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, 1, row.Occupied(), "level %d", row.Level)
		assert.Zero(t, row.Overflow)
		assert.NotNil(t, row.Lanes[2])
	}
}

func TestAssignRowOverflow(t *testing.T) {
	row, next, cols := AssignRow(RowInput{
		Level: 1,
		Step:  step("e", "re", 1, 1, amt("c", 1)),
		Bus:   NewBus(amt("a", 1), amt("b", 1), amt("c", 1), amt("d", 1)),
		Width: 2,
	})

	require.Len(t, row.Lanes, 2)
	assert.Equal(t, 2, row.Overflow)
	assert.Equal(t, "c", row.Lanes[0].ItemID)
	assert.Equal(t, "a", row.Lanes[1].ItemID)
	assert.Zero(t, row.Lanes[0].Overflow)
	assert.Equal(t, 2, row.Lanes[1].Overflow, "hidden flows are counted on the last filled lane")
	assert.LessOrEqual(t, row.Occupied(), 2)

	assert.Equal(t, []string{"a", "b", "d", "e"}, next.Keys())
	assert.Equal(t, ColumnMap{"c": 0, "a": 1}, cols)
}

func TestAssignRowKeepsColumnsAndFillsCenter(t *testing.T) {
	row, _, cols := AssignRow(RowInput{
		Level:      2,
		Step:       step("out", "r", 1, 1, amt("new", 1)),
		Bus:        NewBus(amt("left", 1), amt("new", 1), amt("edge", 1)),
		Columns:    ColumnMap{"left": 0, "edge": 4, "gone": 2},
		PrevOutput: "edge",
		Width:      5,
	})

	assert.Equal(t, 0, row.LaneOf("left"))
	assert.Equal(t, 4, row.LaneOf("edge"))
	assert.Equal(t, 2, row.LaneOf("new"))
	assert.True(t, row.HasPrevMatch)
	assert.True(t, row.Lanes[4].FromPrev)
	assert.Equal(t, planner.ProvenancePassing, row.Lanes[4].Provenance)
	assert.Equal(t, ColumnMap{"left": 0, "new": 2, "edge": 4}, cols)
}

func TestAssignLanesEmpty(t *testing.T) {
	assert.Empty(t, AssignLanes(nil, NewBus(amt("ore", 1)), 5, nil))
}
