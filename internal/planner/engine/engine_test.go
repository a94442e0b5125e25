package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/tower-planner/internal/planner/config"
	"github.com/rsned/tower-planner/pkg/planner"
)

func TestPlanMotor(t *testing.T) {
	e, err := New(motorCatalog(), testConfig(t))
	require.NoError(t, err)

	plan, err := e.Plan(context.Background(), planner.PlanRequest{Target: "motor", Rate: 2, Tier: "Tier 1", Index: 4})
	require.NoError(t, err)

	assert.Equal(t, "motor", plan.TargetID)
	assert.Equal(t, "Motor", plan.TargetName)
	assert.Equal(t, "Tier 1", plan.Tier)
	assert.Equal(t, 4, plan.Index)
	assert.Equal(t, 2.0, plan.TargetRate)
	assert.Equal(t, 5, plan.MaxWidth)
	assert.Len(t, plan.Steps, 5)
	assert.Len(t, plan.Rows, 5)

	// Raw inputs are sorted by display name.
	require.Len(t, plan.RawInputs, 3)
	assert.Equal(t, "copper-ore", plan.RawInputs[0].ItemID)
	assert.Equal(t, "iron-ore", plan.RawInputs[1].ItemID)
	assert.Equal(t, "limestone", plan.RawInputs[2].ItemID)
	assert.InDelta(t, 15, plan.RawInputs[1].Amount, 1e-9)

	assert.True(t, plan.Diagnostics.OK())
	assert.Equal(t, 3, plan.Diagnostics.ResidualWidth)
	assert.Equal(t, 3, plan.Diagnostics.MaxConcurrentLanes)
}

func TestPlanDefaultRateAndForcedStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.ItemSpecificStops = map[string][]string{"Computer": {"Circuit Board"}}
	e, err := New(computerCatalog(), cfg)
	require.NoError(t, err)

	plan, err := e.Plan(context.Background(), planner.PlanRequest{Target: "Computer"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, plan.TargetRate)
	assert.Equal(t, []string{"Circuit Board"}, plan.Stops)
	assert.Len(t, plan.RawInputs, 4)
	assert.True(t, plan.Diagnostics.OK())
}

func TestPlanWidthBlockedIsReported(t *testing.T) {
	e, err := New(computerCatalog(), testConfig(t))
	require.NoError(t, err)

	plan, err := e.Plan(context.Background(), planner.PlanRequest{Target: "computer"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Circuit Board"}, plan.Diagnostics.WidthBlocked)
	assert.True(t, plan.Diagnostics.WidthExceeded)
	assert.False(t, plan.Diagnostics.OK())
}

func TestPlanCycleIsReported(t *testing.T) {
	e, err := New(loopCatalog(), testConfig(t))
	require.NoError(t, err)

	plan, err := e.Plan(context.Background(), planner.PlanRequest{Target: "Alpha"})
	require.NoError(t, err)
	assert.True(t, plan.Diagnostics.CycleBreak)
	assert.False(t, plan.Diagnostics.OK())
}

func TestPlanGrowingLoopStaysFinite(t *testing.T) {
	e, err := New(growingLoopCatalog(), testConfig(t))
	require.NoError(t, err)

	plan, err := e.Plan(context.Background(), planner.PlanRequest{Target: "Alpha"})
	require.NoError(t, err)
	assert.True(t, plan.Diagnostics.CycleBreak)
	require.NotEmpty(t, plan.RawInputs)

	_, err = json.Marshal(plan)
	assert.NoError(t, err)
}

func TestPlanStoppedTarget(t *testing.T) {
	cfg := testConfig(t)
	cfg.AlwaysStop = []string{"Scope"}
	e, err := New(scopeCatalog(), cfg)
	require.NoError(t, err)

	plan, err := e.Plan(context.Background(), planner.PlanRequest{Target: "Scope", Rate: 2})
	require.NoError(t, err)
	assert.Empty(t, plan.Steps)
	require.Len(t, plan.RawInputs, 1)
	assert.Equal(t, "scope", plan.RawInputs[0].ItemID)
	assert.InDelta(t, 2, plan.RawInputs[0].Amount, 1e-9)
}

func TestPlanAutoStops(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutoStops = true
	e, err := New(computerCatalog(), cfg)
	require.NoError(t, err)

	plan, err := e.Plan(context.Background(), planner.PlanRequest{Target: "Computer"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Circuit Board"}, plan.AutoStops)
	assert.Equal(t, []string{"Circuit Board"}, plan.Stops)
	assert.Equal(t, []string{"casing", "computer"}, stepIDs(plan.Steps))
	assert.Len(t, plan.RawInputs, 4)
	assert.Empty(t, plan.Diagnostics.WidthBlocked)
	assert.True(t, plan.Diagnostics.OK())

	cfg = testConfig(t)
	e, err = New(computerCatalog(), cfg)
	require.NoError(t, err)
	plan, err = e.Plan(context.Background(), planner.PlanRequest{Target: "Computer"})
	require.NoError(t, err)
	assert.Empty(t, plan.AutoStops)
	assert.True(t, plan.Diagnostics.WidthExceeded)
}

func TestPlanAutoStopsLeavesFittingPlans(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutoStops = true
	e, err := New(motorCatalog(), cfg)
	require.NoError(t, err)

	plan, err := e.Plan(context.Background(), planner.PlanRequest{Target: "Motor"})
	require.NoError(t, err)
	assert.Empty(t, plan.AutoStops)
	assert.Empty(t, plan.Stops)
	assert.Len(t, plan.Steps, 5)
}

func TestStopCandidatesRanksByUse(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(motorCatalog(), cfg)
	require.NoError(t, err)

	cands, err := e.stopCandidates("motor", 1, config.NewStopSet())
	require.NoError(t, err)
	// Iron Plate and Iron Ingot feed both branches.
	assert.Equal(t, []string{"iron-ingot", "iron-plate", "rotor", "frame"}, cands)
}

func TestPlanUnknownTarget(t *testing.T) {
	e, err := New(motorCatalog(), testConfig(t))
	require.NoError(t, err)

	_, err = e.Plan(context.Background(), planner.PlanRequest{Target: "Iron Plat"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, planner.ErrUnknownTarget))

	var te *planner.TargetError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "Iron Plat", te.Query)
	require.NotEmpty(t, te.Suggestions)
	assert.Equal(t, "Iron Plate", te.Suggestions[0])
}

func TestPlanInvalidRate(t *testing.T) {
	e, err := New(motorCatalog(), testConfig(t))
	require.NoError(t, err)

	_, err = e.Plan(context.Background(), planner.PlanRequest{Target: "motor", Rate: -1})
	assert.True(t, errors.Is(err, planner.ErrInvalidRequest))
}

func TestPlanIsIdempotent(t *testing.T) {
	first, err := New(motorCatalog(), testConfig(t), WithCacheSize(0))
	require.NoError(t, err)
	second, err := New(motorCatalog(), testConfig(t))
	require.NoError(t, err)

	req := planner.PlanRequest{Target: "Motor", Rate: 3}
	a, err := first.Plan(context.Background(), req)
	require.NoError(t, err)
	b, err := second.Plan(context.Background(), req)
	require.NoError(t, err)
	c, err := second.Plan(context.Background(), req)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	jc, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))
	assert.Equal(t, string(jb), string(jc))
}

func TestPlanCacheKeepsLabelsPerRequest(t *testing.T) {
	e, err := New(motorCatalog(), testConfig(t))
	require.NoError(t, err)

	a, err := e.Plan(context.Background(), planner.PlanRequest{Target: "motor", Tier: "A", Index: 1})
	require.NoError(t, err)
	b, err := e.Plan(context.Background(), planner.PlanRequest{Target: "Motor", Tier: "B", Index: 2})
	require.NoError(t, err)

	assert.Equal(t, "A", a.Tier)
	assert.Equal(t, "B", b.Tier)
	assert.Equal(t, 2, b.Index)
}

func TestPlanAll(t *testing.T) {
	e, err := New(motorCatalog(), testConfig(t))
	require.NoError(t, err)

	targets := []planner.Target{
		{Index: 1, Tier: "T1", Name: "Iron Ingot", Rate: 1},
		{Index: 2, Tier: "T1", Name: "Gizmo", Rate: 1},
		{Index: 3, Tier: "T2", Name: "Motor", Rate: 2},
		{Index: 4, Tier: "T2", Name: "Rotor"},
	}
	outcomes := e.PlanAll(context.Background(), targets, 2)
	require.Len(t, outcomes, len(targets))

	for i, o := range outcomes {
		assert.Equal(t, targets[i], o.Target)
	}
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, "iron-ingot", outcomes[0].Plan.TargetID)

	assert.Nil(t, outcomes[1].Plan)
	assert.True(t, errors.Is(outcomes[1].Err, planner.ErrUnknownTarget))

	require.NoError(t, outcomes[2].Err)
	assert.Equal(t, 3, outcomes[2].Plan.Index)
	assert.Equal(t, 2.0, outcomes[2].Plan.TargetRate)

	require.NoError(t, outcomes[3].Err)
	assert.Equal(t, 1.0, outcomes[3].Plan.TargetRate)
}

func TestPlanAllCancelled(t *testing.T) {
	e, err := New(motorCatalog(), testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := e.PlanAll(ctx, []planner.Target{{Name: "Motor"}, {Name: "Rotor"}}, 1)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Nil(t, o.Plan)
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestRecipeLookup(t *testing.T) {
	cfg := testConfig(t)
	cfg.AlwaysStop = []string{"Iron Plate"}
	e, err := New(motorCatalog(), cfg)
	require.NoError(t, err)

	resp, err := e.RecipeLookup(context.Background(), "iron plate")
	require.NoError(t, err)
	assert.Equal(t, "iron-plate", resp.Item.ID)
	assert.False(t, resp.Raw)
	assert.True(t, resp.Stopped)
	require.NotNil(t, resp.Recipe)
	assert.Equal(t, "press", resp.Recipe.ID)
	assert.Empty(t, resp.Alternatives)
	assert.Equal(t, []string{"rotor", "frame"}, resp.UsedBy)

	resp, err = e.RecipeLookup(context.Background(), "Iron Ore")
	require.NoError(t, err)
	assert.True(t, resp.Raw)
	assert.Nil(t, resp.Recipe)

	_, err = e.RecipeLookup(context.Background(), "nope")
	assert.ErrorIs(t, err, planner.ErrUnknownTarget)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxWidth = 0
	_, err := New(motorCatalog(), cfg)
	assert.ErrorIs(t, err, planner.ErrInvalidConfig)

	_, err = New(nil, testConfig(t))
	assert.Error(t, err)
}
