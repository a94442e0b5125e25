package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/tower-planner/pkg/planner"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenAndInit(context.Background(), filepath.Join(t.TempDir(), "planner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func amt(id string, q float64) planner.ItemAmount {
	return planner.ItemAmount{ItemID: id, Amount: q}
}

func TestOpenAndInitIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.db")
	ctx := context.Background()

	db, err := OpenAndInit(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenAndInit(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestInMemory(t *testing.T) {
	db, err := OpenAndInit(context.Background(), ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	n, err := NewItemStore(db).CountItems(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncMetadata(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	v, err := db.GetSyncMetadata(ctx, MetaLastImport)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetSyncMetadata(ctx, MetaLastImport, "one"))
	require.NoError(t, db.SetSyncMetadata(ctx, MetaLastImport, "two"))
	v, err = db.GetSyncMetadata(ctx, MetaLastImport)
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestItemStoreKeepsOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewItemStore(db)

	require.NoError(t, store.BulkInsertItems(ctx, []planner.Item{
		{ID: "z", Name: "Zinc", Category: "ore"},
		{ID: "a", Name: "Alloy", Category: "part"},
	}))
	require.NoError(t, store.BulkInsertItems(ctx, []planner.Item{
		{ID: "m", Name: "Mesh", Category: "part"},
		{ID: "z", Name: "Zinc Ore", Category: "ore"},
	}))

	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "z", items[0].ID)
	assert.Equal(t, "Zinc Ore", items[0].Name, "re-import updates in place")
	assert.Equal(t, "a", items[1].ID)
	assert.Equal(t, "m", items[2].ID)

	it, err := store.GetItem(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, "Alloy", it.Name)

	it, err = store.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, it)

	require.NoError(t, store.ClearItems(ctx))
	n, err := store.CountItems(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecipeStoreRoundTripsOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewRecipeStore(db)

	recipes := []planner.Recipe{
		{
			ID: "Recipe_Plastic_C", Name: "Plastic", Building: "OilRefinery", DurationSec: 6,
			Inputs:  []planner.ItemAmount{amt("oil", 3)},
			Outputs: []planner.ItemAmount{amt("plastic", 2), amt("resin", 1)},
		},
		{
			ID: "Recipe_Frame_C", Name: "Frame",
			Inputs:  []planner.ItemAmount{amt("rod", 12), amt("plate", 3)},
			Outputs: []planner.ItemAmount{amt("frame", 2)},
		},
	}
	require.NoError(t, store.BulkInsertRecipes(ctx, recipes))

	all, err := store.GetAllRecipes(ctx)
	require.NoError(t, err)
	assert.Equal(t, recipes, all)

	r, err := store.GetRecipe(ctx, "Recipe_Frame_C")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, []planner.ItemAmount{amt("rod", 12), amt("plate", 3)}, r.Inputs)

	ids, err := store.FindRecipesByOutput(ctx, "resin")
	require.NoError(t, err)
	assert.Equal(t, []string{"Recipe_Plastic_C"}, ids)

	ids, err = store.GetRecipesUsingItem(ctx, "plate")
	require.NoError(t, err)
	assert.Equal(t, []string{"Recipe_Frame_C"}, ids)

	// Re-importing a recipe replaces its ingredient list.
	recipes[1].Inputs = []planner.ItemAmount{amt("plate", 4)}
	require.NoError(t, store.BulkInsertRecipes(ctx, recipes[1:]))
	r, err = store.GetRecipe(ctx, "Recipe_Frame_C")
	require.NoError(t, err)
	assert.Equal(t, []planner.ItemAmount{amt("plate", 4)}, r.Inputs)

	require.NoError(t, store.ClearRecipes(ctx))
	n, err := store.CountRecipes(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	r, err = store.GetRecipe(ctx, "Recipe_Frame_C")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestTargetStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewTargetStore(db)

	require.NoError(t, store.ReplaceTargets(ctx, []planner.Target{
		{Index: 2, Tier: "Tier 2", Name: "Motor", Rate: 2},
		{Index: 1, Tier: "Tier 1", Name: "Rotor", Rate: 1},
	}))

	all, err := store.ListTargets(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Rotor", all[0].Name)

	tier, err := store.ListTargets(ctx, "tier 2")
	require.NoError(t, err)
	require.Len(t, tier, 1)
	assert.Equal(t, 2.0, tier[0].Rate)

	got, err := store.GetTarget(ctx, "motor")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Index)

	require.NoError(t, store.ReplaceTargets(ctx, []planner.Target{{Index: 1, Name: "Stator", Rate: 1}}))
	all, err = store.ListTargets(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	got, err = store.GetTarget(ctx, "Motor")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPlanStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewPlanStore(db)

	require.NoError(t, store.SavePlans(ctx, []PlanRecord{
		{Slug: "motor", TargetID: "motor", TargetName: "Motor", Index: 2, RunID: "run-1", Steps: 5, OK: true,
			Notes: []string{"levelized_scheduler=true"}, Document: []byte(`{"a":1}`)},
		{Slug: "rotor", TargetID: "rotor", TargetName: "Rotor", Index: 1, RunID: "run-1", Steps: 2, OK: false,
			Notes: []string{"levelized_scheduler=true", "cycle_break"}, Document: []byte(`{"b":2}`)},
	}))
	require.NoError(t, store.SavePlans(ctx, []PlanRecord{
		{Slug: "motor", TargetID: "motor", TargetName: "Motor", Index: 2, RunID: "run-2", Steps: 5, OK: true,
			Document: []byte(`{"a":2}`)},
	}))

	p, err := store.GetPlan(ctx, "motor")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "run-2", p.RunID)
	assert.Equal(t, `{"a":2}`, string(p.Document))
	assert.Empty(t, p.Notes)
	assert.NotEmpty(t, p.CreatedAt)

	all, err := store.ListPlans(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "rotor", all[0].Slug)
	assert.False(t, all[0].OK)
	assert.Equal(t, []string{"levelized_scheduler=true", "cycle_break"}, all[0].Notes)

	run1, err := store.ListPlans(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, run1, 1)

	n, err := store.CountPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	missing, err := store.GetPlan(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLoadCatalog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewItemStore(db).BulkInsertItems(ctx, []planner.Item{
		{ID: "ore", Name: "Iron Ore", Category: "ore"},
		{ID: "ingot", Name: "Iron Ingot", Category: "part"},
	}))
	require.NoError(t, NewRecipeStore(db).BulkInsertRecipes(ctx, []planner.Recipe{
		{ID: "smelt", Name: "Iron Ingot", Inputs: []planner.ItemAmount{amt("ore", 1)}, Outputs: []planner.ItemAmount{amt("ingot", 1)}},
	}))

	cat, err := LoadCatalog(ctx, db)
	require.NoError(t, err)
	r, ok := cat.Recipe("ingot")
	require.True(t, ok)
	assert.Equal(t, "smelt", r.ID)
	assert.True(t, cat.IsRaw("ore"))
}
