package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rsned/tower-planner/internal/planner/catalog"
	"github.com/rsned/tower-planner/internal/planner/config"
	"github.com/rsned/tower-planner/pkg/planner"
)

func amt(id string, q float64) planner.ItemAmount {
	return planner.ItemAmount{ItemID: id, Amount: q}
}

func recipe(id string, inputs, outputs []planner.ItemAmount) planner.Recipe {
	return planner.Recipe{ID: id, Name: id, Inputs: inputs, Outputs: outputs}
}

func list(a ...planner.ItemAmount) []planner.ItemAmount { return a }

func newCatalog(items []planner.Item, recipes []planner.Recipe) *catalog.Catalog {
	return catalog.New(items, recipes)
}

// motorCatalog has two branches (rotor, frame) that both need Iron Plate.
//
//	motor  <- rotor 1, frame 1
//	rotor  <- iron-plate 2, copper-ore 1
//	frame  <- iron-plate 3, limestone 1
//	iron-plate x2 <- iron-ingot 3
//	iron-ingot <- iron-ore 1
func motorCatalog() *catalog.Catalog {
	items := []planner.Item{
		{ID: "iron-ore", Name: "Iron Ore", Category: "ore"},
		{ID: "iron-ingot", Name: "Iron Ingot", Category: "part"},
		{ID: "iron-plate", Name: "Iron Plate", Category: "part"},
		{ID: "copper-ore", Name: "Copper Ore", Category: "ore"},
		{ID: "limestone", Name: "Limestone", Category: "ore"},
		{ID: "rotor", Name: "Rotor", Category: "part"},
		{ID: "frame", Name: "Modular Frame", Category: "part"},
		{ID: "motor", Name: "Motor", Category: "part"},
		{ID: "water", Name: "Water", Category: "fluid"},
	}
	recipes := []planner.Recipe{
		recipe("smelt", list(amt("iron-ore", 1)), list(amt("iron-ingot", 1))),
		recipe("press", list(amt("iron-ingot", 3)), list(amt("iron-plate", 2))),
		recipe("rotor", list(amt("iron-plate", 2), amt("copper-ore", 1)), list(amt("rotor", 1))),
		recipe("frame", list(amt("iron-plate", 3), amt("limestone", 1)), list(amt("frame", 1))),
		recipe("motor", list(amt("rotor", 1), amt("frame", 1)), list(amt("motor", 1))),
	}
	return catalog.New(items, recipes)
}

// scopeCatalog is a single depth-3 chain: scope <- lens <- glass <- sand.
func scopeCatalog() *catalog.Catalog {
	items := []planner.Item{
		{ID: "sand", Name: "Sand", Category: "ore"},
		{ID: "glass", Name: "Glass", Category: "part"},
		{ID: "lens", Name: "Lens", Category: "part"},
		{ID: "scope", Name: "Scope", Category: "part"},
	}
	recipes := []planner.Recipe{
		recipe("glass", list(amt("sand", 2)), list(amt("glass", 1))),
		recipe("lens", list(amt("glass", 1)), list(amt("lens", 1))),
		recipe("scope", list(amt("lens", 3)), list(amt("scope", 1))),
	}
	return catalog.New(items, recipes)
}

// computerCatalog needs seven raw inputs when fully decomposed.
func computerCatalog() *catalog.Catalog {
	items := []planner.Item{
		{ID: "r1", Name: "Raw One", Category: "ore"},
		{ID: "r2", Name: "Raw Two", Category: "ore"},
		{ID: "r3", Name: "Raw Three", Category: "ore"},
		{ID: "r4", Name: "Raw Four", Category: "ore"},
		{ID: "r5", Name: "Raw Five", Category: "ore"},
		{ID: "r6", Name: "Raw Six", Category: "ore"},
		{ID: "r7", Name: "Raw Seven", Category: "ore"},
		{ID: "circuit", Name: "Circuit Board", Category: "part"},
		{ID: "casing", Name: "Casing", Category: "part"},
		{ID: "computer", Name: "Computer", Category: "part"},
	}
	recipes := []planner.Recipe{
		recipe("circuit", list(amt("r1", 1), amt("r2", 1), amt("r3", 1), amt("r4", 1)), list(amt("circuit", 1))),
		recipe("casing", list(amt("r5", 1), amt("r6", 1), amt("r7", 1)), list(amt("casing", 1))),
		recipe("computer", list(amt("circuit", 1), amt("casing", 1)), list(amt("computer", 1))),
	}
	return catalog.New(items, recipes)
}

// loopCatalog has two recipes that produce each other.
func loopCatalog() *catalog.Catalog {
	items := []planner.Item{
		{ID: "a", Name: "Alpha", Category: "part"},
		{ID: "b", Name: "Beta", Category: "part"},
	}
	recipes := []planner.Recipe{
		recipe("make-a", list(amt("b", 1)), list(amt("a", 1))),
		recipe("make-b", list(amt("a", 1)), list(amt("b", 1))),
	}
	return catalog.New(items, recipes)
}

// growingLoopCatalog loops like loopCatalog but every round multiplies the
// quantity by ten.
func growingLoopCatalog() *catalog.Catalog {
	items := []planner.Item{
		{ID: "a", Name: "Alpha", Category: "part"},
		{ID: "b", Name: "Beta", Category: "part"},
	}
	recipes := []planner.Recipe{
		recipe("make-a", list(amt("b", 10)), list(amt("a", 1))),
		recipe("make-b", list(amt("a", 10)), list(amt("b", 1))),
	}
	return catalog.New(items, recipes)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.AlwaysStop = nil
	cfg.ItemSpecificStops = nil
	require.NoError(t, cfg.Validate())
	return cfg
}

func stepIDs(steps []planner.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ItemID
	}
	return out
}
