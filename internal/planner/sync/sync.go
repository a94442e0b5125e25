// Package sync imports the game-data exports and the tier list into the
// local store.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rsned/tower-planner/internal/planner/db"
	"github.com/rsned/tower-planner/pkg/planner"
)

// defaultCategory is assigned to items exported without one.
const defaultCategory = "part"

// Syncer loads import files into the database.
type Syncer struct {
	db     *db.DB
	logger *slog.Logger
}

// NewSyncer creates a new Syncer. A nil logger discards output.
func NewSyncer(database *db.DB, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Syncer{db: database, logger: logger}
}

// Stats summarizes one import.
type Stats struct {
	Imported int
	Skipped  int
}

// ItemImport is one entry of the item table. The table key is the class name
// unless the entry carries its own.
type ItemImport struct {
	ID        string `json:"id,omitempty"`
	ClassName string `json:"className,omitempty"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
}

// RecipeImport is one entry of the recipe table, in either the projected
// object form (ingredients/produce) or the list form (inputs/outputs).
type RecipeImport struct {
	ID          string          `json:"id,omitempty"`
	ClassName   string          `json:"className,omitempty"`
	Name        string          `json:"name"`
	Ingredients json.RawMessage `json:"ingredients,omitempty"`
	Produce     json.RawMessage `json:"produce,omitempty"`
	Inputs      json.RawMessage `json:"inputs,omitempty"`
	Outputs     json.RawMessage `json:"outputs,omitempty"`
	ProducedIn  json.RawMessage `json:"mProducedIn,omitempty"`
	Building    string          `json:"building,omitempty"`
	Duration    json.RawMessage `json:"duration,omitempty"`
	// The export spells it this way.
	ManufacturingDuration json.RawMessage `json:"mManufactoringDuration,omitempty"`
}

// ImportItemsFromFile imports the item table. Items keep their file order.
func (s *Syncer) ImportItemsFromFile(ctx context.Context, path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("reading file: %w", err)
	}

	items, skipped, err := parseItems(data)
	if err != nil {
		return Stats{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := db.NewItemStore(s.db).BulkInsertItems(ctx, items); err != nil {
		return Stats{}, fmt.Errorf("inserting items: %w", err)
	}
	if err := s.markImported(ctx, db.MetaItemsSource, path); err != nil {
		return Stats{}, err
	}

	s.logger.Info("imported items", "path", path, "items", len(items), "skipped", skipped)
	return Stats{Imported: len(items), Skipped: skipped}, nil
}

func parseItems(data []byte) ([]planner.Item, int, error) {
	var imports []keyedItem
	switch firstByte(data) {
	case '[':
		var list []ItemImport
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, 0, err
		}
		for _, imp := range list {
			imports = append(imports, keyedItem{ItemImport: imp})
		}
	case '{':
		entries, err := decodeObject(data)
		if err != nil {
			return nil, 0, err
		}
		if entries, err = unwrap(entries, "itemsData"); err != nil {
			return nil, 0, err
		}
		for _, e := range entries {
			var imp ItemImport
			if err := json.Unmarshal(e.Value, &imp); err != nil {
				return nil, 0, fmt.Errorf("item %q: %w", e.Key, err)
			}
			imports = append(imports, keyedItem{key: e.Key, ItemImport: imp})
		}
	default:
		return nil, 0, fmt.Errorf("%w: item table must be an object or array", planner.ErrInvalidRequest)
	}

	items := make([]planner.Item, 0, len(imports))
	skipped := 0
	for _, imp := range imports {
		it, ok := transformItem(imp)
		if !ok {
			skipped++
			continue
		}
		items = append(items, it)
	}
	return items, skipped, nil
}

type keyedItem struct {
	key string
	ItemImport
}

func transformItem(imp keyedItem) (planner.Item, bool) {
	id := imp.ClassName
	if id == "" {
		id = imp.key
	}
	if id == "" {
		id = imp.ID
	}
	if id == "" {
		return planner.Item{}, false
	}

	name := strings.TrimSpace(imp.Name)
	if name == "" {
		name = id
	}
	category := strings.ToLower(strings.TrimSpace(imp.Category))
	if category == "" {
		category = defaultCategory
	}
	return planner.Item{ID: id, Name: name, Category: category}, true
}

// ImportRecipesFromFile imports the recipe table, applying the projection
// filters: building, equipment, alternate and event classes are skipped, as
// are recipes with no producing building or made only at the workbench.
func (s *Syncer) ImportRecipesFromFile(ctx context.Context, path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("reading file: %w", err)
	}

	recipes, skipped, err := parseRecipes(data)
	if err != nil {
		return Stats{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := db.NewRecipeStore(s.db).BulkInsertRecipes(ctx, recipes); err != nil {
		return Stats{}, fmt.Errorf("inserting recipes: %w", err)
	}
	if err := s.markImported(ctx, db.MetaRecipesSource, path); err != nil {
		return Stats{}, err
	}

	s.logger.Info("imported recipes", "path", path, "recipes", len(recipes), "skipped", skipped)
	return Stats{Imported: len(recipes), Skipped: skipped}, nil
}

func parseRecipes(data []byte) ([]planner.Recipe, int, error) {
	var (
		imports []RecipeImport
		keys    []string
	)
	switch firstByte(data) {
	case '[':
		if err := json.Unmarshal(data, &imports); err != nil {
			return nil, 0, err
		}
		keys = make([]string, len(imports))
	case '{':
		entries, err := decodeObject(data)
		if err != nil {
			return nil, 0, err
		}
		if entries, err = unwrap(entries, "recipesData"); err != nil {
			return nil, 0, err
		}
		for _, e := range entries {
			var imp RecipeImport
			if err := json.Unmarshal(e.Value, &imp); err != nil {
				return nil, 0, fmt.Errorf("recipe %q: %w", e.Key, err)
			}
			imports = append(imports, imp)
			keys = append(keys, e.Key)
		}
	default:
		return nil, 0, fmt.Errorf("%w: recipe table must be an object or array", planner.ErrInvalidRequest)
	}

	recipes := make([]planner.Recipe, 0, len(imports))
	skipped := 0
	for i, imp := range imports {
		r, ok, err := transformRecipe(keys[i], imp)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			skipped++
			continue
		}
		recipes = append(recipes, r)
	}
	return recipes, skipped, nil
}

// transformRecipe converts an import entry. ok is false when the entry is
// filtered out.
func transformRecipe(key string, imp RecipeImport) (planner.Recipe, bool, error) {
	className := imp.ClassName
	if className == "" {
		className = key
	}
	if SkipClass(className) || SkipClass(imp.ID) {
		return planner.Recipe{}, false, nil
	}

	id := imp.ID
	if id == "" {
		id = className
	}
	if id == "" {
		return planner.Recipe{}, false, nil
	}

	building := imp.Building
	places := producedIn(imp.ProducedIn)
	if building == "" {
		if len(imp.ProducedIn) > 0 && ProducedInSkippable(places) {
			return planner.Recipe{}, false, nil
		}
		building = firstBuilding(places)
	}

	inRaw, outRaw := imp.Ingredients, imp.Produce
	if isNull(inRaw) {
		inRaw = imp.Inputs
	}
	if isNull(outRaw) {
		outRaw = imp.Outputs
	}
	inputs, err := decodeAmounts(inRaw)
	if err != nil {
		return planner.Recipe{}, false, fmt.Errorf("recipe %q inputs: %w", id, err)
	}
	outputs, err := decodeAmounts(outRaw)
	if err != nil {
		return planner.Recipe{}, false, fmt.Errorf("recipe %q outputs: %w", id, err)
	}
	if !hasPositive(outputs) {
		return planner.Recipe{}, false, nil
	}

	duration := parseDuration(imp.Duration)
	if duration == 0 {
		duration = parseDuration(imp.ManufacturingDuration)
	}

	name := strings.TrimSpace(imp.Name)
	if name == "" {
		name = id
	}
	return planner.Recipe{
		ID:          id,
		Name:        name,
		Building:    building,
		DurationSec: duration,
		Inputs:      inputs,
		Outputs:     outputs,
	}, true, nil
}

func hasPositive(amounts []planner.ItemAmount) bool {
	for _, a := range amounts {
		if a.Amount > 0 {
			return true
		}
	}
	return false
}

// parseDuration accepts a number or a numeric string.
func parseDuration(raw json.RawMessage) float64 {
	if isNull(raw) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return max(f, 0)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return max(f, 0)
}

// ImportTargetsFromFile replaces the stored tier list with the CSV at path.
func (s *Syncer) ImportTargetsFromFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	targets, err := ParseTargets(f)
	if err != nil {
		return Stats{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := db.NewTargetStore(s.db).ReplaceTargets(ctx, targets); err != nil {
		return Stats{}, fmt.Errorf("inserting targets: %w", err)
	}
	if err := s.markImported(ctx, db.MetaTargetsSource, path); err != nil {
		return Stats{}, err
	}

	s.logger.Info("imported targets", "path", path, "targets", len(targets))
	return Stats{Imported: len(targets)}, nil
}

// ClearAll removes every imported item, recipe and target.
func (s *Syncer) ClearAll(ctx context.Context) error {
	if err := db.NewRecipeStore(s.db).ClearRecipes(ctx); err != nil {
		return fmt.Errorf("clearing recipes: %w", err)
	}
	if err := db.NewItemStore(s.db).ClearItems(ctx); err != nil {
		return fmt.Errorf("clearing items: %w", err)
	}
	if err := db.NewTargetStore(s.db).ReplaceTargets(ctx, nil); err != nil {
		return fmt.Errorf("clearing targets: %w", err)
	}
	s.logger.Info("cleared catalog")
	return nil
}

func (s *Syncer) markImported(ctx context.Context, key, path string) error {
	if err := s.db.SetSyncMetadata(ctx, key, path); err != nil {
		return fmt.Errorf("updating sync metadata: %w", err)
	}
	if err := s.db.SetSyncMetadata(ctx, db.MetaLastImport, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("updating sync metadata: %w", err)
	}
	return nil
}
