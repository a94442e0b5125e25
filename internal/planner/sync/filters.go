package sync

import (
	"encoding/json"
	"strings"
)

// skipPrefixes are recipe class paths that never describe production parts.
var skipPrefixes = []string{
	"/Game/FactoryGame/Recipes/Buildings/",
	"/Game/FactoryGame/Recipes/Equipment/",
	"/Game/FactoryGame/Recipes/AlternateRecipes/",
	"/Game/FactoryGame/Buildable/",
	"/Game/FactoryGame/Events/",
}

// WorkbenchPath is the manual crafting bench. Recipes made only there are not
// automatable.
const WorkbenchPath = "/Game/FactoryGame/Buildable/-Shared/WorkBench/BP_WorkshopComponent.BP_WorkshopComponent_C"

// SkipClass reports whether a recipe class path is excluded from import.
func SkipClass(className string) bool {
	for _, p := range skipPrefixes {
		if strings.HasPrefix(className, p) {
			return true
		}
	}
	return false
}

// producedIn decodes mProducedIn, which is either a string or a list of
// strings. Empty entries are dropped.
func producedIn(raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}
	var many []any
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil
	}
	var out []string
	for _, v := range many {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ProducedInSkippable reports whether a recipe has no producing building or
// is made only at the workbench.
func ProducedInSkippable(places []string) bool {
	return len(places) == 0 || (len(places) == 1 && places[0] == WorkbenchPath)
}

// ExtractBuilding returns the building name from a producing-building path:
// ".../Build_SmelterMk1.Build_SmelterMk1_C" yields "SmelterMk1".
func ExtractBuilding(path string) string {
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if !strings.HasPrefix(part, "Build_") {
			continue
		}
		name := strings.ReplaceAll(part, "Build_", "")
		name = strings.ReplaceAll(name, "_C", "")
		if _, after, ok := strings.Cut(name, "."); ok {
			name = after
		}
		return name
	}
	return ""
}

// firstBuilding returns the first automatable building among places.
func firstBuilding(places []string) string {
	for _, p := range places {
		if p == WorkbenchPath {
			continue
		}
		if b := ExtractBuilding(p); b != "" {
			return b
		}
	}
	return ""
}
