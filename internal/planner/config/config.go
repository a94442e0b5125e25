// Package config loads planner settings and resolves forced decomposition
// stops per target.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rsned/tower-planner/internal/planner/catalog"
	"github.com/rsned/tower-planner/pkg/planner"
)

const defaultConfigYAML = `# tower-planner configuration
max_width: 5
max_iterations: 1000
precision: 4
workers: 4
cache_size: 256

# Re-plan targets that exceed max_width with extra stops picked from their
# most used intermediates.
auto_stops: false

# Item categories treated as raw resources (never decomposed).
raw_categories: [ore, fluid, gas, raw]
# Raw categories reported as fluid/gas inputs by the analyzer.
fluid_categories: [fluid, gas]

# Items that are never decomposed, for every target.
always_stop:
  - Plastic
  - Rubber
  - Aluminum Ingot
  - Cooling System
  - Radio Control Unit
  - Fused Modular Frame

# Extra stops that only apply when planning the named target.
item_specific_stops:
  Thermal Propulsion Rocket: [Turbo Motor]
  Superposition Oscillator: [Crystal Oscillator]
  AI Expansion Server:
    - Superposition Oscillator
    - Neural-Quantum Processor
    - Electromagnetic Control Rod
    - Versatile Framework
  Ballistic Warp Drive:
    - AI Expansion Server
    - Superposition Oscillator
    - Singularity Cell
`

// Config holds the planner settings.
type Config struct {
	MaxWidth          int                 `yaml:"max_width"`
	MaxIterations     int                 `yaml:"max_iterations"`
	Precision         int                 `yaml:"precision"`
	Workers           int                 `yaml:"workers"`
	CacheSize         int                 `yaml:"cache_size"`
	AutoStops         bool                `yaml:"auto_stops"`
	RawCategories     []string            `yaml:"raw_categories"`
	FluidCategories   []string            `yaml:"fluid_categories"`
	AlwaysStop        []string            `yaml:"always_stop"`
	ItemSpecificStops map[string][]string `yaml:"item_specific_stops"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Parse([]byte(defaultConfigYAML))
	if err != nil {
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	return cfg
}

// DefaultYAML returns the built-in configuration document.
func DefaultYAML() string {
	return defaultConfigYAML
}

// Parse decodes a YAML document over zero values and validates it. Fields
// left out of the document keep their zero value; use Load to merge over the
// defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing yaml: %v", planner.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads path and merges it over the defaults. A missing file yields the
// defaults; an empty path does too. Lists replace the default lists while
// item_specific_stops entries are merged into the default map.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", planner.ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the numeric bounds.
func (c *Config) Validate() error {
	switch {
	case c.MaxWidth < 1:
		return fmt.Errorf("%w: max_width must be >= 1, got %d", planner.ErrInvalidConfig, c.MaxWidth)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: max_iterations must be >= 1, got %d", planner.ErrInvalidConfig, c.MaxIterations)
	case c.Precision < 0 || c.Precision > 10:
		return fmt.Errorf("%w: precision must be within [0, 10], got %d", planner.ErrInvalidConfig, c.Precision)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0, got %d", planner.ErrInvalidConfig, c.Workers)
	case c.CacheSize < 0:
		return fmt.Errorf("%w: cache_size must be >= 0, got %d", planner.ErrInvalidConfig, c.CacheSize)
	}
	return nil
}

// StopSet is the resolved, immutable set of items a decomposition must not
// expand.
type StopSet struct {
	ids map[string]bool
}

// NewStopSet builds a StopSet from item IDs.
func NewStopSet(ids ...string) StopSet {
	s := StopSet{ids: make(map[string]bool, len(ids))}
	for _, id := range ids {
		if id != "" {
			s.ids[id] = true
		}
	}
	return s
}

// Contains reports whether id is a forced stop.
func (s StopSet) Contains(id string) bool {
	return s.ids[id]
}

// With returns a new set holding s and ids.
func (s StopSet) With(ids ...string) StopSet {
	return NewStopSet(append(s.IDs(), ids...)...)
}

// Len returns the number of stops.
func (s StopSet) Len() int {
	return len(s.ids)
}

// IDs returns the stop IDs in sorted order.
func (s StopSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Key returns a stable string identifying the set.
func (s StopSet) Key() string {
	return fmt.Sprint(s.IDs())
}

// ResolveStops combines the global stops with those configured for target
// and maps every entry to an item ID. Entries may be display names or IDs;
// entries unknown to the catalog are returned separately.
func (c *Config) ResolveStops(cat *catalog.Catalog, target planner.Item) (StopSet, []string) {
	names := append([]string(nil), c.AlwaysStop...)
	for key, extra := range c.ItemSpecificStops {
		if key == target.ID || strings.EqualFold(strings.TrimSpace(key), target.Name) {
			names = append(names, extra...)
		}
	}

	var ids, unknown []string
	for _, n := range names {
		it, ok := cat.Resolve(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		ids = append(ids, it.ID)
	}
	sort.Strings(unknown)
	return NewStopSet(ids...), unknown
}
