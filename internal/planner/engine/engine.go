// Package engine contains the planning pipeline: decomposition, sequencing
// and lane assignment.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rsned/tower-planner/internal/planner/catalog"
	"github.com/rsned/tower-planner/internal/planner/config"
	"github.com/rsned/tower-planner/pkg/planner"
)

// suggestionCount is how many names an unknown target error offers.
const suggestionCount = 3

// Engine is the main planning engine.
type Engine struct {
	catalog    *catalog.Catalog
	cfg        *config.Config
	decomposer *Decomposer
	wide       *Decomposer
	logger     *slog.Logger

	cacheSize int
	cache     *lru.Cache[string, *planner.Plan]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCacheSize overrides the configured plan cache size. Zero disables the
// cache.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// New creates a new Engine over an immutable catalog.
func New(cat *catalog.Catalog, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("%w: nil catalog", planner.ErrInvalidRequest)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		catalog:   cat,
		cfg:       cfg,
		logger:    slog.New(slog.DiscardHandler),
		cacheSize: cfg.CacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.cacheSize > 0 {
		cache, err := lru.New[string, *planner.Plan](e.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating plan cache: %w", err)
		}
		e.cache = cache
	}

	e.decomposer = NewDecomposer(cat, DecomposeOptions{
		MaxWidth:      cfg.MaxWidth,
		MaxIterations: cfg.MaxIterations,
		Logger:        e.logger,
	})
	e.wide = NewDecomposer(cat, DecomposeOptions{
		MaxWidth:      math.MaxInt,
		MaxIterations: cfg.MaxIterations,
		Logger:        e.logger,
	})
	return e, nil
}

// Catalog returns the catalog the engine plans against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Plan executes the full pipeline for one target.
func (e *Engine) Plan(ctx context.Context, req planner.PlanRequest) (*planner.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rate := req.Rate
	if rate == 0 {
		rate = 1
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return nil, fmt.Errorf("%w: rate must be positive, got %v", planner.ErrInvalidRequest, req.Rate)
	}

	item, ok := e.catalog.Resolve(req.Target)
	if !ok {
		return nil, &planner.TargetError{
			Query:       req.Target,
			Suggestions: e.catalog.Suggest(req.Target, suggestionCount),
		}
	}

	stops, unknown := e.cfg.ResolveStops(e.catalog, item)
	if len(unknown) > 0 {
		e.logger.Debug("ignoring unknown stops", "target", item.Name, "stops", unknown)
	}

	key := item.ID + "|" + strconv.FormatFloat(rate, 'g', -1, 64) + "|" + stops.Key()
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			e.logger.Debug("plan cache hit", "target", item.Name)
			return withLabels(cached, req), nil
		}
	}

	plan, err := e.build(item, rate, stops)
	if err != nil {
		return nil, err
	}
	if e.cfg.AutoStops && plan.Diagnostics.WidthExceeded {
		if plan, err = e.autoStop(item, rate, stops, plan); err != nil {
			return nil, err
		}
	}
	if d := plan.Diagnostics; !d.OK() {
		e.logger.Warn("plan has diagnostics",
			"target", item.Name,
			"width_exceeded", d.WidthExceeded,
			"cycle_break", d.CycleBreak,
			"iteration_cap_hit", d.IterationCapHit,
			"unsequenced", len(d.Unsequenced),
		)
	}
	if e.cache != nil {
		e.cache.Add(key, plan)
	}

	e.logger.Info("planned target",
		"target", item.Name,
		"steps", len(plan.Steps),
		"raw_inputs", len(plan.RawInputs),
		"ok", plan.Diagnostics.OK(),
	)
	return withLabels(plan, req), nil
}

// withLabels returns a shallow copy carrying the request's tier and index.
// Cached plans are shared and never modified.
func withLabels(p *planner.Plan, req planner.PlanRequest) *planner.Plan {
	out := *p
	out.Tier = req.Tier
	out.Index = req.Index
	return &out
}

// build runs decompose -> Sequence -> AssignLanes for one item.
func (e *Engine) build(item planner.Item, rate float64, stops config.StopSet) (*planner.Plan, error) {
	dec, err := e.decomposer.Decompose(item.ID, rate, stops)
	if err != nil {
		return nil, err
	}

	seq := Sequence(dec.Steps, dec.Residual, e.catalog.IsRaw)
	width := e.decomposer.MaxWidth()
	rows := AssignLanes(seq.Steps, seq.Residual, width, e.catalog.Name)

	plan := &planner.Plan{
		TargetID:   item.ID,
		TargetName: item.Name,
		TargetRate: rate,
		MaxWidth:   width,
		Steps:      seq.Steps,
		RawInputs:  e.sortByName(seq.Residual.Entries()),
		Byproducts: e.sortByName(aggregateByproducts(seq.Steps)),
		Rows:       rows,
	}
	for _, id := range stops.IDs() {
		plan.Stops = append(plan.Stops, e.catalog.Name(id))
	}

	d := &plan.Diagnostics
	d.ResidualWidth = seq.Residual.Len()
	d.CycleBreak = dec.CycleBreak
	d.IterationCapHit = dec.IterationCapHit
	d.Unsequenced = seq.Unsequenced
	for _, id := range dec.WidthBlocked {
		d.WidthBlocked = append(d.WidthBlocked, e.catalog.Name(id))
	}
	for _, row := range rows {
		if row.Overflow > 0 {
			d.OverflowRows++
		}
		if n := row.Occupied() + row.Overflow; n > d.MaxConcurrentLanes {
			d.MaxConcurrentLanes = n
		}
	}
	d.WidthExceeded = d.ResidualWidth > width || len(d.WidthBlocked) > 0 || d.OverflowRows > 0
	return plan, nil
}

func aggregateByproducts(steps []planner.Step) []planner.ItemAmount {
	var out []planner.ItemAmount
	for _, s := range steps {
		out = sumAmounts(out, s.Byproducts)
	}
	return out
}

func (e *Engine) sortByName(in []planner.ItemAmount) []planner.ItemAmount {
	out := make([]planner.ItemAmount, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return e.catalog.Name(out[i].ItemID) < e.catalog.Name(out[j].ItemID)
	})
	return out
}

// PlanAll plans every target with at most workers running at once. Outcomes
// are returned in input order; a failing target never stops the others.
// Targets not yet started when ctx is cancelled carry the context error.
func (e *Engine) PlanAll(ctx context.Context, targets []planner.Target, workers int) []planner.Outcome {
	outcomes := make([]planner.Outcome, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, t := range targets {
		outcomes[i].Target = t
		if err := gctx.Err(); err != nil {
			outcomes[i].Err = err
			continue
		}
		g.Go(func() error {
			plan, err := e.Plan(gctx, planner.PlanRequest{
				Target: t.Name,
				Rate:   t.Rate,
				Tier:   t.Tier,
				Index:  t.Index,
			})
			if err != nil {
				e.logger.Warn("planning target failed", "target", t.Name, "error", err)
				outcomes[i].Err = err
				return nil
			}
			outcomes[i].Plan = plan
			return nil
		})
	}

	// Workers never return errors; failures live on the outcomes.
	_ = g.Wait()
	return outcomes
}

// Analyze verifies a plan using the engine's fluid categories.
func (e *Engine) Analyze(plan *planner.Plan) planner.Analysis {
	return Analyze(plan, e.catalog, e.cfg.FluidCategories)
}
