package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rsned/tower-planner/internal/planner/db"
	"github.com/rsned/tower-planner/internal/planner/emit"
	"github.com/rsned/tower-planner/pkg/planner"
)

func planCmd(g *globals) *cobra.Command {
	var target, outDir string
	var rate float64
	var workers int
	var noStore, autoStops bool

	c := &cobra.Command{
		Use:   "plan",
		Short: "Plan every imported target (or one) and emit plan documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			database, err := g.openDB(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if autoStops {
				g.cfg.AutoStops = true
			}
			eng, err := g.newEngine(ctx, database)
			if err != nil {
				g.logger.Error("failed to build engine", "error", err)
				return err
			}
			targets, err := resolveTargets(ctx, database, target, rate)
			if err != nil {
				return err
			}

			if workers <= 0 {
				workers = g.cfg.Workers
			}
			outcomes := eng.PlanAll(ctx, targets, workers)

			runID := emit.NewRunID()
			var (
				docs    []emit.Document
				records []db.PlanRecord
				written int64
				failed  int
			)
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				if o.Err != nil {
					failed++
					fmt.Fprintf(out, "[FAIL] %3d %s: %v\n", o.Target.Index, o.Target.Name, o.Err)
					continue
				}

				doc := emit.Build(o.Plan, g.cfg.Precision).WithRunID(runID)
				rec, size, err := emitPlan(g, outDir, doc, o.Plan.Diagnostics.OK(), !noStore)
				if err != nil {
					failed++
					g.logger.Error("failed to emit plan", "target", doc.Target, "error", err)
					fmt.Fprintf(out, "[FAIL] %3d %s: %v\n", o.Target.Index, o.Target.Name, err)
					continue
				}
				docs = append(docs, doc)
				written += size
				if rec != nil {
					records = append(records, *rec)
				}
				printPlanLine(out, doc, o.Plan.Diagnostics.OK())
			}

			if outDir != "" && len(docs) > 0 {
				path, err := emit.WriteIndex(outDir, docs)
				if err != nil {
					g.logger.Error("failed to write index", "error", err)
					return err
				}
				fmt.Fprintf(out, "wrote %s plan files (%s) and %s\n",
					humanize.Comma(int64(len(docs))), humanize.Bytes(uint64(written)), path)
			}
			if len(records) > 0 {
				if err := db.NewPlanStore(database).SavePlans(ctx, records); err != nil {
					g.logger.Error("failed to store plans", "error", err)
					return err
				}
			}

			fmt.Fprintf(out, "run %s: planned %s of %s targets\n",
				runID, humanize.Comma(int64(len(docs))), humanize.Comma(int64(len(targets))))
			if failed > 0 {
				return fmt.Errorf("%d target(s) could not be planned", failed)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&target, "target", "t", "", "Plan a single item (name or ID) instead of the tier list")
	c.Flags().Float64Var(&rate, "rate", 0, "Output per minute for --target (defaults to the tier list rate, or 1)")
	c.Flags().StringVarP(&outDir, "out-dir", "o", "", "Directory for <slug>.json documents and index.json")
	c.Flags().IntVarP(&workers, "workers", "w", 0, "Targets planned in parallel (defaults to config workers)")
	c.Flags().BoolVar(&noStore, "no-store", false, "Do not save plans to the database")
	c.Flags().BoolVar(&autoStops, "auto-stops", false, "Add stops automatically to targets that exceed the bus width")
	return c
}

// emitPlan writes doc under outDir when set and builds its database record
// when store is set.
func emitPlan(g *globals, outDir string, doc emit.Document, ok, store bool) (*db.PlanRecord, int64, error) {
	data, err := emit.Marshal(doc)
	if err != nil {
		return nil, 0, err
	}

	var size int64
	if outDir != "" {
		path, n, err := emit.WriteFile(outDir, doc)
		if err != nil {
			return nil, 0, err
		}
		g.logger.Debug("wrote plan", "path", path, "size", n)
		size = n
	}
	if !store {
		return nil, size, nil
	}
	return &db.PlanRecord{
		Slug:       doc.Meta.Slug,
		TargetID:   doc.TargetID,
		TargetName: doc.Target,
		Tier:       doc.Meta.Tier,
		Index:      doc.Meta.Index,
		RunID:      doc.Meta.RunID,
		Steps:      len(doc.Steps),
		OK:         ok,
		Notes:      doc.Meta.Notes,
		Document:   data,
	}, size, nil
}

// resolveTargets returns the single requested target or the stored tier list.
// A named target takes its rate from the tier list when rate is zero.
func resolveTargets(ctx context.Context, database *db.DB, name string, rate float64) ([]planner.Target, error) {
	store := db.NewTargetStore(database)
	name = strings.TrimSpace(name)

	if name != "" {
		t := planner.Target{Index: 1, Name: name, Rate: rate}
		stored, err := store.GetTarget(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("looking up target: %w", err)
		}
		if stored != nil {
			t = *stored
			if rate > 0 {
				t.Rate = rate
			}
		}
		return []planner.Target{t}, nil
	}

	targets, err := store.ListTargets(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}
	if len(targets) == 0 {
		return nil, errors.New("no targets imported; run import --targets or pass --target")
	}
	return targets, nil
}

func printPlanLine(w io.Writer, doc emit.Document, ok bool) {
	status := "OK"
	if !ok {
		status = "WARN"
	}
	fmt.Fprintf(w, "[%s] %3d %s: %d steps, %d inputs", status, doc.Meta.Index, doc.Target, len(doc.Steps), len(doc.Inputs))
	if len(doc.Meta.Notes) > 1 {
		fmt.Fprintf(w, " (%s)", strings.Join(doc.Meta.Notes[1:], ", "))
	}
	fmt.Fprintln(w)
}
