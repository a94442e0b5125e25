package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rsned/tower-planner/pkg/planner"
)

func analyzeCmd(g *globals) *cobra.Command {
	var target string
	var rate float64

	c := &cobra.Command{
		Use:   "analyze",
		Short: "Verify plans against the lane width and suggest extra stops",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			database, err := g.openDB(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			eng, err := g.newEngine(ctx, database)
			if err != nil {
				g.logger.Error("failed to build engine", "error", err)
				return err
			}
			targets, err := resolveTargets(ctx, database, target, rate)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			issues, failed := 0, 0
			for _, o := range eng.PlanAll(ctx, targets, g.cfg.Workers) {
				if o.Err != nil {
					failed++
					fmt.Fprintf(out, "%s: %v\n\n", o.Target.Name, o.Err)
					continue
				}
				a := eng.Analyze(o.Plan)
				if a.HasIssues() {
					issues++
				}
				printAnalysis(out, a, o.Plan.MaxWidth)
			}

			fmt.Fprintf(out, "%d of %d targets need attention\n", issues+failed, len(targets))
			if failed > 0 {
				return fmt.Errorf("%d target(s) could not be planned", failed)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&target, "target", "t", "", "Analyze a single item (name or ID) instead of the tier list")
	c.Flags().Float64Var(&rate, "rate", 0, "Output per minute for --target")
	return c
}

func printAnalysis(w io.Writer, a planner.Analysis, width int) {
	fmt.Fprintf(w, "%s\n", a.TargetName)
	fmt.Fprintf(w, "  inputs:     %d (limit %d)\n", a.NumInputs, width)
	fmt.Fprintf(w, "  steps:      %d\n", a.NumSteps)
	fmt.Fprintf(w, "  max lanes:  %d\n", a.MaxConcurrentLanes)
	if len(a.FluidInputs) > 0 {
		fmt.Fprintf(w, "  fluids:     %s\n", strings.Join(a.FluidInputs, ", "))
	}
	if len(a.OverflowRows) > 0 {
		levels := make([]string, len(a.OverflowRows))
		for i, l := range a.OverflowRows {
			levels[i] = fmt.Sprint(l)
		}
		fmt.Fprintf(w, "  overflow:   levels %s\n", strings.Join(levels, ", "))
	}
	if a.ExceedsInputLimit || a.ExceedsLaneLimit {
		if len(a.SuggestedStops) > 0 {
			fmt.Fprintf(w, "  try stops:  %s\n", strings.Join(a.SuggestedStops, ", "))
		}
	}
	fmt.Fprintln(w)
}
