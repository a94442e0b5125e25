package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rsned/tower-planner/internal/planner/catalog"
	"github.com/rsned/tower-planner/pkg/planner"
)

func lookupCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <item name>",
		Short: "Show how an item is produced",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			resp, err := eng.RecipeLookup(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printLookup(cmd.OutOrStdout(), eng.Catalog(), resp)
			return nil
		},
	}
}

func printLookup(w io.Writer, cat *catalog.Catalog, resp *planner.RecipeLookupResponse) {
	fmt.Fprintf(w, "%s (%s)\n", resp.Item.Name, resp.Item.ID)
	switch {
	case resp.Raw:
		fmt.Fprintln(w, "  raw resource")
	case resp.Stopped:
		fmt.Fprintln(w, "  forced stop")
	}

	if resp.Recipe == nil {
		fmt.Fprintln(w, "  no recipe")
	} else {
		fmt.Fprintf(w, "  recipe: %s\n", formatRecipe(cat, resp.Recipe))
	}
	for _, alt := range resp.Alternatives {
		fmt.Fprintf(w, "  alternative: %s\n", formatRecipe(cat, alt))
	}
	if len(resp.UsedBy) > 0 {
		fmt.Fprintf(w, "  used by: %s\n", strings.Join(resp.UsedBy, ", "))
	}
}

func formatRecipe(cat *catalog.Catalog, r *planner.Recipe) string {
	s := fmt.Sprintf("%s: %s -> %s", r.Name, formatAmounts(cat, r.Inputs), formatAmounts(cat, r.Outputs))
	if r.Building != "" {
		s += " [" + r.Building + "]"
	}
	return s
}

func formatAmounts(cat *catalog.Catalog, amounts []planner.ItemAmount) string {
	parts := make([]string, len(amounts))
	for i, a := range amounts {
		parts[i] = fmt.Sprintf("%g %s", a.Amount, cat.Name(a.ItemID))
	}
	return strings.Join(parts, " + ")
}
