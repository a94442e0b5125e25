package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rsned/tower-planner/internal/planner/sync"
)

func importCmd(g *globals) *cobra.Command {
	var itemsPath, recipesPath, targetsPath string
	var clearFirst bool

	c := &cobra.Command{
		Use:   "import",
		Short: "Import the item table, recipe table and tier list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if itemsPath == "" && recipesPath == "" && targetsPath == "" && !clearFirst {
				return errors.New("nothing to import: pass --items, --recipes, --targets or --clear")
			}

			ctx := cmd.Context()
			database, err := g.openDB(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			syncer := sync.NewSyncer(database, g.logger)
			out := cmd.OutOrStdout()

			if clearFirst {
				if err := syncer.ClearAll(ctx); err != nil {
					g.logger.Error("failed to clear catalog", "error", err)
					return err
				}
				fmt.Fprintln(out, "cleared items, recipes and targets")
			}

			steps := []struct {
				path  string
				label string
				run   func() (sync.Stats, error)
			}{
				{itemsPath, "items", func() (sync.Stats, error) { return syncer.ImportItemsFromFile(ctx, itemsPath) }},
				{recipesPath, "recipes", func() (sync.Stats, error) { return syncer.ImportRecipesFromFile(ctx, recipesPath) }},
				{targetsPath, "targets", func() (sync.Stats, error) { return syncer.ImportTargetsFromFile(ctx, targetsPath) }},
			}
			for _, s := range steps {
				if s.path == "" {
					continue
				}
				g.logger.Info("importing "+s.label, "file", s.path)
				stats, err := s.run()
				if err != nil {
					g.logger.Error("failed to import "+s.label, "error", err)
					return err
				}
				line := fmt.Sprintf("imported %s %s from %s", humanize.Comma(int64(stats.Imported)), s.label, s.path)
				if stats.Skipped > 0 {
					line += fmt.Sprintf(" (%s skipped)", humanize.Comma(int64(stats.Skipped)))
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	c.Flags().StringVar(&itemsPath, "items", "", "Item table JSON")
	c.Flags().StringVar(&recipesPath, "recipes", "", "Recipe table JSON")
	c.Flags().StringVar(&targetsPath, "targets", "", "Tier list CSV (Tier, Name, Output)")
	c.Flags().BoolVar(&clearFirst, "clear", false, "Remove existing items, recipes and targets first")
	return c
}
