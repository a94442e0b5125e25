package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rsned/tower-planner/internal/planner/config"
	"github.com/rsned/tower-planner/internal/planner/db"
	"github.com/rsned/tower-planner/internal/planner/mcp"
)

func serveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
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

			server := mcp.NewServer(eng, db.NewTargetStore(database), g.logger)

			g.logger.Info("starting MCP server", "db", g.dbPath)
			if err := server.Run(ctx); err != nil && ctx.Err() == nil {
				g.logger.Error("server error", "error", err)
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "server stopped")
			return nil
		},
	}
}

func configCmd(g *globals) *cobra.Command {
	var defaults bool

	c := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if defaults {
				_, err := fmt.Fprint(cmd.OutOrStdout(), config.DefaultYAML())
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(g.cfg); err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			return enc.Close()
		},
	}

	c.Flags().BoolVar(&defaults, "defaults", false, "Print the built-in defaults with comments")
	return c
}
