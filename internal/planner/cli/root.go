// Package cli implements the tower-planner command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rsned/tower-planner/internal/planner/catalog"
	"github.com/rsned/tower-planner/internal/planner/config"
	"github.com/rsned/tower-planner/internal/planner/db"
	"github.com/rsned/tower-planner/internal/planner/engine"
)

// DefaultDBPath is used when --db is not given.
const DefaultDBPath = "data/planner/planner.db"

// globals holds the persistent flags and the state built from them.
type globals struct {
	dbPath     string
	configPath string
	verbose    bool

	logger *slog.Logger
	cfg    *config.Config
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "tower-planner",
		Short:         "Plan lane-constrained production towers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			g.logger = newLogger(cmd.ErrOrStderr(), g.verbose)
			slog.SetDefault(g.logger)

			cfg, err := config.Load(g.configPath)
			if err != nil {
				g.logger.Error("failed to load config", "error", err)
				return err
			}
			g.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&g.dbPath, "db", DefaultDBPath, "Path to SQLite database")
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to YAML config (defaults built in)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(
		importCmd(g),
		planCmd(g),
		analyzeCmd(g),
		lookupCmd(g),
		serveCmd(g),
		configCmd(g),
	)
	return cmd
}

// newLogger returns a text handler for terminals and JSON otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// openDB opens and initializes the configured database.
func (g *globals) openDB(ctx context.Context) (*db.DB, error) {
	database, err := db.OpenAndInit(ctx, g.dbPath)
	if err != nil {
		g.logger.Error("failed to open database", "error", err)
		return nil, err
	}
	return database, nil
}

// newEngine loads the stored catalog and builds a planning engine over it.
func (g *globals) newEngine(ctx context.Context, database *db.DB) (*engine.Engine, error) {
	cat, err := db.LoadCatalog(ctx, database, catalog.WithRawCategories(g.cfg.RawCategories...))
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	if items, _ := cat.Len(); items == 0 {
		return nil, fmt.Errorf("catalog in %s is empty; run import first", g.dbPath)
	}
	return engine.New(cat, g.cfg, engine.WithLogger(g.logger))
}
