// Tower planner: decomposes target items into lane-constrained production
// towers and serves the results over MCP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rsned/tower-planner/internal/planner/cli"
)

func main() {
	// Cancel in-flight planning on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
