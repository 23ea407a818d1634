// outreachctl runs single operations against the configured database, for
// operators and cron jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/unclebandit/smsleopard-sequencer/internal/app"
	"github.com/unclebandit/smsleopard-sequencer/internal/config"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(buildFromEnv)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, zl)
}
