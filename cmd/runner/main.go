// cmd/runner/main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/app"
	"github.com/unclebandit/smsleopard-sequencer/internal/config"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zl.Sync()

	a, err := app.Build(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	zl.Info("runner started", zap.Duration("interval", cfg.Runner.CycleInterval))
	loop(ctx, cfg.Runner.CycleInterval, a.Runner, a.Broadcasts, zl)
	zl.Info("runner stopped")
}

// cycleRunner and dueDispatcher are the parts of the services the loop drives.
type cycleRunner interface {
	RunCycle(ctx context.Context, orgID int) (*service.CycleResult, error)
}

type dueDispatcher interface {
	DispatchDue(ctx context.Context, limit int) (int, error)
}

// loop runs one cycle immediately and then on every tick until ctx ends. A
// failed cycle is logged; the next tick tries again.
func loop(ctx context.Context, interval time.Duration, runner cycleRunner, broadcasts dueDispatcher, zl *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tick(ctx, runner, broadcasts, zl)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func tick(ctx context.Context, runner cycleRunner, broadcasts dueDispatcher, zl *zap.Logger) {
	if res, err := runner.RunCycle(ctx, 0); err != nil {
		zl.Error("cycle failed", zap.Error(err))
	} else if res.Claimed > 0 {
		zl.Info("cycle done", zap.String("cycle_id", res.CycleID), zap.Int("claimed", res.Claimed), zap.Int("processed", res.Processed))
	}

	if n, err := broadcasts.DispatchDue(ctx, 0); err != nil {
		zl.Error("dispatch scheduled broadcasts", zap.Error(err))
	} else if n > 0 {
		zl.Info("scheduled broadcasts started", zap.Int("count", n))
	}
}
