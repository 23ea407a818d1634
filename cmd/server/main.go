// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/app"
	"github.com/unclebandit/smsleopard-sequencer/internal/config"
	"github.com/unclebandit/smsleopard-sequencer/internal/controller"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load .env and the environment
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

	// Broadcast dispatch runs off the request goroutine
	q := queue.NewInMemoryQueue(zl)
	if err := a.Broadcasts.Subscribe(q); err != nil {
		zl.Fatal("subscribe broadcast dispatcher", zap.Error(err))
	}
	a.Broadcasts.Queue = q

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           controller.NewRouter(a.API()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown failed", zap.Error(err))
	}
	q.Wait()
}
