package app_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/app"
	"github.com/unclebandit/smsleopard-sequencer/internal/config"
	"github.com/unclebandit/smsleopard-sequencer/internal/controller"
	"github.com/unclebandit/smsleopard-sequencer/internal/lock"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
	"github.com/unclebandit/smsleopard-sequencer/internal/sender"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

func runnerConfig() config.RunnerConfig {
	return config.RunnerConfig{DefaultTimezone: "Africa/Nairobi", ReenrollPolicy: "after_cancel", BatchSize: 10}
}

func TestWireOverMemory(t *testing.T) {
	a := &app.App{Config: config.Config{Runner: runnerConfig()}, Log: zap.NewNop()}
	require.NoError(t, a.Wire(app.MemoryRepositories(repository.NewMemoryStore()), lock.NewMemoryLocker(), sender.NewMockSender(0)))

	assert.Equal(t, "Africa/Nairobi", a.Runner.Pacing.DefaultLocation.String())
	assert.Equal(t, 10, a.Runner.BatchSize)
	assert.Equal(t, service.ReenrollAfterCancel, a.Enrollment.Policy)
	assert.Equal(t, 500, a.Runner.Pacing.Profiles.For(model.ModeTurbo).MaxSendsPerCycle)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	controller.NewRouter(a.API()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, a.Close())
}

func TestWireLoadsPacingProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pacing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  turbo:\n    max_sends_per_cycle: 42\n    spacing: 30s\n"), 0o644))

	cfg := runnerConfig()
	cfg.PacingProfiles = path
	a := &app.App{Config: config.Config{Runner: cfg}}
	require.NoError(t, a.Wire(app.MemoryRepositories(repository.NewMemoryStore()), lock.NewMemoryLocker(), sender.NewMockSender(0)))
	assert.Equal(t, 42, a.Runner.Pacing.Profiles.For(model.ModeTurbo).MaxSendsPerCycle)
}

func TestWireRejectsBadTimezone(t *testing.T) {
	cfg := runnerConfig()
	cfg.DefaultTimezone = "Mars/Olympus"
	a := &app.App{Config: config.Config{Runner: cfg}}
	err := a.Wire(app.MemoryRepositories(repository.NewMemoryStore()), lock.NewMemoryLocker(), sender.NewMockSender(0))
	assert.ErrorContains(t, err, "default timezone")
}
