package pacing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

func TestLoadProfiles_EmptyPathIsDefaults(t *testing.T) {
	got, err := LoadProfiles("")
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultProfiles(), got); diff != "" {
		t.Fatalf("profiles mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadProfiles_OverridesOneMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pacing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  stealth:\n    max_sends_per_cycle: 5\n    spacing: 30m\n"), 0o600))

	got, err := LoadProfiles(path)
	require.NoError(t, err)

	want := DefaultProfiles()
	want[model.ModeStealth] = Profile{MaxSendsPerCycle: 5, Spacing: 30 * time.Minute}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("profiles mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadProfiles_Rejects(t *testing.T) {
	_, err := parseProfiles([]byte("profiles:\n  warp:\n    max_sends_per_cycle: 5\n"), DefaultProfiles())
	assert.ErrorContains(t, err, "unknown delivery mode")

	_, err = parseProfiles([]byte("profiles:\n  turbo:\n    max_sends_per_cycle: 0\n"), DefaultProfiles())
	assert.ErrorContains(t, err, "must be positive")
}

func TestProfiles_ForFallsBackToGrowth(t *testing.T) {
	p := DefaultProfiles()
	assert.Equal(t, p[model.ModeGrowth], p.For(""))
	assert.Equal(t, p[model.ModeTurbo], p.For(model.ModeTurbo))
}

func TestLoadProfiles_ShippedFile(t *testing.T) {
	got, err := LoadProfiles(filepath.Join("..", "..", "configs", "pacing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 20, got.For(model.ModeStealth).MaxSendsPerCycle)
}
