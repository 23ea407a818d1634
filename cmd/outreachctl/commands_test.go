package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/app"
	"github.com/unclebandit/smsleopard-sequencer/internal/config"
	"github.com/unclebandit/smsleopard-sequencer/internal/lock"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
	"github.com/unclebandit/smsleopard-sequencer/internal/sender"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

func memoryBuilder(t *testing.T, store *repository.MemoryStore) builder {
	return func(ctx context.Context) (*app.App, error) {
		a := &app.App{
			Config: config.Config{Runner: config.RunnerConfig{DefaultTimezone: "UTC", ReenrollPolicy: "never"}},
			Log:    zap.NewNop(),
		}
		require.NoError(t, a.Wire(app.MemoryRepositories(store), lock.NewMemoryLocker(), sender.NewMockSender(0)))
		return a, nil
	}
}

func run(t *testing.T, store *repository.MemoryStore, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(memoryBuilder(t, store))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAudienceCountAndOptOut(t *testing.T) {
	store := repository.NewMemoryStore()
	id := store.AddLead(model.Lead{OrganizationID: 1, Name: "A", Status: "qualified", Phone: "+1"})
	store.AddLead(model.Lead{OrganizationID: 1, Name: "B", Status: "new"})

	out, err := run(t, store, "audience-count", "--org", "1", "--filter", `{"has_phone":true}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":1}`, out)

	out, err = run(t, store, "opt-out", strconv.Itoa(id), "--org", "1")
	require.NoError(t, err)
	var res service.OptOutResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, id, res.LeadID)

	out, err = run(t, store, "audience-count", "--org", "1", "--filter", `{"has_phone":true}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":0}`, out)
}

func TestScoreAndRunCycle(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddLead(model.Lead{OrganizationID: 1, Name: "A", Status: "qualified", Phone: "+1"})

	out, err := run(t, store, "score", "--org", "1")
	require.NoError(t, err)
	var batch service.BatchScoreResult
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	assert.Equal(t, 1, batch.Updated)

	out, err = run(t, store, "run-cycle")
	require.NoError(t, err)
	var cycle service.CycleResult
	require.NoError(t, json.Unmarshal([]byte(out), &cycle))
	assert.Equal(t, 0, cycle.Claimed)
	assert.NotEmpty(t, cycle.CycleID)
}

func TestArgumentErrors(t *testing.T) {
	store := repository.NewMemoryStore()

	_, err := run(t, store, "enroll", "1")
	assert.ErrorContains(t, err, "--org")

	_, err = run(t, store, "enroll", "abc", "--org", "1")
	assert.ErrorContains(t, err, "invalid id")

	_, err = run(t, store, "enroll", "42", "--org", "1")
	assert.Error(t, err, "unknown campaign")

	_, err = run(t, store, "audience-count", "--org", "1", "--filter", "{")
	assert.ErrorContains(t, err, "--filter")
}
