package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

func TestLeadWrites_DoNotTouchUpdatedAt(t *testing.T) {
	assert.NotContains(t, updateScoreQuery, "updated_at")
	assert.NotContains(t, setOptedOutQuery, "updated_at")
}

func TestMemoryStore_ScoreAndOptOutKeepUpdatedAt(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := m.AddLead(model.Lead{OrganizationID: 1, Name: "A", Status: "new", UpdatedAt: old})

	require.NoError(t, m.UpdateScore(ctx, 1, id, 40))
	_, err := m.SetOptedOut(ctx, 1, id, old.AddDate(0, 2, 0))
	require.NoError(t, err)

	l, err := m.GetByID(ctx, 1, id)
	require.NoError(t, err)
	assert.True(t, l.UpdatedAt.Equal(old))
}
