package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

func seedActiveCampaign(t *testing.T, m *MemoryStore) (campaignID, leadID int) {
	t.Helper()
	ctx := context.Background()
	c := &model.Campaign{OrganizationID: 1, Name: "spring", Status: model.CampaignActive}
	require.NoError(t, m.Campaigns().Create(ctx, c))
	leadID = m.AddLead(model.Lead{OrganizationID: 1, Name: "Ann", Phone: "+254700000001"})
	return c.ID, leadID
}

func TestMemoryStore_QueryLeadsExcludesOptedOut(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	a := m.AddLead(model.Lead{OrganizationID: 1, Status: "new"})
	b := m.AddLead(model.Lead{OrganizationID: 1, Status: "new", OptedOut: true})
	m.AddLead(model.Lead{OrganizationID: 2, Status: "new"})

	ids, err := m.QueryLeads(ctx, 1, model.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []int{a}, ids)
	assert.NotContains(t, ids, b)
}

func TestMemoryStore_BulkInsertSkipsLiveDuplicates(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	campaignID, leadID := seedActiveCampaign(t, m)
	row := model.Enrollment{OrganizationID: 1, CampaignID: campaignID, ContactID: leadID, Status: model.EnrollmentActive}

	n, err := m.Enrollments().BulkInsert(ctx, []model.Enrollment{row, row})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, m.EnrollmentsFor(campaignID), 1)
}

func TestMemoryStore_ClaimDueOnlyOnce(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	campaignID, leadID := seedActiveCampaign(t, m)
	now := time.Now()
	_, err := m.Enrollments().BulkInsert(ctx, []model.Enrollment{{
		OrganizationID: 1, CampaignID: campaignID, ContactID: leadID,
		Status: model.EnrollmentActive, NextRunAt: now,
	}})
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		claims int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.Enrollments().ClaimDue(ctx, 0, now, now.Add(time.Minute), 10, "tok")
			assert.NoError(t, err)
			mu.Lock()
			claims += len(got)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claims)
}

func TestMemoryStore_ClaimDueSkipsPausedCampaigns(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	campaignID, leadID := seedActiveCampaign(t, m)
	now := time.Now()
	_, err := m.Enrollments().BulkInsert(ctx, []model.Enrollment{{
		OrganizationID: 1, CampaignID: campaignID, ContactID: leadID,
		Status: model.EnrollmentActive, NextRunAt: now,
	}})
	require.NoError(t, err)
	require.NoError(t, m.Campaigns().UpdateStatus(ctx, campaignID, model.CampaignPaused))

	got, err := m.Enrollments().ClaimDue(ctx, 1, now, now.Add(time.Minute), 10, "tok")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_FinishRequiresTokenAndActive(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	campaignID, leadID := seedActiveCampaign(t, m)
	now := time.Now()
	_, err := m.Enrollments().BulkInsert(ctx, []model.Enrollment{{
		OrganizationID: 1, CampaignID: campaignID, ContactID: leadID,
		Status: model.EnrollmentActive, NextRunAt: now,
	}})
	require.NoError(t, err)
	claimed, err := m.Enrollments().ClaimDue(ctx, 1, now, now.Add(time.Minute), 10, "tok")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	id := claimed[0].ID

	ok, err := m.Enrollments().Finish(ctx, model.EnrollmentUpdate{ID: id, ClaimToken: "other", Status: model.EnrollmentCompleted, LastRunAt: now})
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := m.Enrollments().CancelActiveForLead(ctx, 1, leadID, model.LogEntry{At: now, Kind: model.LogCancelled})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err = m.Enrollments().Finish(ctx, model.EnrollmentUpdate{ID: id, ClaimToken: "tok", Status: model.EnrollmentCompleted, LastRunAt: now})
	require.NoError(t, err)
	assert.False(t, ok)

	e, _ := m.Enrollment(id)
	assert.Equal(t, model.EnrollmentCancelled, e.Status)
}
