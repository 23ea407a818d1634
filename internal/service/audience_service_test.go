package service_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

func TestResolve_QualifiedLeadScenario(t *testing.T) {
	f := newFixture(t)
	l := f.lead("Lena Otieno", "qualified", "+254711000111", "")
	f.lead("Other", "new", "+254711000222", "other@example.com")

	qualifiedWithPhone := model.Filter{Status: strPtr("qualified"), HasPhone: boolPtr(true)}
	withEmail := model.Filter{HasEmail: boolPtr(true)}

	ids, err := f.audiences.Resolve(f.ctx, org, qualifiedWithPhone)
	require.NoError(t, err)
	assert.Equal(t, []int{l}, ids)

	ids, err = f.audiences.Resolve(f.ctx, org, withEmail)
	require.NoError(t, err)
	assert.NotContains(t, ids, l)

	_, err = f.optOut.OptOut(f.ctx, org, l)
	require.NoError(t, err)

	ids, err = f.audiences.Resolve(f.ctx, org, qualifiedWithPhone)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)
}

func TestResolve_NeverReturnsOptedOutLeads(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		id := f.lead("Lead", "new", "+2547", "")
		if i%3 == 0 {
			_, err := f.optOut.OptOut(f.ctx, org, id)
			require.NoError(t, err)
		}
	}

	filters := []model.Filter{
		{},
		{Status: strPtr("new")},
		{HasPhone: boolPtr(true)},
		{ScoreMin: intPtr(0)},
	}
	for _, flt := range filters {
		ids, err := f.audiences.Resolve(f.ctx, org, flt)
		require.NoError(t, err)
		for _, id := range ids {
			lead, err := f.store.GetByID(f.ctx, org, id)
			require.NoError(t, err)
			assert.False(t, lead.OptedOut, "lead %d", id)
		}
	}
}

func TestResolve_ScoreMinZeroExcludesUnscored(t *testing.T) {
	f := newFixture(t)
	f.lead("Unscored", "new", "+2547", "")

	n, err := f.audiences.Count(f.ctx, org, model.Filter{ScoreMin: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.audiences.Count(f.ctx, org, model.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResolve_StoreFailureIsResolutionError(t *testing.T) {
	f := newFixture(t)
	f.store.QueryErr = errors.New("connection reset")

	_, err := f.audiences.Resolve(f.ctx, org, model.Filter{})
	var resErr *appErrors.ErrResolution
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, org, resErr.OrganizationID)
}

func TestAudience_CreateAndRefreshCount(t *testing.T) {
	f := newFixture(t)
	f.lead("A", "qualified", "+1", "")

	aud, err := f.audiences.Create(f.ctx, org, "Qualified", "", model.Filter{Status: strPtr("qualified")})
	require.NoError(t, err)
	assert.Equal(t, model.AudienceDynamic, aud.Type)
	assert.Equal(t, 1, aud.CachedCount)

	f.lead("B", "qualified", "+2", "")
	f.advance(1)
	refreshed, err := f.audiences.RefreshCount(f.ctx, org, aud.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.CachedCount)
	assert.Equal(t, f.now, *refreshed.LastCountAt)

	_, err = f.audiences.Get(f.ctx, 2, aud.ID)
	assert.True(t, appErrors.IsNotFound(err))

	_, err = f.audiences.Create(f.ctx, org, "  ", "", model.Filter{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidArgument)
}
