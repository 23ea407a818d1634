package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

func TestSequence_FirstIsActiveAndActivateIsExclusive(t *testing.T) {
	f := newFixture(t)
	c, err := f.campaigns.CreateCampaign(f.ctx, org, service.CreateCampaignInput{Name: "c"})
	require.NoError(t, err)

	first, err := f.sequences.CreateSequence(f.ctx, org, c.ID, "first", "")
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.Equal(t, "manual", first.TriggerType)

	second, err := f.sequences.CreateSequence(f.ctx, org, c.ID, "second", "manual")
	require.NoError(t, err)
	assert.False(t, second.IsActive)

	_, err = f.sequences.Activate(f.ctx, org, second.ID)
	require.NoError(t, err)

	active, err := f.store.Sequences().ActiveSequence(f.ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	reloaded, err := f.store.Sequences().GetSequence(f.ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
}

func TestAddStep_Validation(t *testing.T) {
	f := newFixture(t)
	c, err := f.campaigns.CreateCampaign(f.ctx, org, service.CreateCampaignInput{Name: "c"})
	require.NoError(t, err)
	seq, err := f.sequences.CreateSequence(f.ctx, org, c.ID, "main", "")
	require.NoError(t, err)

	tests := []struct {
		name string
		step model.Step
	}{
		{"negative order", model.Step{OrderIndex: -1, Type: model.StepMessage, Content: "x"}},
		{"empty message", model.Step{Type: model.StepMessage, Content: "  "}},
		{"delay without config", model.Step{Type: model.StepDelay}},
		{"zero delay", model.Step{Type: model.StepDelay, Config: model.StepConfig{Delay: &model.DelayConfig{Duration: 0, Unit: "days"}}}},
		{"unknown unit", model.Step{Type: model.StepDelay, Config: model.StepConfig{Delay: &model.DelayConfig{Duration: 1, Unit: "fortnights"}}}},
		{"condition without predicate", model.Step{Type: model.StepCondition}},
		{"condition branching to itself", model.Step{OrderIndex: 3, Type: model.StepCondition, Config: model.StepConfig{Condition: &model.ConditionConfig{OnTrue: intPtr(3)}}}},
		{"unknown type", model.Step{Type: "webhook"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sequences.AddStep(f.ctx, org, seq.ID, tt.step)
			assert.ErrorIs(t, err, appErrors.ErrInvalidArgument)
		})
	}

	st, err := f.sequences.AddStep(f.ctx, org, seq.ID, model.Step{Type: model.StepMessage, Content: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "whatsapp", st.Channel)
	assert.Equal(t, seq.ID, st.SequenceID)

	_, err = f.sequences.AddStep(f.ctx, org, seq.ID, model.Step{Type: model.StepMessage, Content: "dup"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidArgument, "order_index 0 is taken")
}

func TestSteps_OrderedAndScopedToOrganization(t *testing.T) {
	f := newFixture(t)
	c, err := f.campaigns.CreateCampaign(f.ctx, org, service.CreateCampaignInput{Name: "c"})
	require.NoError(t, err)
	seq, err := f.sequences.CreateSequence(f.ctx, org, c.ID, "main", "")
	require.NoError(t, err)

	for _, idx := range []int{2, 0, 1} {
		st := messageStep("m")
		st.OrderIndex = idx
		_, err := f.sequences.AddStep(f.ctx, org, seq.ID, st)
		require.NoError(t, err)
	}

	steps, err := f.sequences.Steps(f.ctx, org, seq.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, st := range steps {
		assert.Equal(t, i, st.OrderIndex)
	}

	_, err = f.sequences.Steps(f.ctx, 2, seq.ID)
	assert.True(t, appErrors.IsNotFound(err))
	_, err = f.sequences.AddStep(f.ctx, 2, seq.ID, messageStep("x"))
	assert.True(t, appErrors.IsNotFound(err))
	_, err = f.sequences.CreateSequence(f.ctx, 2, c.ID, "other", "")
	assert.True(t, appErrors.IsNotFound(err))
}
