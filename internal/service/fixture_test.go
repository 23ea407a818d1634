package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-sequencer/internal/lock"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/pacing"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
	"github.com/unclebandit/smsleopard-sequencer/internal/sender"
	"github.com/unclebandit/smsleopard-sequencer/internal/service"
)

const org = 1

// fixture wires every service over one MemoryStore and a movable clock set
// to a Tuesday morning, inside business hours.
type fixture struct {
	ctx   context.Context
	store *repository.MemoryStore
	now   time.Time
	mock  *sender.MockSender
	locks *lock.MemoryLocker

	audiences  *service.AudienceService
	campaigns  *service.CampaignService
	sequences  *service.SequenceService
	enroll     *service.EnrollmentService
	runner     *service.Runner
	optOut     *service.OptOutService
	scoring    *service.ScoringService
	broadcasts *service.BroadcastService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: repository.NewMemoryStore(),
		now:   time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		mock:  sender.NewMockSender(0),
		locks: lock.NewMemoryLocker(),
	}
	f.mock.Rand = func() float64 { return 0.5 }
	clock := func() time.Time { return f.now }

	f.audiences = &service.AudienceService{Leads: f.store, Audiences: f.store.Audiences(), Now: clock}
	f.campaigns = &service.CampaignService{
		CampaignRepo: f.store.Campaigns(),
		Audiences:    f.store.Audiences(),
		Enrollments:  f.store.Enrollments(),
		Now:          clock,
	}
	f.sequences = &service.SequenceService{CampaignRepo: f.store.Campaigns(), Sequences: f.store.Sequences()}
	f.enroll = &service.EnrollmentService{
		CampaignRepo: f.store.Campaigns(),
		Audiences:    f.store.Audiences(),
		Sequences:    f.store.Sequences(),
		Enrollments:  f.store.Enrollments(),
		Resolver:     f.audiences,
		Locker:       f.locks,
		Policy:       service.ReenrollNever,
		Now:          clock,
	}
	f.runner = &service.Runner{
		Leads:        f.store,
		CampaignRepo: f.store.Campaigns(),
		Sequences:    f.store.Sequences(),
		Enrollments:  f.store.Enrollments(),
		Sender:       f.mock,
		Pacing:       pacing.Policy{Profiles: pacing.DefaultProfiles()},
		BatchSize:    50,
		Lease:        5 * time.Minute,
		Now:          clock,
	}
	f.optOut = &service.OptOutService{Leads: f.store, Enrollments: f.store.Enrollments(), Now: clock}
	f.scoring = &service.ScoringService{Leads: f.store, Now: clock, Concurrency: 4}
	f.broadcasts = &service.BroadcastService{
		Broadcasts: f.store.Broadcasts(),
		Leads:      f.store,
		Resolver:   f.audiences,
		Sender:     f.mock,
		Locker:     f.locks,
		Now:        clock,
	}
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) lead(name, status, phone, email string) int {
	return f.store.AddLead(model.Lead{
		OrganizationID: org,
		Name:           name,
		Status:         status,
		Phone:          phone,
		Email:          email,
		CreatedAt:      f.now.Add(-48 * time.Hour),
	})
}

// campaign creates an audience over filter, a campaign linked to it and an
// active sequence holding steps in order.
func (f *fixture) campaign(t *testing.T, filter model.Filter, cfg model.DeliveryConfig, steps ...model.Step) (*model.Campaign, []model.Step) {
	t.Helper()
	aud, err := f.audiences.Create(f.ctx, org, "audience", model.AudienceDynamic, filter)
	require.NoError(t, err)
	c, err := f.campaigns.CreateCampaign(f.ctx, org, service.CreateCampaignInput{
		Name:           "campaign",
		AudienceID:     &aud.ID,
		DeliveryConfig: cfg,
	})
	require.NoError(t, err)
	seq, err := f.sequences.CreateSequence(f.ctx, org, c.ID, "main", "manual")
	require.NoError(t, err)

	added := make([]model.Step, 0, len(steps))
	for i, st := range steps {
		st.OrderIndex = i
		got, err := f.sequences.AddStep(f.ctx, org, seq.ID, st)
		require.NoError(t, err)
		added = append(added, *got)
	}
	return c, added
}

func messageStep(body string) model.Step {
	return model.Step{Type: model.StepMessage, Channel: "whatsapp", Content: body}
}

func delayStep(n int, unit string) model.Step {
	return model.Step{Type: model.StepDelay, Config: model.StepConfig{Delay: &model.DelayConfig{Duration: n, Unit: unit}}}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool     { return &b }
func intPtr(i int) *int        { return &i }
