package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/lock"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
)

// ReenrollPolicy decides which earlier enrollments of a lead in the same
// campaign block a new one. Active and completed always block.
type ReenrollPolicy string

const (
	ReenrollNever         ReenrollPolicy = "never"
	ReenrollAfterCancel   ReenrollPolicy = "after_cancel"
	ReenrollAfterTerminal ReenrollPolicy = "after_terminal"
)

func (p ReenrollPolicy) blocking() []model.EnrollmentStatus {
	switch p {
	case ReenrollAfterCancel:
		return []model.EnrollmentStatus{model.EnrollmentActive, model.EnrollmentCompleted, model.EnrollmentFailed}
	case ReenrollAfterTerminal:
		return []model.EnrollmentStatus{model.EnrollmentActive, model.EnrollmentCompleted}
	default:
		return []model.EnrollmentStatus{
			model.EnrollmentActive, model.EnrollmentCompleted, model.EnrollmentFailed, model.EnrollmentCancelled,
		}
	}
}

type EnrollmentService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Audiences    repository.AudienceRepositoryInterface
	Sequences    repository.SequenceRepositoryInterface
	Enrollments  repository.EnrollmentRepositoryInterface
	Resolver     *AudienceService
	Locker       lock.Locker
	LockTTL      time.Duration
	Policy       ReenrollPolicy
	Log          *zap.Logger
	Now          func() time.Time
}

type EnrollResult struct {
	CampaignID   int `json:"campaign_id"`
	Enrolled     int `json:"enrolled"`
	AudienceSize int `json:"audience_size"`
}

// Enroll adds every lead of the campaign's audience that is not already
// enrolled. Running it twice enrolls nobody the second time.
func (s *EnrollmentService) Enroll(ctx context.Context, orgID, campaignID int) (*EnrollResult, error) {
	now := nowFrom(s.Now)
	log := logger.OrNop(s.Log).With(zap.Int("organization_id", orgID), zap.Int("campaign_id", campaignID))

	campaign, err := s.CampaignRepo.GetByID(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignDraft && campaign.Status != model.CampaignActive {
		return nil, appErrors.NewPrecondition(campaignID, appErrors.CampaignNotEnrollable, string(campaign.Status))
	}
	if campaign.AudienceID == nil {
		return nil, appErrors.NewPrecondition(campaignID, appErrors.NoAudience, "")
	}
	audience, err := s.Audiences.GetByID(ctx, orgID, *campaign.AudienceID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil, appErrors.NewPrecondition(campaignID, appErrors.NoAudience, err.Error())
		}
		return nil, err
	}
	if campaign.ScheduledFor != nil && campaign.ScheduledFor.After(now) {
		return nil, appErrors.NewPrecondition(campaignID, appErrors.ScheduledForLater, campaign.ScheduledFor.UTC().Format(time.RFC3339))
	}
	seq, err := s.Sequences.ActiveSequence(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if seq == nil {
		return nil, appErrors.NewPrecondition(campaignID, appErrors.NoActiveSequence, "")
	}
	steps, err := s.Sequences.Steps(ctx, seq.ID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, appErrors.NewPrecondition(campaignID, appErrors.NoSteps, "")
	}

	if s.Locker != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		lease, err := s.Locker.Acquire(ctx, "enroll:"+strconv.Itoa(campaignID), ttl)
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, appErrors.ErrEnrollmentLocked
		}
		if err != nil {
			return nil, fmt.Errorf("lock campaign %d: %w", campaignID, err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release enrollment lock", zap.Error(err))
			}
		}()
	}

	leadIDs, err := s.Resolver.Resolve(ctx, orgID, audience.FilterConfig)
	if err != nil {
		return nil, err
	}
	existing, err := s.Enrollments.ContactIDs(ctx, campaignID, s.Policy.blocking())
	if err != nil {
		return nil, err
	}
	enrolled := make(map[int]struct{}, len(existing))
	for _, id := range existing {
		enrolled[id] = struct{}{}
	}

	first := steps[0].ID
	rows := make([]model.Enrollment, 0, len(leadIDs))
	for _, leadID := range leadIDs {
		if _, ok := enrolled[leadID]; ok {
			continue
		}
		cursor := first
		rows = append(rows, model.Enrollment{
			OrganizationID: orgID,
			CampaignID:     campaignID,
			SequenceID:     seq.ID,
			ContactID:      leadID,
			CurrentStepID:  &cursor,
			Status:         model.EnrollmentActive,
			NextRunAt:      now,
			ExecutionLogs:  model.ExecutionLog{},
		})
	}

	inserted := 0
	if len(rows) > 0 {
		inserted, err = s.Enrollments.BulkInsert(ctx, rows)
		if err != nil {
			return nil, err
		}
	}
	if err := s.CampaignRepo.RecordEnrollment(ctx, campaignID, len(leadIDs)); err != nil {
		return nil, err
	}

	log.Info("campaign enrolled",
		zap.Int("audience_size", len(leadIDs)),
		zap.Int("enrolled", inserted),
		zap.Int("skipped", len(leadIDs)-inserted))
	return &EnrollResult{CampaignID: campaignID, Enrolled: inserted, AudienceSize: len(leadIDs)}, nil
}
