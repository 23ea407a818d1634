package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
)

const defaultChannel = "whatsapp"

type SequenceService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Sequences    repository.SequenceRepositoryInterface
	Log          *zap.Logger
}

// CreateSequence adds a sequence to the campaign. The first sequence of a
// campaign starts active.
func (s *SequenceService) CreateSequence(ctx context.Context, orgID, campaignID int, name, trigger string) (*model.Sequence, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, orgID, campaignID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("sequence name is required: %w", appErrors.ErrInvalidArgument)
	}
	if trigger == "" {
		trigger = "manual"
	}
	active, err := s.Sequences.ActiveSequence(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	seq := &model.Sequence{CampaignID: campaignID, Name: name, TriggerType: trigger, IsActive: active == nil}
	if err := s.Sequences.CreateSequence(ctx, seq); err != nil {
		return nil, err
	}
	logger.OrNop(s.Log).Info("sequence created", zap.Int("campaign_id", campaignID), zap.Int("sequence_id", seq.ID))
	return seq, nil
}

// AddStep validates the step for its type and appends it.
func (s *SequenceService) AddStep(ctx context.Context, orgID, sequenceID int, step model.Step) (*model.Step, error) {
	seq, err := s.sequence(ctx, orgID, sequenceID)
	if err != nil {
		return nil, err
	}
	if err := validateStep(&step); err != nil {
		return nil, err
	}
	step.SequenceID = seq.ID
	if err := s.Sequences.AddStep(ctx, &step); err != nil {
		return nil, fmt.Errorf("add step at order_index %d: %w", step.OrderIndex, err)
	}
	return &step, nil
}

// Activate makes sequenceID the campaign's only active sequence.
func (s *SequenceService) Activate(ctx context.Context, orgID, sequenceID int) (*model.Sequence, error) {
	seq, err := s.sequence(ctx, orgID, sequenceID)
	if err != nil {
		return nil, err
	}
	if err := s.Sequences.Activate(ctx, seq.CampaignID, seq.ID); err != nil {
		return nil, err
	}
	seq.IsActive = true
	return seq, nil
}

func (s *SequenceService) Steps(ctx context.Context, orgID, sequenceID int) ([]model.Step, error) {
	if _, err := s.sequence(ctx, orgID, sequenceID); err != nil {
		return nil, err
	}
	return s.Sequences.Steps(ctx, sequenceID)
}

// sequence loads a sequence and checks its campaign belongs to orgID.
func (s *SequenceService) sequence(ctx context.Context, orgID, sequenceID int) (*model.Sequence, error) {
	seq, err := s.Sequences.GetSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.CampaignRepo.GetByID(ctx, orgID, seq.CampaignID); err != nil {
		if appErrors.IsNotFound(err) {
			return nil, appErrors.NewSequenceNotFound(sequenceID)
		}
		return nil, err
	}
	return seq, nil
}

func validateStep(step *model.Step) error {
	if step.OrderIndex < 0 {
		return fmt.Errorf("order_index must not be negative: %w", appErrors.ErrInvalidArgument)
	}
	switch step.Type {
	case model.StepMessage:
		if strings.TrimSpace(step.Content) == "" {
			return fmt.Errorf("message step needs content: %w", appErrors.ErrInvalidArgument)
		}
		if step.Channel == "" {
			step.Channel = defaultChannel
		}
	case model.StepDelay:
		if step.Config.Delay == nil || step.Config.Delay.Duration <= 0 {
			return fmt.Errorf("delay step needs a positive duration: %w", appErrors.ErrInvalidArgument)
		}
		switch step.Config.Delay.Unit {
		case "", "minute", "minutes", "hour", "hours", "day", "days":
		default:
			return fmt.Errorf("unknown delay unit %q: %w", step.Config.Delay.Unit, appErrors.ErrInvalidArgument)
		}
	case model.StepCondition:
		if step.Config.Condition == nil {
			return fmt.Errorf("condition step needs a predicate: %w", appErrors.ErrInvalidArgument)
		}
		for _, target := range []*int{step.Config.Condition.OnTrue, step.Config.Condition.OnFalse} {
			if target != nil && *target == step.OrderIndex {
				return fmt.Errorf("condition step cannot branch to itself: %w", appErrors.ErrInvalidArgument)
			}
		}
	default:
		return fmt.Errorf("unknown step type %q: %w", step.Type, appErrors.ErrInvalidArgument)
	}
	return nil
}
