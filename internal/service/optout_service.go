package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
)

type OptOutService struct {
	Leads       repository.LeadRepositoryInterface
	Enrollments repository.EnrollmentRepositoryInterface
	Log         *zap.Logger
	Now         func() time.Time
}

type OptOutResult struct {
	LeadID          int  `json:"lead_id"`
	AlreadyOptedOut bool `json:"already_opted_out"`
	Cancelled       int  `json:"cancelled_enrollments"`
}

// OptOut flags the lead and cancels its active enrollments in the
// organization. Repeating it is a successful no-op, except that any active
// enrollment that appeared in between is cancelled too.
func (s *OptOutService) OptOut(ctx context.Context, orgID, leadID int) (*OptOutResult, error) {
	now := nowFrom(s.Now)

	changed, err := s.Leads.SetOptedOut(ctx, orgID, leadID, now)
	if err != nil {
		return nil, err
	}
	cancelled, err := s.Enrollments.CancelActiveForLead(ctx, orgID, leadID, model.LogEntry{
		ID:     uuid.NewString(),
		At:     now,
		Kind:   model.LogCancelled,
		Detail: "lead opted out",
	})
	if err != nil {
		return nil, err
	}

	logger.OrNop(s.Log).Info("lead opted out",
		zap.Int("organization_id", orgID),
		zap.Int("lead_id", leadID),
		zap.Bool("already_opted_out", !changed),
		zap.Int("cancelled", cancelled))
	return &OptOutResult{LeadID: leadID, AlreadyOptedOut: !changed, Cancelled: cancelled}, nil
}
