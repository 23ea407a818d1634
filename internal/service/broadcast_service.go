package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/lock"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/queue"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
	"github.com/unclebandit/smsleopard-sequencer/internal/sender"
)

type BroadcastService struct {
	Broadcasts repository.BroadcastRepositoryInterface
	Leads      repository.LeadRepositoryInterface
	Resolver   *AudienceService
	Sender     sender.Sender
	// Queue runs dispatch off the caller's goroutine. Nil dispatches inline.
	Queue   queue.Queue
	Locker  lock.Locker
	LockTTL time.Duration
	Log     *zap.Logger
	Now     func() time.Time
}

type CreateBroadcastInput struct {
	Name        string       `json:"name"`
	Message     string       `json:"message"`
	Channel     string       `json:"channel"`
	Filters     model.Filter `json:"filters"`
	ScheduledAt *time.Time   `json:"scheduled_at,omitempty"`
}

// DispatchJob is the queue payload for one broadcast send.
type DispatchJob struct {
	OrganizationID int
	BroadcastID    int
}

// Create snapshots the recipient count. A future ScheduledAt makes it
// scheduled, otherwise it starts as a draft.
func (s *BroadcastService) Create(ctx context.Context, orgID int, in CreateBroadcastInput) (*model.Broadcast, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("broadcast name and message are required: %w", appErrors.ErrInvalidArgument)
	}
	if in.Channel == "" {
		in.Channel = defaultChannel
	}
	total, err := s.Resolver.Count(ctx, orgID, in.Filters)
	if err != nil {
		return nil, err
	}

	b := &model.Broadcast{
		OrganizationID: orgID,
		Name:           in.Name,
		Message:        in.Message,
		Channel:        in.Channel,
		Filters:        in.Filters,
		Status:         model.BroadcastDraft,
		Total:          total,
		ScheduledAt:    in.ScheduledAt,
	}
	if in.ScheduledAt != nil && in.ScheduledAt.After(nowFrom(s.Now)) {
		b.Status = model.BroadcastScheduled
	}
	if err := s.Broadcasts.Create(ctx, b); err != nil {
		return nil, err
	}
	logger.OrNop(s.Log).Info("broadcast created",
		zap.Int("organization_id", orgID), zap.Int("broadcast_id", b.ID), zap.Int("total", total))
	return b, nil
}

func (s *BroadcastService) Get(ctx context.Context, orgID, id int) (*model.Broadcast, error) {
	return s.Broadcasts.GetByID(ctx, orgID, id)
}

// Send moves a draft or scheduled broadcast to sending and hands it to the
// dispatcher.
func (s *BroadcastService) Send(ctx context.Context, orgID, id int) (*model.Broadcast, error) {
	b, err := s.Broadcasts.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.Broadcasts.Transition(ctx, id,
		[]model.BroadcastStatus{model.BroadcastDraft, model.BroadcastScheduled}, model.BroadcastSending, nowFrom(s.Now))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("broadcast %d is %s: %w", id, b.Status, appErrors.ErrInvalidTransition)
	}

	job := DispatchJob{OrganizationID: orgID, BroadcastID: id}
	if s.Queue == nil {
		if err := s.Dispatch(ctx, job); err != nil {
			return nil, err
		}
	} else if err := s.Queue.Publish(queue.TopicBroadcastDispatch, job); err != nil {
		return nil, fmt.Errorf("enqueue broadcast %d: %w", id, err)
	}
	return s.Broadcasts.GetByID(ctx, orgID, id)
}

// Subscribe registers the dispatcher on the queue.
func (s *BroadcastService) Subscribe(q queue.Queue) error {
	return q.Subscribe(queue.TopicBroadcastDispatch, func(payload any) error {
		job, ok := payload.(DispatchJob)
		if !ok {
			logger.OrNop(s.Log).Warn("invalid broadcast dispatch payload", zap.Any("payload", payload))
			return nil
		}
		return s.Dispatch(context.Background(), job)
	})
}

// Dispatch sends the message to every current recipient and records the
// outcome. The broadcast fails only when every send failed.
func (s *BroadcastService) Dispatch(ctx context.Context, job DispatchJob) error {
	log := logger.OrNop(s.Log).With(zap.Int("organization_id", job.OrganizationID), zap.Int("broadcast_id", job.BroadcastID))

	if s.Locker != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		lease, err := s.Locker.Acquire(ctx, "broadcast:"+strconv.Itoa(job.BroadcastID), ttl)
		if errors.Is(err, lock.ErrNotAcquired) {
			log.Info("broadcast dispatch already running")
			return nil
		}
		if err != nil {
			return err
		}
		defer lease.Release(context.WithoutCancel(ctx))
	}

	b, err := s.Broadcasts.GetByID(ctx, job.OrganizationID, job.BroadcastID)
	if err != nil {
		return err
	}
	if b.Status != model.BroadcastSending {
		log.Info("broadcast not sending, dispatch skipped", zap.String("status", string(b.Status)))
		return nil
	}

	ids, err := s.Resolver.Resolve(ctx, b.OrganizationID, b.Filters)
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for _, leadID := range ids {
		lead, err := s.Leads.GetByID(ctx, b.OrganizationID, leadID)
		if err != nil || lead.OptedOut {
			failed++
			continue
		}
		to := recipientFor(b.Channel, lead)
		if to == "" {
			failed++
			continue
		}
		err = s.Sender.Send(ctx, model.OutboundMessage{
			IdempotencyKey: fmt.Sprintf("b-%d-lead-%d", b.ID, leadID),
			OrganizationID: b.OrganizationID,
			LeadID:         leadID,
			BroadcastID:    b.ID,
			Channel:        b.Channel,
			To:             to,
			Body:           RenderForLead(b.Message, lead),
			CreatedAt:      nowFrom(s.Now),
		})
		if err != nil {
			log.Warn("broadcast send failed", zap.Int("lead_id", leadID), zap.Error(err))
			failed++
			continue
		}
		sent++
	}

	status := model.BroadcastCompleted
	if sent == 0 && failed > 0 {
		status = model.BroadcastFailed
	}
	if err := s.Broadcasts.RecordResult(ctx, b.ID, sent, failed, status, nowFrom(s.Now)); err != nil {
		return err
	}
	log.Info("broadcast dispatched", zap.Int("sent", sent), zap.Int("failed", failed), zap.String("status", string(status)))
	return nil
}

// DispatchDue sends scheduled broadcasts whose time has come and returns how
// many were started.
func (s *BroadcastService) DispatchDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	due, err := s.Broadcasts.ListDueScheduled(ctx, nowFrom(s.Now), limit)
	if err != nil {
		return 0, err
	}
	started := 0
	for _, b := range due {
		if _, err := s.Send(ctx, b.OrganizationID, b.ID); err != nil {
			logger.OrNop(s.Log).Warn("start scheduled broadcast", zap.Int("broadcast_id", b.ID), zap.Error(err))
			continue
		}
		started++
	}
	return started, nil
}
