package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/pacing"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
	"github.com/unclebandit/smsleopard-sequencer/internal/sender"
)

// Runner executes due enrollment steps. It keeps no timer of its own; each
// RunCycle call claims a bounded batch, runs one step per enrollment and
// returns. Concurrent cycles never share an enrollment because claiming is
// atomic and finishing requires the claim token.
type Runner struct {
	Leads        repository.LeadRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	Sequences    repository.SequenceRepositoryInterface
	Enrollments  repository.EnrollmentRepositoryInterface
	Sender       sender.Sender
	Pacing       pacing.Policy
	BatchSize    int
	Lease        time.Duration
	Log          *zap.Logger
	Now          func() time.Time
}

type CycleLog struct {
	EnrollmentID int `json:"enrollment_id"`
	CampaignID   int `json:"campaign_id"`
	LeadID       int `json:"lead_id"`
	model.LogEntry
}

type CycleResult struct {
	CycleID   string     `json:"cycle_id"`
	Claimed   int        `json:"claimed"`
	Processed int        `json:"processed"`
	Logs      []CycleLog `json:"logs"`
}

// RunCycle processes due enrollments of orgID, or of every organization when
// orgID is 0.
func (r *Runner) RunCycle(ctx context.Context, orgID int) (*CycleResult, error) {
	batch := r.BatchSize
	if batch <= 0 {
		batch = 100
	}
	lease := r.Lease
	if lease <= 0 {
		lease = 5 * time.Minute
	}

	c := &cycle{
		r:         r,
		id:        uuid.NewString(),
		token:     uuid.NewString(),
		now:       nowFrom(r.Now),
		campaigns: map[int]*model.Campaign{},
		steps:     map[int][]model.Step{},
		sends:     map[int]int{},
	}
	c.log = logger.OrNop(r.Log).With(zap.String("cycle_id", c.id), zap.Int("organization_id", orgID))

	claimed, err := r.Enrollments.ClaimDue(ctx, orgID, c.now, c.now.Add(lease), batch, c.token)
	if err != nil {
		return nil, fmt.Errorf("claim due enrollments: %w", err)
	}

	res := &CycleResult{CycleID: c.id, Claimed: len(claimed), Logs: []CycleLog{}}
	for i := range claimed {
		if ctx.Err() != nil {
			// Unprocessed claims become due again when the lease runs out.
			break
		}
		e := &claimed[i]
		elog := c.log.With(zap.Int("enrollment_id", e.ID), zap.Int("campaign_id", e.CampaignID), zap.Int("lead_id", e.ContactID))

		upd, err := c.execute(ctx, e)
		if err != nil {
			elog.Error("execute step", zap.Error(err))
			continue
		}
		applied, err := r.Enrollments.Finish(ctx, upd)
		if err != nil {
			elog.Error("finish step", zap.Error(err))
			continue
		}
		if !applied {
			elog.Info("enrollment changed during cycle, outcome dropped")
			continue
		}

		res.Processed++
		for _, entry := range upd.Append {
			res.Logs = append(res.Logs, CycleLog{EnrollmentID: e.ID, CampaignID: e.CampaignID, LeadID: e.ContactID, LogEntry: entry})
		}
		if upd.Status == model.EnrollmentCompleted {
			if err := r.CampaignRepo.IncrementCompleted(ctx, e.CampaignID); err != nil {
				elog.Warn("increment completed", zap.Error(err))
			}
		}
		elog.Debug("step executed", zap.String("status", string(upd.Status)))
	}

	c.log.Info("cycle finished", zap.Int("claimed", res.Claimed), zap.Int("processed", res.Processed))
	return res, nil
}

type cycle struct {
	r         *Runner
	id        string
	token     string
	now       time.Time
	campaigns map[int]*model.Campaign
	steps     map[int][]model.Step
	sends     map[int]int
	log       *zap.Logger
}

// execute decides the outcome of one claimed enrollment. A returned error is a
// store failure; the claim is left to expire and the step runs again later.
func (c *cycle) execute(ctx context.Context, e *model.Enrollment) (model.EnrollmentUpdate, error) {
	upd := model.EnrollmentUpdate{
		ID:            e.ID,
		ClaimToken:    c.token,
		Status:        model.EnrollmentActive,
		CurrentStepID: e.CurrentStepID,
		NextRunAt:     c.now,
		LastRunAt:     c.now,
	}
	stepID := 0
	if e.CurrentStepID != nil {
		stepID = *e.CurrentStepID
	}

	lead, err := c.r.Leads.GetByID(ctx, e.OrganizationID, e.ContactID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return c.fail(upd, stepID, "lead not found"), nil
		}
		return upd, err
	}
	if lead.OptedOut {
		upd.Status = model.EnrollmentCancelled
		upd.Append = []model.LogEntry{c.entry(model.LogCancelled, stepID, "lead opted out")}
		return upd, nil
	}

	campaign, err := c.campaign(ctx, e)
	if err != nil {
		return upd, err
	}
	steps, err := c.sequenceSteps(ctx, e.SequenceID)
	if err != nil {
		return upd, err
	}
	idx := -1
	for i := range steps {
		if steps[i].ID == stepID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return c.fail(upd, stepID, "current step not found"), nil
	}

	step := steps[idx]
	switch step.Type {
	case model.StepMessage:
		return c.message(ctx, e, lead, campaign, steps, idx, upd)
	case model.StepDelay:
		if last := e.ExecutionLogs.Last(); last != nil && last.Kind == model.LogDelayed && last.StepID == step.ID {
			return c.advance(steps, idx+1, upd), nil
		}
		return c.enter(step, upd), nil
	case model.StepCondition:
		return c.condition(lead, steps, idx, upd), nil
	default:
		return c.fail(upd, step.ID, fmt.Sprintf("unknown step type %q", step.Type)), nil
	}
}

func (c *cycle) message(ctx context.Context, e *model.Enrollment, lead *model.Lead, campaign *model.Campaign, steps []model.Step, idx int, upd model.EnrollmentUpdate) (model.EnrollmentUpdate, error) {
	step := steps[idx]
	cfg := campaign.DeliveryConfig

	if !c.r.Pacing.IsPermissible(c.now, cfg) {
		upd.NextRunAt = c.r.Pacing.NextPermissible(c.now, cfg)
		upd.Append = []model.LogEntry{c.entry(model.LogDeferred, step.ID, "outside business hours")}
		return upd, nil
	}
	profile := c.r.Pacing.Profiles.For(cfg.Mode)
	if c.sends[campaign.ID] >= profile.MaxSendsPerCycle {
		upd.NextRunAt = c.now.Add(profile.Spacing)
		upd.Append = []model.LogEntry{c.entry(model.LogDeferred, step.ID, "throughput")}
		return upd, nil
	}

	to := recipientFor(step.Channel, lead)
	if to == "" {
		return c.fail(upd, step.ID, fmt.Sprintf("lead has no address for channel %q", step.Channel)), nil
	}

	c.sends[campaign.ID]++
	msg := model.OutboundMessage{
		IdempotencyKey: fmt.Sprintf("enr-%d-step-%d-%d", e.ID, step.ID, len(e.ExecutionLogs)),
		OrganizationID: e.OrganizationID,
		LeadID:         lead.ID,
		EnrollmentID:   e.ID,
		Channel:        step.Channel,
		To:             to,
		Body:           RenderForLead(step.Content, lead),
		Humanize:       cfg.Humanize,
		Mode:           cfg.Mode,
		CreatedAt:      c.now,
	}
	if err := c.r.Sender.Send(ctx, msg); err != nil {
		if ctx.Err() != nil {
			// Cancelled mid-send: leave the claim to expire and retry the step.
			return upd, ctx.Err()
		}
		return c.fail(upd, step.ID, err.Error()), nil
	}

	upd.Append = []model.LogEntry{c.entry(model.LogSent, step.ID, "sent via "+step.Channel)}
	return c.advance(steps, idx+1, upd), nil
}

func (c *cycle) condition(lead *model.Lead, steps []model.Step, idx int, upd model.EnrollmentUpdate) model.EnrollmentUpdate {
	step := steps[idx]
	cond := step.Config.Condition
	if cond == nil {
		return c.fail(upd, step.ID, "condition step has no predicate")
	}

	matched := cond.Filter.Matches(lead)
	target := cond.OnFalse
	if matched {
		target = cond.OnTrue
	}
	if target == nil {
		upd.Append = []model.LogEntry{c.entry(model.LogBranched, step.ID, fmt.Sprintf("condition %t: next step", matched))}
		return c.advance(steps, idx+1, upd)
	}
	if *target == step.OrderIndex {
		return c.fail(upd, step.ID, fmt.Sprintf("condition branches to itself (order_index %d)", *target))
	}

	for i := range steps {
		if steps[i].OrderIndex == *target {
			upd.Append = []model.LogEntry{c.entry(model.LogBranched, step.ID, fmt.Sprintf("condition %t: order_index %d", matched, *target))}
			return c.enter(steps[i], upd)
		}
	}
	return c.fail(upd, step.ID, fmt.Sprintf("condition target order_index %d not found", *target))
}

// advance moves the cursor to steps[next], completing the enrollment when
// there is none.
func (c *cycle) advance(steps []model.Step, next int, upd model.EnrollmentUpdate) model.EnrollmentUpdate {
	if next >= len(steps) {
		upd.Status = model.EnrollmentCompleted
		upd.Append = append(upd.Append, c.entry(model.LogCompleted, 0, "sequence finished"))
		return upd
	}
	return c.enter(steps[next], upd)
}

// enter points the cursor at step. Entering a delay starts its wait.
func (c *cycle) enter(step model.Step, upd model.EnrollmentUpdate) model.EnrollmentUpdate {
	id := step.ID
	upd.CurrentStepID = &id
	upd.NextRunAt = c.now
	if step.Type == model.StepDelay {
		wait := time.Duration(0)
		if step.Config.Delay != nil {
			wait = step.Config.Delay.Interval()
		}
		upd.NextRunAt = c.now.Add(wait)
		upd.Append = append(upd.Append, c.entry(model.LogDelayed, step.ID, "waiting "+wait.String()))
	}
	return upd
}

func (c *cycle) fail(upd model.EnrollmentUpdate, stepID int, reason string) model.EnrollmentUpdate {
	upd.Status = model.EnrollmentFailed
	entry := c.entry(model.LogFailed, stepID, "")
	entry.Error = reason
	upd.Append = append(upd.Append, entry)
	return upd
}

func (c *cycle) entry(kind model.LogKind, stepID int, detail string) model.LogEntry {
	return model.LogEntry{ID: uuid.NewString(), At: c.now, Kind: kind, StepID: stepID, Detail: detail}
}

func (c *cycle) campaign(ctx context.Context, e *model.Enrollment) (*model.Campaign, error) {
	if camp, ok := c.campaigns[e.CampaignID]; ok {
		return camp, nil
	}
	camp, err := c.r.CampaignRepo.GetByID(ctx, e.OrganizationID, e.CampaignID)
	if err != nil {
		return nil, err
	}
	c.campaigns[e.CampaignID] = camp
	return camp, nil
}

func (c *cycle) sequenceSteps(ctx context.Context, sequenceID int) ([]model.Step, error) {
	if steps, ok := c.steps[sequenceID]; ok {
		return steps, nil
	}
	steps, err := c.r.Sequences.Steps(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	c.steps[sequenceID] = steps
	return steps, nil
}
