package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
)

// Score component caps.
const (
	maxProfileScore    = 20
	maxEngagementScore = 30
	maxTaskScore       = 15
)

var statusScores = map[string]int{
	"new":         0,
	"contacted":   3,
	"qualified":   8,
	"negotiation": 12,
	"won":         15,
	"lost":        0,
}

// ScoreBreakdown holds each additive component keyed by name.
type ScoreBreakdown map[string]int

type LeadScore struct {
	LeadID    int            `json:"lead_id"`
	Score     int            `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// ComputeScore is the pure scoring function. Each component is capped, so the
// sum stays within 0..100.
func ComputeScore(l *model.Lead, sig model.ScoringSignals, now time.Time) (int, ScoreBreakdown) {
	profile := 0
	for _, field := range []string{l.Name, l.Email, l.Phone, l.Company} {
		if field != "" {
			profile += 5
		}
	}

	engagement := min(max(sig.MessageCount, 0)*3, maxEngagementScore)
	tasks := min(max(sig.CompletedTaskCount, 0)*3, maxTaskScore)

	lastActivity := l.UpdatedAt
	if l.LastActivityAt != nil {
		lastActivity = *l.LastActivityAt
	}
	recency := 0
	switch age := now.Sub(lastActivity); {
	case age <= 3*24*time.Hour:
		recency = 20
	case age <= 7*24*time.Hour:
		recency = 15
	case age <= 14*24*time.Hour:
		recency = 10
	case age <= 30*24*time.Hour:
		recency = 5
	}

	status := statusScores[l.Status]

	b := ScoreBreakdown{
		"profile":    min(profile, maxProfileScore),
		"engagement": engagement,
		"recency":    recency,
		"tasks":      tasks,
		"status":     status,
	}
	total := 0
	for _, v := range b {
		total += v
	}
	return total, b
}

type ScoringService struct {
	Leads repository.LeadRepositoryInterface
	Log   *zap.Logger
	Now   func() time.Time
	// Concurrency bounds ScoreAll fan-out. Zero means 8.
	Concurrency int
}

// ScoreLead recomputes and persists one lead's score.
func (s *ScoringService) ScoreLead(ctx context.Context, orgID, leadID int) (*LeadScore, error) {
	lead, err := s.Leads.GetByID(ctx, orgID, leadID)
	if err != nil {
		return nil, err
	}
	sig, err := s.Leads.ScoringSignals(ctx, leadID)
	if err != nil {
		return nil, err
	}
	score, breakdown := ComputeScore(lead, sig, nowFrom(s.Now))
	if err := s.Leads.UpdateScore(ctx, orgID, leadID, score); err != nil {
		return nil, err
	}
	return &LeadScore{LeadID: leadID, Score: score, Breakdown: breakdown}, nil
}

type BatchScoreResult struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// ScoreAll rescores every lead of the organization. A failing lead is logged
// and skipped; only listing the leads can fail the whole batch.
func (s *ScoringService) ScoreAll(ctx context.Context, orgID int) (*BatchScoreResult, error) {
	log := logger.OrNop(s.Log).With(zap.Int("organization_id", orgID))

	ids, err := s.Leads.ListIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}

	limit := s.Concurrency
	if limit <= 0 {
		limit = 8
	}
	var updated, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := s.ScoreLead(gctx, orgID, id); err != nil {
				failed.Add(1)
				log.Warn("score lead failed", zap.Int("lead_id", id), zap.Error(err))
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchScoreResult{Updated: int(updated.Load()), Failed: int(failed.Load())}
	log.Info("batch scoring finished", zap.Int("updated", res.Updated), zap.Int("failed", res.Failed))
	return res, nil
}
