// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Audiences    repository.AudienceRepositoryInterface
	Enrollments  repository.EnrollmentRepositoryInterface
	RecentLimit  int
	Log          *zap.Logger
	Now          func() time.Time
}

type CreateCampaignInput struct {
	Name           string               `json:"name"`
	AudienceID     *int                 `json:"audience_id,omitempty"`
	ScheduledFor   *time.Time           `json:"scheduled_for,omitempty"`
	DeliveryConfig model.DeliveryConfig `json:"delivery_config"`
}

// RecentEnrollment is one row of the stats feed.
type RecentEnrollment struct {
	ID        int                    `json:"id"`
	Status    model.EnrollmentStatus `json:"status"`
	LeadID    int                    `json:"lead_id"`
	UpdatedAt time.Time              `json:"updated_at"`
	LastLog   *model.LogEntry        `json:"last_log,omitempty"`
}

type CampaignDetails struct {
	ID              int                  `json:"id"`
	Name            string               `json:"name"`
	Status          model.CampaignStatus `json:"status"`
	AudienceID      *int                 `json:"audience_id,omitempty"`
	ScheduledFor    *time.Time           `json:"scheduled_for,omitempty"`
	DeliveryConfig  model.DeliveryConfig `json:"delivery_config"`
	TotalEnrolled   int                  `json:"total_enrolled"`
	TotalCompleted  int                  `json:"total_completed"`
	EngagementScore float64              `json:"engagement_score"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       *time.Time           `json:"updated_at"`
	Stats           map[string]int       `json:"stats"`
	Recent          []RecentEnrollment   `json:"recent"`
}

// transitions lists the statuses each manual action may start from. Draft to
// active happens only through enrollment.
var transitions = map[model.CampaignStatus][]model.CampaignStatus{
	model.CampaignPaused:    {model.CampaignActive},
	model.CampaignActive:    {model.CampaignPaused},
	model.CampaignCompleted: {model.CampaignActive, model.CampaignPaused},
	model.CampaignArchived:  {model.CampaignDraft, model.CampaignActive, model.CampaignPaused, model.CampaignCompleted},
}

func (s *CampaignService) CreateCampaign(ctx context.Context, orgID int, in CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("campaign name is required: %w", appErrors.ErrInvalidArgument)
	}
	switch in.DeliveryConfig.Mode {
	case "":
		in.DeliveryConfig.Mode = model.ModeGrowth
	case model.ModeStealth, model.ModeGrowth, model.ModeTurbo:
	default:
		return nil, fmt.Errorf("unknown delivery mode %q: %w", in.DeliveryConfig.Mode, appErrors.ErrInvalidArgument)
	}
	if in.AudienceID != nil {
		if _, err := s.Audiences.GetByID(ctx, orgID, *in.AudienceID); err != nil {
			return nil, err
		}
	}

	c := &model.Campaign{
		OrganizationID: orgID,
		Name:           in.Name,
		Status:         model.CampaignDraft,
		AudienceID:     in.AudienceID,
		ScheduledFor:   in.ScheduledFor,
		DeliveryConfig: in.DeliveryConfig,
	}
	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	logger.OrNop(s.Log).Info("campaign created", zap.Int("organization_id", orgID), zap.Int("campaign_id", c.ID))
	return c, nil
}

// LinkAudience attaches an audience of the same organization.
func (s *CampaignService) LinkAudience(ctx context.Context, orgID, campaignID, audienceID int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status == model.CampaignCompleted || c.Status == model.CampaignArchived {
		return nil, fmt.Errorf("link audience to %s campaign: %w", c.Status, appErrors.ErrInvalidTransition)
	}
	if _, err := s.Audiences.GetByID(ctx, orgID, audienceID); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.SetAudience(ctx, campaignID, audienceID); err != nil {
		return nil, err
	}
	c.AudienceID = &audienceID
	return c, nil
}

func (s *CampaignService) Pause(ctx context.Context, orgID, id int) (*model.Campaign, error) {
	return s.transition(ctx, orgID, id, model.CampaignPaused)
}

func (s *CampaignService) Resume(ctx context.Context, orgID, id int) (*model.Campaign, error) {
	return s.transition(ctx, orgID, id, model.CampaignActive)
}

func (s *CampaignService) Complete(ctx context.Context, orgID, id int) (*model.Campaign, error) {
	return s.transition(ctx, orgID, id, model.CampaignCompleted)
}

func (s *CampaignService) Archive(ctx context.Context, orgID, id int) (*model.Campaign, error) {
	return s.transition(ctx, orgID, id, model.CampaignArchived)
}

func (s *CampaignService) transition(ctx context.Context, orgID, id int, to model.CampaignStatus) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(transitions[to], c.Status) {
		return nil, fmt.Errorf("campaign %d %s -> %s: %w", id, c.Status, to, appErrors.ErrInvalidTransition)
	}
	if err := s.CampaignRepo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	logger.OrNop(s.Log).Info("campaign status changed",
		zap.Int("campaign_id", id), zap.String("from", string(c.Status)), zap.String("to", string(to)))
	c.Status = to
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, orgID, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, orgID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetails fetches a campaign by ID
func (s *CampaignService) GetCampaignDetails(ctx context.Context, orgID, id int) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(ctx, orgID, id)
}

// GetCampaignDetailsWithStats adds enrollment counts by status and the most
// recently updated enrollments.
func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, orgID, campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}

	counts, err := s.Enrollments.StatusCounts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats := map[string]int{
		"total":     0,
		"active":    0,
		"completed": 0,
		"failed":    0,
		"cancelled": 0,
	}
	for status, n := range counts {
		stats[string(status)] = n
		stats["total"] += n
	}

	limit := s.RecentLimit
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Enrollments.RecentlyUpdated(ctx, campaignID, limit)
	if err != nil {
		return nil, err
	}
	recent := make([]RecentEnrollment, 0, len(rows))
	for _, e := range rows {
		recent = append(recent, RecentEnrollment{
			ID:        e.ID,
			Status:    e.Status,
			LeadID:    e.ContactID,
			UpdatedAt: e.UpdatedAt,
			LastLog:   e.ExecutionLogs.Last(),
		})
	}

	return &CampaignDetails{
		ID:              campaign.ID,
		Name:            campaign.Name,
		Status:          campaign.Status,
		AudienceID:      campaign.AudienceID,
		ScheduledFor:    campaign.ScheduledFor,
		DeliveryConfig:  campaign.DeliveryConfig,
		TotalEnrolled:   campaign.TotalEnrolled,
		TotalCompleted:  campaign.TotalCompleted,
		EngagementScore: campaign.EngagementScore,
		CreatedAt:       campaign.CreatedAt,
		UpdatedAt:       campaign.UpdatedAt,
		Stats:           stats,
		Recent:          recent,
	}, nil
}
