package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
	"github.com/unclebandit/smsleopard-sequencer/internal/repository"
)

// AudienceService resolves filters to lead ids. Opted-out leads are excluded
// by the lead store on every query.
type AudienceService struct {
	Leads     repository.LeadRepositoryInterface
	Audiences repository.AudienceRepositoryInterface
	Log       *zap.Logger
	Now       func() time.Time
}

// Resolve returns the matching lead ids in ascending order. No match is an
// empty slice, not an error.
func (s *AudienceService) Resolve(ctx context.Context, orgID int, f model.Filter) ([]int, error) {
	ids, err := s.Leads.QueryLeads(ctx, orgID, f)
	if err != nil {
		return nil, appErrors.NewResolution(orgID, err)
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

func (s *AudienceService) Count(ctx context.Context, orgID int, f model.Filter) (int, error) {
	n, err := s.Leads.CountLeads(ctx, orgID, f)
	if err != nil {
		return 0, appErrors.NewResolution(orgID, err)
	}
	return n, nil
}

// Preview counts the leads a filter would match right now.
func (s *AudienceService) Preview(ctx context.Context, orgID int, f model.Filter) (int, error) {
	return s.Count(ctx, orgID, f)
}

func (s *AudienceService) Create(ctx context.Context, orgID int, name string, typ model.AudienceType, f model.Filter) (*model.Audience, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("audience name is required: %w", appErrors.ErrInvalidArgument)
	}
	switch typ {
	case "":
		typ = model.AudienceDynamic
	case model.AudienceDynamic, model.AudienceStatic:
	default:
		return nil, fmt.Errorf("unknown audience type %q: %w", typ, appErrors.ErrInvalidArgument)
	}

	count, err := s.Count(ctx, orgID, f)
	if err != nil {
		return nil, err
	}
	now := nowFrom(s.Now)
	a := &model.Audience{
		OrganizationID: orgID,
		Name:           name,
		Type:           typ,
		FilterConfig:   f,
		CachedCount:    count,
		LastCountAt:    &now,
	}
	if err := s.Audiences.Create(ctx, a); err != nil {
		return nil, err
	}
	logger.OrNop(s.Log).Info("audience created", zap.Int("organization_id", orgID), zap.Int("audience_id", a.ID), zap.Int("count", count))
	return a, nil
}

func (s *AudienceService) Get(ctx context.Context, orgID, id int) (*model.Audience, error) {
	return s.Audiences.GetByID(ctx, orgID, id)
}

// RefreshCount recomputes the display-only cached count.
func (s *AudienceService) RefreshCount(ctx context.Context, orgID, id int) (*model.Audience, error) {
	a, err := s.Audiences.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	count, err := s.Count(ctx, orgID, a.FilterConfig)
	if err != nil {
		return nil, err
	}
	now := nowFrom(s.Now)
	if err := s.Audiences.UpdateCachedCount(ctx, id, count, now); err != nil {
		return nil, err
	}
	a.CachedCount = count
	a.LastCountAt = &now
	return a, nil
}
