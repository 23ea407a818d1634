package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

type AudienceRepositoryInterface interface {
	Create(ctx context.Context, a *model.Audience) error
	GetByID(ctx context.Context, orgID, id int) (*model.Audience, error)
	UpdateCachedCount(ctx context.Context, id, count int, at time.Time) error
}

type AudienceRepository struct {
	DB *sql.DB
}

func (r *AudienceRepository) Create(ctx context.Context, a *model.Audience) error {
	if a.Type == "" {
		a.Type = model.AudienceDynamic
	}
	a.CreatedAt = time.Now()
	query := `
        INSERT INTO audiences (organization_id, name, type, filter_config, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query, a.OrganizationID, a.Name, a.Type, a.FilterConfig, a.CreatedAt).Scan(&a.ID)
}

func (r *AudienceRepository) GetByID(ctx context.Context, orgID, id int) (*model.Audience, error) {
	query := `
        SELECT id, organization_id, name, type, filter_config, cached_count, last_count_at, created_at
        FROM audiences WHERE organization_id = $1 AND id = $2
    `
	var a model.Audience
	err := r.DB.QueryRowContext(ctx, query, orgID, id).Scan(
		&a.ID, &a.OrganizationID, &a.Name, &a.Type, &a.FilterConfig, &a.CachedCount, &a.LastCountAt, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewAudienceNotFound(id)
		}
		return nil, err
	}
	return &a, nil
}

func (r *AudienceRepository) UpdateCachedCount(ctx context.Context, id, count int, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE audiences SET cached_count = $1, last_count_at = $2 WHERE id = $3`, count, at, id)
	return err
}

var _ AudienceRepositoryInterface = (*AudienceRepository)(nil)
