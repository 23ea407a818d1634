package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	ListCampaigns(ctx context.Context, orgID, offset, limit int, status string) ([]*model.Campaign, int, error)
	GetByID(ctx context.Context, orgID, id int) (*model.Campaign, error)
	Create(ctx context.Context, c *model.Campaign) error
	UpdateStatus(ctx context.Context, campaignID int, status model.CampaignStatus) error
	SetAudience(ctx context.Context, campaignID, audienceID int) error

	// Aggregates
	RecordEnrollment(ctx context.Context, campaignID, totalEnrolled int) error
	IncrementCompleted(ctx context.Context, campaignID int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, organization_id, name, status, audience_id, scheduled_for, delivery_config,
    total_enrolled, total_completed, engagement_score, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }, c *model.Campaign) error {
	return row.Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Status, &c.AudienceID, &c.ScheduledFor, &c.DeliveryConfig,
		&c.TotalEnrolled, &c.TotalCompleted, &c.EngagementScore, &c.CreatedAt, &c.UpdatedAt,
	)
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (organization_id, name, status, audience_id, scheduled_for, delivery_config, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query,
		c.OrganizationID, c.Name, c.Status, c.AudienceID, c.ScheduledFor, c.DeliveryConfig, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, campaignID int, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, status, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) SetAudience(ctx context.Context, campaignID, audienceID int) error {
	query := `UPDATE campaigns SET audience_id=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, audienceID, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, orgID, id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE organization_id=$1 AND id=$2`
	var c model.Campaign
	if err := scanCampaign(r.DB.QueryRowContext(ctx, query, orgID, id), &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, orgID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	where := ` WHERE organization_id=$1`
	args := []interface{}{orgID}
	argPos := 2

	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)

	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := scanCampaign(rows, c); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Count total
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// ====================== Aggregates ======================

// RecordEnrollment stores the size of the full resolved audience and marks
// a draft campaign active. A campaign paused or closed meanwhile keeps its
// status.
func (r *CampaignRepository) RecordEnrollment(ctx context.Context, campaignID, totalEnrolled int) error {
	query := `
        UPDATE campaigns
        SET total_enrolled = $1,
            status = CASE WHEN status = 'draft' THEN 'active' ELSE status END,
            updated_at = $2
        WHERE id = $3`
	_, err := r.DB.ExecContext(ctx, query, totalEnrolled, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) IncrementCompleted(ctx context.Context, campaignID int) error {
	query := `UPDATE campaigns SET total_completed=total_completed+1, updated_at=NOW() WHERE id=$1`
	_, err := r.DB.ExecContext(ctx, query, campaignID)
	return err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
