package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/unclebandit/smsleopard-sequencer/internal/db"
	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

type SequenceRepositoryInterface interface {
	CreateSequence(ctx context.Context, s *model.Sequence) error
	GetSequence(ctx context.Context, id int) (*model.Sequence, error)
	AddStep(ctx context.Context, st *model.Step) error
	ActiveSequence(ctx context.Context, campaignID int) (*model.Sequence, error)
	Activate(ctx context.Context, campaignID, sequenceID int) error
	Steps(ctx context.Context, sequenceID int) ([]model.Step, error)
}

type SequenceRepository struct {
	DB *sql.DB
}

func (r *SequenceRepository) CreateSequence(ctx context.Context, s *model.Sequence) error {
	s.CreatedAt = time.Now()
	query := `
        INSERT INTO sequences (campaign_id, name, trigger_type, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query, s.CampaignID, s.Name, s.TriggerType, s.IsActive, s.CreatedAt).Scan(&s.ID)
}

func (r *SequenceRepository) GetSequence(ctx context.Context, id int) (*model.Sequence, error) {
	query := `
        SELECT id, campaign_id, name, trigger_type, is_active, created_at
        FROM sequences WHERE id = $1
    `
	var s model.Sequence
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.CampaignID, &s.Name, &s.TriggerType, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewSequenceNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SequenceRepository) AddStep(ctx context.Context, st *model.Step) error {
	query := `
        INSERT INTO sequence_steps (sequence_id, type, order_index, channel, content, config)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query, st.SequenceID, st.Type, st.OrderIndex, st.Channel, st.Content, st.Config).Scan(&st.ID)
	if db.IsUniqueViolation(err) {
		return appErrors.ErrInvalidArgument
	}
	return err
}

// ActiveSequence returns nil, nil when the campaign has no active sequence.
func (r *SequenceRepository) ActiveSequence(ctx context.Context, campaignID int) (*model.Sequence, error) {
	query := `
        SELECT id, campaign_id, name, trigger_type, is_active, created_at
        FROM sequences WHERE campaign_id = $1 AND is_active
        ORDER BY id LIMIT 1
    `
	var s model.Sequence
	err := r.DB.QueryRowContext(ctx, query, campaignID).Scan(&s.ID, &s.CampaignID, &s.Name, &s.TriggerType, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Activate leaves exactly one active sequence for the campaign.
func (r *SequenceRepository) Activate(ctx context.Context, campaignID, sequenceID int) error {
	return db.WithTx(ctx, r.DB, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE sequences SET is_active = (id = $1) WHERE campaign_id = $2`, sequenceID, campaignID); err != nil {
			return err
		}
		var ok bool
		err := tx.QueryRowContext(ctx, `SELECT is_active FROM sequences WHERE id = $1 AND campaign_id = $2`, sequenceID, campaignID).Scan(&ok)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NewSequenceNotFound(sequenceID)
		}
		return err
	})
}

func (r *SequenceRepository) Steps(ctx context.Context, sequenceID int) ([]model.Step, error) {
	query := `
        SELECT id, sequence_id, type, order_index, channel, content, config
        FROM sequence_steps WHERE sequence_id = $1
        ORDER BY order_index
    `
	rows, err := r.DB.QueryContext(ctx, query, sequenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []model.Step{}
	for rows.Next() {
		var st model.Step
		if err := rows.Scan(&st.ID, &st.SequenceID, &st.Type, &st.OrderIndex, &st.Channel, &st.Content, &st.Config); err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

var _ SequenceRepositoryInterface = (*SequenceRepository)(nil)
