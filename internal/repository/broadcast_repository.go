package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

type BroadcastRepositoryInterface interface {
	Create(ctx context.Context, b *model.Broadcast) error
	GetByID(ctx context.Context, orgID, id int) (*model.Broadcast, error)
	// Transition moves the broadcast to `to` only from one of `from`.
	Transition(ctx context.Context, id int, from []model.BroadcastStatus, to model.BroadcastStatus, at time.Time) (bool, error)
	RecordResult(ctx context.Context, id, sent, failed int, status model.BroadcastStatus, at time.Time) error
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]model.Broadcast, error)
}

type BroadcastRepository struct {
	DB *sql.DB
}

const broadcastColumns = `id, organization_id, name, message, channel, filters, status, total, sent, delivered,
    read, failed, scheduled_at, sent_at, completed_at, created_at`

func scanBroadcast(row interface{ Scan(...any) error }, b *model.Broadcast) error {
	return row.Scan(
		&b.ID, &b.OrganizationID, &b.Name, &b.Message, &b.Channel, &b.Filters, &b.Status, &b.Total, &b.Sent,
		&b.Delivered, &b.Read, &b.Failed, &b.ScheduledAt, &b.SentAt, &b.CompletedAt, &b.CreatedAt,
	)
}

func (r *BroadcastRepository) Create(ctx context.Context, b *model.Broadcast) error {
	b.CreatedAt = time.Now()
	query := `
        INSERT INTO broadcasts (organization_id, name, message, channel, filters, status, total, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query,
		b.OrganizationID, b.Name, b.Message, b.Channel, b.Filters, b.Status, b.Total, b.ScheduledAt, b.CreatedAt,
	).Scan(&b.ID)
}

func (r *BroadcastRepository) GetByID(ctx context.Context, orgID, id int) (*model.Broadcast, error) {
	query := `SELECT ` + broadcastColumns + ` FROM broadcasts WHERE organization_id = $1 AND id = $2`
	var b model.Broadcast
	if err := scanBroadcast(r.DB.QueryRowContext(ctx, query, orgID, id), &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewBroadcastNotFound(id)
		}
		return nil, err
	}
	return &b, nil
}

func (r *BroadcastRepository) Transition(ctx context.Context, id int, from []model.BroadcastStatus, to model.BroadcastStatus, at time.Time) (bool, error) {
	fromStr := make([]string, len(from))
	for i, s := range from {
		fromStr[i] = string(s)
	}
	query := `
        UPDATE broadcasts
        SET status = $1, sent_at = CASE WHEN $1 = 'sending' THEN $2 ELSE sent_at END
        WHERE id = $3 AND status = ANY($4::text[])
    `
	res, err := r.DB.ExecContext(ctx, query, to, at, id, pq.Array(fromStr))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *BroadcastRepository) RecordResult(ctx context.Context, id, sent, failed int, status model.BroadcastStatus, at time.Time) error {
	query := `
        UPDATE broadcasts
        SET sent = $1, failed = $2, status = $3, completed_at = $4
        WHERE id = $5 AND status = 'sending'
    `
	_, err := r.DB.ExecContext(ctx, query, sent, failed, status, at, id)
	return err
}

func (r *BroadcastRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]model.Broadcast, error) {
	query := `SELECT ` + broadcastColumns + `
        FROM broadcasts
        WHERE status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
        ORDER BY scheduled_at ASC
        LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Broadcast{}
	for rows.Next() {
		var b model.Broadcast
		if err := scanBroadcast(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

var _ BroadcastRepositoryInterface = (*BroadcastRepository)(nil)
