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

// LeadRepositoryInterface is the slice of the lead store this service consumes.
type LeadRepositoryInterface interface {
	QueryLeads(ctx context.Context, orgID int, f model.Filter) ([]int, error)
	CountLeads(ctx context.Context, orgID int, f model.Filter) (int, error)
	GetByID(ctx context.Context, orgID, id int) (*model.Lead, error)
	ListIDs(ctx context.Context, orgID int) ([]int, error)
	ScoringSignals(ctx context.Context, leadID int) (model.ScoringSignals, error)
	UpdateScore(ctx context.Context, orgID, id, score int) error
	SetOptedOut(ctx context.Context, orgID, id int, at time.Time) (bool, error)
}

type LeadRepository struct {
	DB *sql.DB
}

const leadColumns = `id, organization_id, name, company, status, COALESCE(phone, ''), COALESCE(email, ''),
    tags, score, source, assigned_to, opted_out, opted_out_at, last_contact_at, last_activity_at,
    created_at, updated_at`

// QueryLeads returns matching lead ids in ascending order so identical inputs
// give identical output.
func (r *LeadRepository) QueryLeads(ctx context.Context, orgID int, f model.Filter) ([]int, error) {
	where, args := leadWhere(orgID, f)
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM leads WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *LeadRepository) CountLeads(ctx context.Context, orgID int, f model.Filter) (int, error) {
	where, args := leadWhere(orgID, f)
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE `+where, args...).Scan(&n)
	return n, err
}

func (r *LeadRepository) GetByID(ctx context.Context, orgID, id int) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE organization_id = $1 AND id = $2`
	var l model.Lead
	err := r.DB.QueryRowContext(ctx, query, orgID, id).Scan(
		&l.ID, &l.OrganizationID, &l.Name, &l.Company, &l.Status, &l.Phone, &l.Email,
		pq.Array(&l.Tags), &l.Score, &l.Source, &l.AssignedTo, &l.OptedOut, &l.OptedOutAt,
		&l.LastContactAt, &l.LastActivityAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewLeadNotFound(id)
		}
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepository) ListIDs(ctx context.Context, orgID int) ([]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM leads WHERE organization_id = $1 ORDER BY id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *LeadRepository) ScoringSignals(ctx context.Context, leadID int) (model.ScoringSignals, error) {
	query := `
        SELECT
            (SELECT COUNT(*) FROM lead_messages WHERE lead_id = $1),
            (SELECT COUNT(*) FROM tasks WHERE lead_id = $1 AND status = 'completed')
    `
	var s model.ScoringSignals
	err := r.DB.QueryRowContext(ctx, query, leadID).Scan(&s.MessageCount, &s.CompletedTaskCount)
	return s, err
}

// Score and opt-out writes leave updated_at alone: recency falls back to it
// when last_activity_at is unset.
const (
	updateScoreQuery = `UPDATE leads SET score = $1 WHERE organization_id = $2 AND id = $3`
	setOptedOutQuery = `
        UPDATE leads SET opted_out = TRUE, opted_out_at = $1
        WHERE organization_id = $2 AND id = $3 AND opted_out = FALSE`
)

func (r *LeadRepository) UpdateScore(ctx context.Context, orgID, id, score int) error {
	res, err := r.DB.ExecContext(ctx, updateScoreQuery, score, orgID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewLeadNotFound(id)
	}
	return nil
}

// SetOptedOut flips the flag once; it reports false when the lead was already
// opted out.
func (r *LeadRepository) SetOptedOut(ctx context.Context, orgID, id int, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, setOptedOutQuery, at, orgID, id)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, orgID, id); err != nil {
		return false, err
	}
	return false, nil
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
