package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

type EnrollmentRepositoryInterface interface {
	// ContactIDs lists contacts of the campaign whose enrollment is in one of the
	// given statuses.
	ContactIDs(ctx context.Context, campaignID int, statuses []model.EnrollmentStatus) ([]int, error)
	// BulkInsert skips rows that collide with a live enrollment and returns the
	// number actually inserted.
	BulkInsert(ctx context.Context, rows []model.Enrollment) (int, error)
	// ClaimDue atomically takes up to limit due enrollments of active campaigns,
	// pushing next_run_at to leaseUntil and stamping token. orgID 0 means all
	// organizations.
	ClaimDue(ctx context.Context, orgID int, now, leaseUntil time.Time, limit int, token string) ([]model.Enrollment, error)
	// Finish applies a step outcome only if the row is still active and held by
	// the token. It reports whether the update applied.
	Finish(ctx context.Context, u model.EnrollmentUpdate) (bool, error)
	CancelActiveForLead(ctx context.Context, orgID, leadID int, entry model.LogEntry) (int, error)
	StatusCounts(ctx context.Context, campaignID int) (map[model.EnrollmentStatus]int, error)
	RecentlyUpdated(ctx context.Context, campaignID, limit int) ([]model.Enrollment, error)
}

type EnrollmentRepository struct {
	DB *sql.DB
}

const enrollmentColumns = `id, organization_id, campaign_id, sequence_id, contact_id, current_step_id, status,
    next_run_at, last_run_at, claim_token, execution_logs, created_at, updated_at`

func scanEnrollment(row interface{ Scan(...any) error }, e *model.Enrollment) error {
	return row.Scan(
		&e.ID, &e.OrganizationID, &e.CampaignID, &e.SequenceID, &e.ContactID, &e.CurrentStepID, &e.Status,
		&e.NextRunAt, &e.LastRunAt, &e.ClaimToken, &e.ExecutionLogs, &e.CreatedAt, &e.UpdatedAt,
	)
}

func statusStrings(statuses []model.EnrollmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *EnrollmentRepository) ContactIDs(ctx context.Context, campaignID int, statuses []model.EnrollmentStatus) ([]int, error) {
	query := `SELECT DISTINCT contact_id FROM enrollments WHERE campaign_id = $1 AND status = ANY($2::text[])`
	rows, err := r.DB.QueryContext(ctx, query, campaignID, pq.Array(statusStrings(statuses)))
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

const insertChunk = 500

func (r *EnrollmentRepository) BulkInsert(ctx context.Context, rows []model.Enrollment) (int, error) {
	inserted := 0
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		chunk := rows[start:end]

		values := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*8)
		for i, e := range chunk {
			p := i * 8
			values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, '[]', NOW(), NOW())",
				p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8))
			args = append(args, e.OrganizationID, e.CampaignID, e.SequenceID, e.ContactID,
				e.CurrentStepID, e.Status, e.NextRunAt, "")
		}

		query := `
            INSERT INTO enrollments (organization_id, campaign_id, sequence_id, contact_id, current_step_id,
                status, next_run_at, claim_token, execution_logs, created_at, updated_at)
            VALUES ` + strings.Join(values, ", ") + `
            ON CONFLICT (campaign_id, contact_id) WHERE status IN ('active', 'completed') DO NOTHING
        `
		res, err := r.DB.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, err
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	return inserted, nil
}

// ClaimDue uses FOR UPDATE SKIP LOCKED so overlapping cycles never take the
// same row; the lease moves next_run_at out of the due window until Finish.
func (r *EnrollmentRepository) ClaimDue(ctx context.Context, orgID int, now, leaseUntil time.Time, limit int, token string) ([]model.Enrollment, error) {
	query := `
        WITH due AS (
            SELECT e.id
            FROM enrollments e
            JOIN campaigns c ON c.id = e.campaign_id
            WHERE e.status = 'active'
              AND e.next_run_at <= $1
              AND c.status = 'active'
              AND ($2::int = 0 OR e.organization_id = $2::int)
            ORDER BY e.next_run_at, e.id
            LIMIT $3
            FOR UPDATE OF e SKIP LOCKED
        )
        UPDATE enrollments AS e
        SET next_run_at = $4, claim_token = $5, updated_at = $1
        FROM due
        WHERE e.id = due.id
        RETURNING ` + prefixed("e.", enrollmentColumns)

	rows, err := r.DB.QueryContext(ctx, query, now, orgID, limit, leaseUntil, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Enrollment{}
	for rows.Next() {
		var e model.Enrollment
		if err := scanEnrollment(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EnrollmentRepository) Finish(ctx context.Context, u model.EnrollmentUpdate) (bool, error) {
	appendLogs := u.Append
	if appendLogs == nil {
		appendLogs = []model.LogEntry{}
	}
	logs, err := json.Marshal(appendLogs)
	if err != nil {
		return false, err
	}
	query := `
        UPDATE enrollments
        SET status = $1, current_step_id = $2, next_run_at = $3, last_run_at = $4,
            claim_token = '', execution_logs = execution_logs || $5::jsonb, updated_at = $4
        WHERE id = $6 AND status = 'active' AND claim_token = $7
    `
	res, err := r.DB.ExecContext(ctx, query, u.Status, u.CurrentStepID, u.NextRunAt, u.LastRunAt, string(logs), u.ID, u.ClaimToken)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *EnrollmentRepository) CancelActiveForLead(ctx context.Context, orgID, leadID int, entry model.LogEntry) (int, error) {
	logs, err := json.Marshal([]model.LogEntry{entry})
	if err != nil {
		return 0, err
	}
	query := `
        UPDATE enrollments
        SET status = 'cancelled', claim_token = '', execution_logs = execution_logs || $1::jsonb, updated_at = $2
        WHERE organization_id = $3 AND contact_id = $4 AND status = 'active'
    `
	res, err := r.DB.ExecContext(ctx, query, string(logs), entry.At, orgID, leadID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *EnrollmentRepository) StatusCounts(ctx context.Context, campaignID int) (map[model.EnrollmentStatus]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM enrollments WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[model.EnrollmentStatus]int{
		model.EnrollmentActive:    0,
		model.EnrollmentCompleted: 0,
		model.EnrollmentFailed:    0,
		model.EnrollmentCancelled: 0,
	}
	for rows.Next() {
		var status model.EnrollmentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func (r *EnrollmentRepository) RecentlyUpdated(ctx context.Context, campaignID, limit int) ([]model.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE campaign_id = $1 ORDER BY updated_at DESC, id DESC LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Enrollment{}
	for rows.Next() {
		var e model.Enrollment
		if err := scanEnrollment(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

var _ EnrollmentRepositoryInterface = (*EnrollmentRepository)(nil)
