// internal/model/broadcast.go
package model

import "time"

type BroadcastStatus string

const (
	BroadcastDraft     BroadcastStatus = "draft"
	BroadcastScheduled BroadcastStatus = "scheduled"
	BroadcastSending   BroadcastStatus = "sending"
	BroadcastCompleted BroadcastStatus = "completed"
	BroadcastFailed    BroadcastStatus = "failed"
)

// Broadcast is a one-shot single-message campaign. Recipients are snapshotted
// as a count at creation time, not as ids.
type Broadcast struct {
	ID             int             `db:"id" json:"id"`
	OrganizationID int             `db:"organization_id" json:"organization_id"`
	Name           string          `db:"name" json:"name"`
	Message        string          `db:"message" json:"message"`
	Channel        string          `db:"channel" json:"channel"`
	Filters        Filter          `db:"filters" json:"filters"`
	Status         BroadcastStatus `db:"status" json:"status"`
	Total          int             `db:"total" json:"total"`
	Sent           int             `db:"sent" json:"sent"`
	Delivered      int             `db:"delivered" json:"delivered"`
	Read           int             `db:"read" json:"read"`
	Failed         int             `db:"failed" json:"failed"`
	ScheduledAt    *time.Time      `db:"scheduled_at" json:"scheduled_at,omitempty"`
	SentAt         *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
