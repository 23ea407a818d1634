// internal/model/lead.go
package model

import "time"

// Lead is a CRM contact. The lead store is owned elsewhere; this service only
// writes Score and the opt-out fields.
type Lead struct {
	ID             int        `db:"id" json:"id"`
	OrganizationID int        `db:"organization_id" json:"organization_id"`
	Name           string     `db:"name" json:"name"`
	Company        string     `db:"company" json:"company,omitempty"`
	Status         string     `db:"status" json:"status"`
	Phone          string     `db:"phone" json:"phone,omitempty"`
	Email          string     `db:"email" json:"email,omitempty"`
	Tags           []string   `db:"tags" json:"tags"`
	Score          *int       `db:"score" json:"score,omitempty"`
	Source         string     `db:"source" json:"source,omitempty"`
	AssignedTo     string     `db:"assigned_to" json:"assigned_to,omitempty"`
	OptedOut       bool       `db:"opted_out" json:"opted_out"`
	OptedOutAt     *time.Time `db:"opted_out_at" json:"opted_out_at,omitempty"`
	LastContactAt  *time.Time `db:"last_contact_at" json:"last_contact_at,omitempty"`
	LastActivityAt *time.Time `db:"last_activity_at" json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// FirstName is the first whitespace-separated token of Name.
func (l *Lead) FirstName() string {
	for i, r := range l.Name {
		if r == ' ' {
			return l.Name[:i]
		}
	}
	return l.Name
}

// ScoringSignals are the per-lead counters the scoring engine reads besides the lead row.
type ScoringSignals struct {
	MessageCount       int
	CompletedTaskCount int
}
