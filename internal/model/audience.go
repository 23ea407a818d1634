// internal/model/audience.go
package model

import "time"

type AudienceType string

const (
	AudienceDynamic AudienceType = "dynamic"
	AudienceStatic  AudienceType = "static"
)

// Audience is a named filter. Dynamic audiences are resolved at enrollment
// time; CachedCount is only a display snapshot.
type Audience struct {
	ID             int          `db:"id" json:"id"`
	OrganizationID int          `db:"organization_id" json:"organization_id"`
	Name           string       `db:"name" json:"name"`
	Type           AudienceType `db:"type" json:"type"`
	FilterConfig   Filter       `db:"filter_config" json:"filter_config"`
	CachedCount    int          `db:"cached_count" json:"cached_count"`
	LastCountAt    *time.Time   `db:"last_count_at" json:"last_count_at,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}
