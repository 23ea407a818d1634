// internal/model/campaign.go
package model

import (
	"database/sql/driver"
	"time"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignArchived  CampaignStatus = "archived"
)

// DeliveryMode selects a throughput profile in the pacing package.
type DeliveryMode string

const (
	ModeStealth DeliveryMode = "stealth"
	ModeGrowth  DeliveryMode = "growth"
	ModeTurbo   DeliveryMode = "turbo"
)

// BusinessHours is a local-time send window, "HH:MM" each, end exclusive.
type BusinessHours struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// DeliveryConfig is the per-campaign pacing input.
type DeliveryConfig struct {
	Mode          DeliveryMode  `json:"mode,omitempty"`
	Humanize      bool          `json:"humanize"`
	BusinessHours BusinessHours `json:"business_hours"`
	Timezone      string        `json:"timezone,omitempty"`
}

func (c DeliveryConfig) Value() (driver.Value, error) { return jsonValue(c) }

func (c *DeliveryConfig) Scan(src any) error { return scanJSON(src, c) }

type Campaign struct {
	ID              int            `db:"id" json:"id"`
	OrganizationID  int            `db:"organization_id" json:"organization_id"`
	Name            string         `db:"name" json:"name"`
	Status          CampaignStatus `db:"status" json:"status"`
	AudienceID      *int           `db:"audience_id" json:"audience_id,omitempty"`
	ScheduledFor    *time.Time     `db:"scheduled_for" json:"scheduled_for,omitempty"`
	DeliveryConfig  DeliveryConfig `db:"delivery_config" json:"delivery_config"`
	TotalEnrolled   int            `db:"total_enrolled" json:"total_enrolled"`
	TotalCompleted  int            `db:"total_completed" json:"total_completed"`
	EngagementScore float64        `db:"engagement_score" json:"engagement_score"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}
