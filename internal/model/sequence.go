// internal/model/sequence.go
package model

import (
	"database/sql/driver"
	"time"
)

type StepType string

const (
	StepMessage   StepType = "message"
	StepDelay     StepType = "delay"
	StepCondition StepType = "condition"
)

type Sequence struct {
	ID          int       `db:"id" json:"id"`
	CampaignID  int       `db:"campaign_id" json:"campaign_id"`
	Name        string    `db:"name" json:"name"`
	TriggerType string    `db:"trigger_type" json:"trigger_type"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DelayConfig is a wait of Duration units.
type DelayConfig struct {
	Duration int    `json:"duration"`
	Unit     string `json:"unit"` // minutes, hours, days
}

// Interval converts the config to a time.Duration. Unknown units count as days.
func (d DelayConfig) Interval() time.Duration {
	n := time.Duration(d.Duration)
	switch d.Unit {
	case "minute", "minutes":
		return n * time.Minute
	case "hour", "hours":
		return n * time.Hour
	default:
		return n * 24 * time.Hour
	}
}

// ConditionConfig branches on a lead predicate. OnTrue/OnFalse are target
// order indexes; nil falls through to the next step.
type ConditionConfig struct {
	Filter  Filter `json:"filter"`
	OnTrue  *int   `json:"on_true,omitempty"`
	OnFalse *int   `json:"on_false,omitempty"`
}

// StepConfig is the jsonb payload stored next to a step.
type StepConfig struct {
	Delay     *DelayConfig     `json:"delay,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty"`
}

func (c StepConfig) Value() (driver.Value, error) { return jsonValue(c) }

func (c *StepConfig) Scan(src any) error { return scanJSON(src, c) }

type Step struct {
	ID         int        `db:"id" json:"id"`
	SequenceID int        `db:"sequence_id" json:"sequence_id"`
	Type       StepType   `db:"type" json:"type"`
	OrderIndex int        `db:"order_index" json:"order_index"`
	Channel    string     `db:"channel" json:"channel,omitempty"`
	Content    string     `db:"content" json:"content,omitempty"`
	Config     StepConfig `db:"config" json:"config"`
}
