// internal/model/enrollment.go
package model

import (
	"database/sql/driver"
	"time"
)

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentFailed    EnrollmentStatus = "failed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentCompleted || s == EnrollmentFailed || s == EnrollmentCancelled
}

// LogKind tags an execution log entry. Runner and reporting share this set.
type LogKind string

const (
	LogSent      LogKind = "sent"
	LogDeferred  LogKind = "deferred"
	LogDelayed   LogKind = "delayed"
	LogBranched  LogKind = "branched"
	LogCompleted LogKind = "completed"
	LogFailed    LogKind = "failed"
	LogCancelled LogKind = "cancelled"
)

type LogEntry struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Kind   LogKind   `json:"kind"`
	StepID int       `json:"step_id,omitempty"`
	Detail string    `json:"detail,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// ExecutionLog is append-only and ordered by At.
type ExecutionLog []LogEntry

func (l ExecutionLog) Last() *LogEntry {
	if len(l) == 0 {
		return nil
	}
	e := l[len(l)-1]
	return &e
}

func (l ExecutionLog) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return jsonValue(l)
}

func (l *ExecutionLog) Scan(src any) error { return scanJSON(src, l) }

type Enrollment struct {
	ID             int              `db:"id" json:"id"`
	OrganizationID int              `db:"organization_id" json:"organization_id"`
	CampaignID     int              `db:"campaign_id" json:"campaign_id"`
	SequenceID     int              `db:"sequence_id" json:"sequence_id"`
	ContactID      int              `db:"contact_id" json:"contact_id"`
	CurrentStepID  *int             `db:"current_step_id" json:"current_step_id,omitempty"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	NextRunAt      time.Time        `db:"next_run_at" json:"next_run_at"`
	LastRunAt      *time.Time       `db:"last_run_at" json:"last_run_at,omitempty"`
	ClaimToken     string           `db:"claim_token" json:"-"`
	ExecutionLogs  ExecutionLog     `db:"execution_logs" json:"execution_logs"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentUpdate is the outcome of one executed step, applied only if the
// enrollment is still active and still held by ClaimToken.
type EnrollmentUpdate struct {
	ID            int
	ClaimToken    string
	Status        EnrollmentStatus
	CurrentStepID *int
	NextRunAt     time.Time
	LastRunAt     time.Time
	Append        []LogEntry
}
