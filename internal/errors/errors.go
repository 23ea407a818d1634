// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEnrollmentLocked  = errors.New("enrollment already running for this campaign")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrNotFound covers the other entities by kind.
type ErrNotFound struct {
	Entity string
	ID     int
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Entity, e.ID)
}

func NewLeadNotFound(id int) error      { return &ErrNotFound{Entity: "lead", ID: id} }
func NewAudienceNotFound(id int) error  { return &ErrNotFound{Entity: "audience", ID: id} }
func NewBroadcastNotFound(id int) error { return &ErrNotFound{Entity: "broadcast", ID: id} }
func NewSequenceNotFound(id int) error  { return &ErrNotFound{Entity: "sequence", ID: id} }
func NewStepNotFound(id int) error      { return &ErrNotFound{Entity: "step", ID: id} }

type PreconditionKind string

const (
	NoAudience            PreconditionKind = "no_audience"
	ScheduledForLater     PreconditionKind = "scheduled_for_later"
	NoActiveSequence      PreconditionKind = "no_active_sequence"
	NoSteps               PreconditionKind = "no_steps"
	CampaignNotEnrollable PreconditionKind = "campaign_not_enrollable"
)

// ErrPrecondition is returned synchronously by enroll and never retried.
type ErrPrecondition struct {
	Kind       PreconditionKind
	CampaignID int
	Detail     string
}

func (e *ErrPrecondition) Error() string {
	var msg string
	switch e.Kind {
	case NoAudience:
		msg = "campaign has no linked audience"
	case ScheduledForLater:
		msg = "campaign is scheduled for later"
	case NoActiveSequence:
		msg = "campaign has no active sequence"
	case NoSteps:
		msg = "active sequence has no steps"
	case CampaignNotEnrollable:
		msg = "campaign cannot enroll in its current status"
	default:
		msg = string(e.Kind)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("campaign %d: %s", e.CampaignID, msg)
}

func NewPrecondition(campaignID int, kind PreconditionKind, detail string) error {
	return &ErrPrecondition{Kind: kind, CampaignID: campaignID, Detail: detail}
}

// ErrResolution wraps a store failure during audience resolution. Safe to retry.
type ErrResolution struct {
	OrganizationID int
	Err            error
}

func (e *ErrResolution) Error() string {
	return fmt.Sprintf("resolve audience for organization %d: %v", e.OrganizationID, e.Err)
}

func (e *ErrResolution) Unwrap() error { return e.Err }

func NewResolution(orgID int, err error) error {
	return &ErrResolution{OrganizationID: orgID, Err: err}
}

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	var c *ErrCampaignNotFound
	var n *ErrNotFound
	return errors.As(err, &c) || errors.As(err, &n)
}
