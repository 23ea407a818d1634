// internal/model/outbound_message.go
package model

import "time"

// OutboundMessage is what the core hands to a Sender. IdempotencyKey is stable
// per enrollment step (or broadcast recipient) so a transport can drop repeats.
type OutboundMessage struct {
	IdempotencyKey string       `json:"idempotency_key"`
	OrganizationID int          `json:"organization_id"`
	LeadID         int          `json:"lead_id"`
	EnrollmentID   int          `json:"enrollment_id,omitempty"`
	BroadcastID    int          `json:"broadcast_id,omitempty"`
	Channel        string       `json:"channel"`
	To             string       `json:"to"`
	Body           string       `json:"body"`
	Humanize       bool         `json:"humanize"`
	Mode           DeliveryMode `json:"mode,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
