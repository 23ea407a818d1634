// internal/model/filter.go
package model

import (
	"database/sql/driver"
	"slices"
	"time"
)

// Filter is the audience predicate shared by Audience.filter_config,
// Broadcast.filters and condition steps. A nil field means no constraint on
// that dimension; every set field is AND-combined.
type Filter struct {
	Status            *string    `json:"status,omitempty"`
	HasPhone          *bool      `json:"has_phone,omitempty"`
	HasEmail          *bool      `json:"has_email,omitempty"`
	Source            *string    `json:"source,omitempty"`
	ScoreMin          *int       `json:"score_min,omitempty"`
	ScoreMax          *int       `json:"score_max,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	CreatedAfter      *time.Time `json:"created_after,omitempty"`
	CreatedBefore     *time.Time `json:"created_before,omitempty"`
	LastContactAfter  *time.Time `json:"last_contact_after,omitempty"`
	LastContactBefore *time.Time `json:"last_contact_before,omitempty"`
	AssignedTo        *string    `json:"assigned_to,omitempty"`
}

// Matches evaluates the filter against a single lead. It does not look at
// OptedOut: opt-out exclusion is applied by the resolver on top of any filter.
func (f Filter) Matches(l *Lead) bool {
	if f.Status != nil && l.Status != *f.Status {
		return false
	}
	if f.HasPhone != nil && (l.Phone != "") != *f.HasPhone {
		return false
	}
	if f.HasEmail != nil && (l.Email != "") != *f.HasEmail {
		return false
	}
	if f.Source != nil && l.Source != *f.Source {
		return false
	}
	if f.ScoreMin != nil && (l.Score == nil || *l.Score < *f.ScoreMin) {
		return false
	}
	if f.ScoreMax != nil && (l.Score == nil || *l.Score > *f.ScoreMax) {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, func(t string) bool { return slices.Contains(l.Tags, t) }) {
		return false
	}
	if f.CreatedAfter != nil && !l.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !l.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.LastContactAfter != nil && (l.LastContactAt == nil || !l.LastContactAt.After(*f.LastContactAfter)) {
		return false
	}
	if f.LastContactBefore != nil && (l.LastContactAt == nil || !l.LastContactAt.Before(*f.LastContactBefore)) {
		return false
	}
	if f.AssignedTo != nil && l.AssignedTo != *f.AssignedTo {
		return false
	}
	return true
}

func (f Filter) Value() (driver.Value, error) { return jsonValue(f) }

func (f *Filter) Scan(src any) error { return scanJSON(src, f) }
