// Package pacing decides when a campaign may send. Everything here is a pure
// function of the clock and the campaign's delivery config.
package pacing

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

const (
	DefaultStart = "09:00"
	DefaultEnd   = "18:00"
)

type clock struct{ hour, min int }

func (c clock) minutes() int { return c.hour*60 + c.min }

// ParseClock parses "HH:MM" in 24h form.
func ParseClock(s string) (hour, min int, err error) {
	var t time.Time
	t, err = time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Policy carries the fallbacks used when a campaign's config leaves fields
// empty or invalid. The zero value falls back to UTC.
type Policy struct {
	DefaultLocation *time.Location
	Profiles        Profiles
}

type window struct {
	start, end clock
	loc        *time.Location
}

func (p Policy) window(cfg model.DeliveryConfig) window {
	w := window{start: clock{9, 0}, end: clock{18, 0}, loc: time.UTC}
	if p.DefaultLocation != nil {
		w.loc = p.DefaultLocation
	}
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			w.loc = loc
		}
	}

	start, end := w.start, w.end
	if cfg.BusinessHours.Start != "" {
		if h, m, err := ParseClock(cfg.BusinessHours.Start); err == nil {
			start = clock{h, m}
		}
	}
	if cfg.BusinessHours.End != "" {
		if h, m, err := ParseClock(cfg.BusinessHours.End); err == nil {
			end = clock{h, m}
		}
	}
	// An empty or inverted window would never open.
	if start.minutes() < end.minutes() {
		w.start, w.end = start, end
	}
	return w
}

// IsPermissible reports whether now falls inside the campaign's local
// business-hours window [start, end). The window applies in every mode.
func (p Policy) IsPermissible(now time.Time, cfg model.DeliveryConfig) bool {
	w := p.window(cfg)
	local := now.In(w.loc)
	m := local.Hour()*60 + local.Minute()
	return m >= w.start.minutes() && m < w.end.minutes()
}

// NextPermissible returns now when sending is allowed, otherwise the next
// window-open instant: today's open if before it, tomorrow's if past the close.
// The result is never before now.
func (p Policy) NextPermissible(now time.Time, cfg model.DeliveryConfig) time.Time {
	if p.IsPermissible(now, cfg) {
		return now
	}
	w := p.window(cfg)
	local := now.In(w.loc)
	y, mo, d := local.Date()
	open := time.Date(y, mo, d, w.start.hour, w.start.min, 0, 0, w.loc)
	if !local.Before(open) {
		open = time.Date(y, mo, d+1, w.start.hour, w.start.min, 0, 0, w.loc)
	}
	return open.In(now.Location())
}

// IsPermissible evaluates with the zero Policy (UTC fallback).
func IsPermissible(now time.Time, cfg model.DeliveryConfig) bool {
	return Policy{}.IsPermissible(now, cfg)
}

// NextPermissible evaluates with the zero Policy (UTC fallback).
func NextPermissible(now time.Time, cfg model.DeliveryConfig) time.Time {
	return Policy{}.NextPermissible(now, cfg)
}
