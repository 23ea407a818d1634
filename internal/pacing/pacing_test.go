package pacing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC)
}

func TestIsPermissible_DefaultWindow(t *testing.T) {
	cfg := model.DeliveryConfig{Mode: model.ModeTurbo}

	for h := 0; h < 24; h++ {
		for _, m := range []int{0, 30, 59} {
			inside := h >= 9 && h < 18
			assert.Equal(t, inside, IsPermissible(at(h, m), cfg), "%02d:%02d", h, m)
		}
	}
}

func TestNextPermissible(t *testing.T) {
	cfg := model.DeliveryConfig{}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before open same day", at(6, 15), at(9, 0)},
		{"inside window is now", at(11, 42), at(11, 42)},
		{"exactly at close is next day", at(18, 0), at(9, 0).AddDate(0, 0, 1)},
		{"late evening next day", at(23, 59), at(9, 0).AddDate(0, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextPermissible(tt.now, cfg)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
			assert.False(t, got.Before(tt.now))
			assert.True(t, IsPermissible(got, cfg))
		})
	}
}

func TestNextPermissible_NeverBeforeNow(t *testing.T) {
	cfg := model.DeliveryConfig{Timezone: "Africa/Nairobi"}
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 96; i++ {
		now := start.Add(time.Duration(i) * 17 * time.Minute)
		got := NextPermissible(now, cfg)
		require.False(t, got.Before(now), "now=%s got=%s", now, got)
	}
}

func TestPolicy_UsesCampaignTimezone(t *testing.T) {
	cfg := model.DeliveryConfig{Timezone: "Africa/Nairobi"} // UTC+3
	// 07:00 UTC is 10:00 in Nairobi.
	assert.True(t, IsPermissible(at(7, 0), cfg))
	// 16:00 UTC is 19:00 in Nairobi.
	assert.False(t, IsPermissible(at(16, 0), cfg))

	next := NextPermissible(at(16, 0), cfg)
	assert.True(t, next.Equal(time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)), "got %s", next)
}

func TestPolicy_DefaultLocationFallback(t *testing.T) {
	nairobi, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)
	p := Policy{DefaultLocation: nairobi}

	assert.True(t, p.IsPermissible(at(7, 0), model.DeliveryConfig{}))
	assert.True(t, p.IsPermissible(at(7, 0), model.DeliveryConfig{Timezone: "Not/AZone"}))
}

func TestPolicy_CustomAndInvalidWindows(t *testing.T) {
	custom := model.DeliveryConfig{BusinessHours: model.BusinessHours{Start: "08:30", End: "12:00"}}
	assert.True(t, IsPermissible(at(8, 30), custom))
	assert.False(t, IsPermissible(at(12, 0), custom))

	inverted := model.DeliveryConfig{BusinessHours: model.BusinessHours{Start: "18:00", End: "09:00"}}
	assert.True(t, IsPermissible(at(10, 0), inverted))
	assert.False(t, IsPermissible(at(20, 0), inverted))

	garbage := model.DeliveryConfig{BusinessHours: model.BusinessHours{Start: "nine", End: "25:00"}}
	assert.True(t, IsPermissible(at(9, 0), garbage))
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:45")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 45, m)

	_, _, err = ParseClock("7pm")
	assert.Error(t, err)
}
