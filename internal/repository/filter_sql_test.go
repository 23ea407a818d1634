package repository

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

func TestLeadWhere_EmptyFilterStillExcludesOptedOut(t *testing.T) {
	where, args := leadWhere(7, model.Filter{})

	assert.Equal(t, "organization_id = $1 AND opted_out = FALSE", where)
	assert.Equal(t, []interface{}{7}, args)
}

func TestLeadWhere_ZeroScoreMinIsAConstraint(t *testing.T) {
	zero := 0
	where, args := leadWhere(1, model.Filter{ScoreMin: &zero})

	assert.Equal(t, "organization_id = $1 AND opted_out = FALSE AND score >= $2", where)
	assert.Equal(t, []interface{}{1, 0}, args)
}

func TestLeadWhere_PlaceholdersFollowArgs(t *testing.T) {
	status, source := "qualified", "web"
	yes, no := true, false
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	where, args := leadWhere(3, model.Filter{
		Status:       &status,
		HasPhone:     &yes,
		HasEmail:     &no,
		Source:       &source,
		Tags:         []string{"vip", "expo"},
		CreatedAfter: &after,
	})

	assert.Equal(t,
		"organization_id = $1 AND opted_out = FALSE AND status = $2 AND COALESCE(phone, '') <> '' "+
			"AND COALESCE(email, '') = '' AND source = $3 AND tags && $4::text[] AND created_at > $5",
		where)
	assert.Equal(t, []interface{}{3, "qualified", "web", pq.Array([]string{"vip", "expo"}), after}, args)
}
