package repository

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

// leadWhere builds the WHERE clause for an audience filter. opted_out = FALSE
// is always present, whatever the filter says.
func leadWhere(orgID int, f model.Filter) (string, []interface{}) {
	clauses := []string{"organization_id = $1", "opted_out = FALSE"}
	args := []interface{}{orgID}
	argPos := 2

	add := func(clause string, v interface{}) {
		clauses = append(clauses, fmt.Sprintf(clause, argPos))
		args = append(args, v)
		argPos++
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.HasPhone != nil {
		if *f.HasPhone {
			clauses = append(clauses, "COALESCE(phone, '') <> ''")
		} else {
			clauses = append(clauses, "COALESCE(phone, '') = ''")
		}
	}
	if f.HasEmail != nil {
		if *f.HasEmail {
			clauses = append(clauses, "COALESCE(email, '') <> ''")
		} else {
			clauses = append(clauses, "COALESCE(email, '') = ''")
		}
	}
	if f.Source != nil {
		add("source = $%d", *f.Source)
	}
	if f.ScoreMin != nil {
		add("score >= $%d", *f.ScoreMin)
	}
	if f.ScoreMax != nil {
		add("score <= $%d", *f.ScoreMax)
	}
	if len(f.Tags) > 0 {
		add("tags && $%d::text[]", pq.Array(f.Tags))
	}
	if f.CreatedAfter != nil {
		add("created_at > $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("created_at < $%d", *f.CreatedBefore)
	}
	if f.LastContactAfter != nil {
		add("last_contact_at > $%d", *f.LastContactAfter)
	}
	if f.LastContactBefore != nil {
		add("last_contact_at < $%d", *f.LastContactBefore)
	}
	if f.AssignedTo != nil {
		add("assigned_to = $%d", *f.AssignedTo)
	}

	return strings.Join(clauses, " AND "), args
}
