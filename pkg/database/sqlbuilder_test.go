package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertBuilder_OnConflict(t *testing.T) {
	ib := NewInsertBuilder().
		InsertInto("appointments").
		Cols("id", "company_name", "updated_at").
		Values("a1", "SOURCE LTD", "2025-01-01")
	ub := ib.OnConflict("director_id", "company_number", "role")
	ub.Set(
		ub.Assign("company_name", Excluded("company_name")),
		ub.Assign("updated_at", Excluded("updated_at")),
	)
	ib.Returning("id", "company_name", "(xmax = 0) AS inserted")

	query, args := ib.Build()

	assert.Contains(t, query, "INSERT INTO appointments")
	assert.Contains(t, query, "ON CONFLICT (director_id, company_number, role) DO UPDATE")
	assert.Contains(t, query, "EXCLUDED.company_name")
	assert.Contains(t, query, "EXCLUDED.updated_at")
	assert.Contains(t, query, "RETURNING")
	assert.Contains(t, query, "(xmax = 0) AS inserted")
	require.Len(t, args, 3)
}

func TestInsertBuilder_OnConflictDoNothing(t *testing.T) {
	ib := NewInsertBuilder().
		InsertInto("directors").
		Cols("id").
		Values("d1").
		OnConflictDoNothing()

	query, _ := ib.Build()

	assert.Contains(t, query, "ON CONFLICT DO NOTHING")
}
