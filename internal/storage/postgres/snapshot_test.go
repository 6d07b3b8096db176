package postgres

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgErrorClassification(t *testing.T) {
	unique := errors.Wrap(&pgconn.PgError{
		Code:           uniqueViolation,
		ConstraintName: "customer_tier_snapshots_one_active",
	}, "inserting snapshot")
	fk := errors.Wrap(&pgconn.PgError{
		Code:           foreignKeyViolation,
		ConstraintName: "customer_tier_snapshots_customer_id_fkey",
	}, "inserting snapshot")

	assert.True(t, isUniqueViolation(unique))
	assert.False(t, isUniqueViolation(fk))
	assert.True(t, isForeignKeyViolation(fk))
	assert.False(t, isForeignKeyViolation(unique))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isForeignKeyViolation(nil))
}
