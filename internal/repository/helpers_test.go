package repository

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}

func TestDedupeIDs(t *testing.T) {
	assert.Equal(t, []uint64{3, 1, 2}, dedupeIDs([]uint64{3, 1, 3, 2, 1}))
	assert.Empty(t, dedupeIDs(nil))
}

func TestMapMySQLError(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.ErrorIs(t, mapMySQLError(dup), ErrDuplicateReservation)

	fk := &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}
	assert.ErrorIs(t, mapMySQLError(fk), ErrNotFound)

	ref := &mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"}
	assert.ErrorIs(t, mapMySQLError(ref), ErrConflict)

	plain := errors.New("boom")
	assert.Equal(t, plain, mapMySQLError(plain))
}
