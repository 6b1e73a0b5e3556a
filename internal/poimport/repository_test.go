package poimport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPgError(t *testing.T) {
	assert.NoError(t, mapPgError(nil))

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "purchase_orders_po_number_key"}
	err := mapPgError(fmt.Errorf("insert: %w", dup))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "purchase_orders_po_number_key")

	fk := &pgconn.PgError{Code: "23503"}
	assert.Same(t, fk, mapPgError(fk))

	plain := errors.New("conn reset")
	assert.Equal(t, plain, mapPgError(plain))
}
