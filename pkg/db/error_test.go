package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: invoices.invoice_no")))
	assert.True(t, IsDuplicateKeyErr(errors.New(`ERROR: duplicate key value violates unique constraint "receipts_payment_id_key"`)))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestClassifyTxError(t *testing.T) {
	assert.NoError(t, ClassifyTxError(nil))

	plain := errors.New("invalid_amount")
	assert.Same(t, plain, ClassifyTxError(plain))

	deadlock := errors.New("ERROR: deadlock detected (SQLSTATE 40P01)")
	classified := ClassifyTxError(deadlock)
	assert.ErrorIs(t, classified, ErrConcurrencyConflict)
	assert.ErrorIs(t, classified, deadlock)

	busy := ClassifyTxError(errors.New("database is locked (5) (SQLITE_BUSY)"))
	assert.ErrorIs(t, busy, ErrConcurrencyConflict)
}
