package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrConcurrencyConflict means a transaction lost a lock race and the whole
// operation may be retried.
var ErrConcurrencyConflict = errors.New("concurrency_conflict")

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"): // postgres 23505
		return true
	case strings.Contains(msg, "Error 1062"): // mysql
		return true
	case strings.Contains(msg, "UNIQUE constraint failed"): // sqlite
		return true
	}
	return false
}

// IsConcurrencyErr reports lock timeouts, serialization failures and deadlocks.
func IsConcurrencyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConcurrencyConflict) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{
		"SQLSTATE 40001",   // serialization_failure
		"SQLSTATE 40P01",   // deadlock_detected
		"SQLSTATE 55P03",   // lock_not_available
		"Error 1213",       // mysql deadlock
		"Error 1205",       // mysql lock wait timeout
		"database is locked",
		"SQLITE_BUSY",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ClassifyTxError maps driver lock errors to ErrConcurrencyConflict and
// leaves everything else untouched.
func ClassifyTxError(err error) error {
	if err == nil || errors.Is(err, ErrConcurrencyConflict) {
		return err
	}
	if IsConcurrencyErr(err) {
		return errors.Join(ErrConcurrencyConflict, err)
	}
	return err
}
