package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/draftboard/draftboard/internal/storage"
)

// wrapDBError wraps a database error with operation context.
// sql.ErrNoRows becomes storage.ErrNotFound and SQLite constraint failures
// become storage.ErrConflict so callers can branch on errors.Is.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if isConstraintViolation(err) {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isConstraintViolation reports whether err is a SQLite constraint failure
// (unique key collision, CHECK violation, foreign key).
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "FOREIGN KEY constraint") ||
		strings.Contains(msg, "CHECK constraint")
}

// isBusy reports whether err is a transient SQLITE_BUSY / locked condition
// worth retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "busy")
}
