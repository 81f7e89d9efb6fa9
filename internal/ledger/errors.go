package ledger

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"shuttle-ticket/internal/status"
)

const pgUniqueViolation = "23505"

// uniqueViolation reports whether err is a unique constraint failure and
// returns driver text naming the offending constraint or column.
func uniqueViolation(err error) (string, bool) {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return sqliteErr.Error(), true
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return pgErr.ConstraintName + " " + pgErr.Detail, true
		}
		return "", false
	}

	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return msg, true
	}
	return "", false
}

// conflict maps a column fragment of a unique violation to a business error.
type conflict struct {
	column string
	err    error
}

// translate maps driver errors to the status taxonomy. Unique violations that
// match one of the conflicts become that conflict; everything else is transient.
func translate(err error, conflicts ...conflict) error {
	if err == nil {
		return nil
	}
	if detail, ok := uniqueViolation(err); ok {
		for _, c := range conflicts {
			if strings.Contains(detail, c.column) {
				return c.err
			}
		}
		if len(conflicts) == 1 {
			return conflicts[0].err
		}
		return errors.Join(status.ErrConflict, err)
	}
	return status.Transient(err)
}
