package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLError is a structured database error: a machine-readable code and,
// when the server reported one, a 1-based character position into the
// submitted SQL.
type SQLError struct {
	Code     string
	Message  string
	Position int
}

func (e *SQLError) Error() string {
	return e.Message
}

// Validation error codes that mean "this statement cannot be fully planned
// without parameter types", which is expected for extracted application
// queries using placeholders. They are suppressed, not surfaced.
const (
	codeIndeterminateDatatype = "42P18"
	codeAmbiguousParameter    = "42P08"
)

func isSuppressedCode(code string) bool {
	return code == codeIndeterminateDatatype || code == codeAmbiguousParameter
}

// asSQLError converts driver errors into *SQLError where structured detail
// is available; otherwise the message alone is carried over.
func asSQLError(err error) *SQLError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &SQLError{
			Code:     pgErr.Code,
			Message:  pgErr.Message,
			Position: int(pgErr.Position),
		}
	}
	var sqlErr *SQLError
	if errors.As(err, &sqlErr) {
		return sqlErr
	}
	return &SQLError{Message: err.Error()}
}
