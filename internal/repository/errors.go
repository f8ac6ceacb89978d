package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrActiveConversationExists is returned when another active
	// conversation for the same seller, buyer and listing won the insert.
	ErrActiveConversationExists = errors.New("active conversation already exists")
	// ErrDuplicate wraps unique constraint violations.
	ErrDuplicate = errors.New("duplicate key")
)

const uniqueViolation = "23505"

// DuplicateError carries the violated constraint name.
type DuplicateError struct {
	Constraint string
	Err        error
}

func (e *DuplicateError) Error() string {
	return "duplicate key violates " + e.Constraint
}

func (e *DuplicateError) Unwrap() []error {
	return []error{ErrDuplicate, e.Err}
}

// translate converts driver errors into repository errors where a caller
// can act on them.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &DuplicateError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}
