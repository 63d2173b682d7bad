package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect/sql/sqlgraph"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a uniqueness constraint would be
	// violated, e.g. a second progress record for the same user and topic.
	ErrDuplicate = errors.New("duplicate record")
)

// errNoRows marks a zero-row update so classify reports ErrNotFound.
var errNoRows = sql.ErrNoRows

// TransientError wraps a driver failure that may succeed on retry
// (connection loss, lock timeout). Callers surface it and leave retrying
// to the user.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err carries a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classify maps a driver error onto the store taxonomy.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case sqlgraph.IsUniqueConstraintError(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return &TransientError{Op: op, Err: err}
	}
}
