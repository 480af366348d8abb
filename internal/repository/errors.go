package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// unique_violation
const pgUniqueViolation = "23505"

// ErrDuplicate reports a write that lost a race against a unique index
// after the service-level pre-check had already passed.
var ErrDuplicate = errors.New("duplicate row")

func duplicateOr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}
