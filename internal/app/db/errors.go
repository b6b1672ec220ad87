package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"nyscmate/internal/pkg/errs"
)

var (
	// ErrNoRows is returned when the addressed record does not exist.
	ErrNoRows = errors.New("db: no rows")

	// ErrEmailTaken is returned when creating a user whose email is registered.
	ErrEmailTaken = errors.New("db: email already registered")

	// ErrDuplicateClearance is returned when a user already requested clearance for the month.
	ErrDuplicateClearance = errors.New("db: clearance already requested for month")
)

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation (code 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// AsCustomError maps a store error to the errs taxonomy. notFound is the message for ErrNoRows.
func AsCustomError(err error, notFound string) *errs.CustomError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNoRows):
		return errs.NewError(errs.ErrNotFound).WithMessage(notFound)
	case errors.Is(err, ErrEmailTaken):
		return errs.NewError(errs.ErrAlreadyExists)
	case errors.Is(err, ErrDuplicateClearance):
		return errs.NewError(errs.ErrDuplicateClearance, "this month")
	}
	return errs.NewError(errs.ErrUnknown, err)
}
