package repository

import (
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrInvalid       = errors.New("invalid record")
)

const uniqueViolation = "23505"

var schema = validator.New(validator.WithRequiredStructEnabled())

// validateRecord applies the record's `validate` tags before it is written.
func validateRecord(record any) error {
	if err := schema.Struct(record); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
