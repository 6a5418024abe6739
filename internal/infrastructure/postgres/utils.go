package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE de violación de restricción única.
const codeUniqueViolation = "23505"

// isUniqueViolation reporta si err proviene de una restricción única
// (clave duplicada). Los repositorios lo traducen a domain.ErrDuplicate.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
