package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var ErrOrderNotFound = errors.New("order not found")

const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// IsSchemaMiss reports whether err means a table or column is missing.
func IsSchemaMiss(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == pgUndefinedTable || pgErr.Code == pgUndefinedColumn
}
