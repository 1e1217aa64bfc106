package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx.Tx used by helpers in this package.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LastNumberForUpdate returns the highest value of column in table starting
// with prefix. It first takes a transaction scoped advisory lock on
// table:prefix, so concurrent callers allocating from the same month queue up
// until the holder commits. table and column are trusted identifiers.
func LastNumberForUpdate(ctx context.Context, q Querier, table, column, prefix string) (string, error) {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, table+":"+prefix); err != nil {
		return "", fmt.Errorf("platform/db: numbering lock: %w", err)
	}
	sql := fmt.Sprintf(`SELECT %[1]s FROM %[2]s WHERE %[1]s LIKE $1 ORDER BY LENGTH(%[1]s) DESC, %[1]s DESC LIMIT 1`, column, table)
	var last string
	if err := q.QueryRow(ctx, sql, prefix+"%").Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("platform/db: last number: %w", err)
	}
	return last, nil
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
