package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repositories use. pgxmock satisfies
// it as well, so repository tests run against the real SQL.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrVersionConflict is returned when an optimistic version check fails:
// the row was modified by a concurrent writer between read and write.
var ErrVersionConflict = errors.New("version conflict")

// ErrNotFound wraps pgx.ErrNoRows so callers do not depend on the driver.
var ErrNotFound = pgx.ErrNoRows
