package pgx

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Conn defines the subset of a PostgreSQL connection the writers need.
// Both *pgx.Conn and *pgxpool.Pool satisfy it, so callers decide whether a
// single long-lived connection or a pool backs the writes.
type Conn interface {
	// Exec executes a SQL statement in the context of the given context 'ctx'.
	// It returns a CommandTag containing details about the executed statement,
	// or an error if there was an issue during execution.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
