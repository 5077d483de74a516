package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// EnvTestDatabase names the variable holding the connection string of a
// disposable test database.
const EnvTestDatabase = "TEST_DATABASE"

// ParseConfig returns a test connection config with logging. The test is
// skipped when no test database is configured.
func ParseConfig(t testing.TB) *pgx.ConnConfig {
	connString := os.Getenv(EnvTestDatabase)
	if connString == "" {
		t.Skipf("%s not set, skipping database test", EnvTestDatabase)
	}

	config, err := pgx.ParseConfig(connString)
	require.NoError(t, err)

	config.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		t.Logf("PostgreSQL %s: %s", n.Severity, n.Message)
	}

	return config
}

// Connect creates a new database connection for testing
func Connect(ctx context.Context, t testing.TB) *pgx.Conn {
	conn, err := pgx.ConnectConfig(ctx, ParseConfig(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		Close(t, conn)
	})

	return conn
}

// Close safely closes a database connection
func Close(t testing.TB, conn *pgx.Conn) {
	if conn.IsClosed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Close(ctx))
}

// DropTable removes a table left over by a previous run and again when the
// test finishes.
func DropTable(ctx context.Context, t testing.TB, conn *pgx.Conn, table string) {
	drop := func() {
		_, err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{table}.Sanitize())
		require.NoError(t, err)
	}
	drop()
	t.Cleanup(drop)
}
