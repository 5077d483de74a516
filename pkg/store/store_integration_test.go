package store

import (
	"context"
	"testing"
	"time"

	"github.com/edgeflare/shellypg/internal/testutil/pgtest"
	"github.com/edgeflare/shellypg/pkg/shelly"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sensorRow struct {
	DeviceID    string
	Temperature *float64
	Humidity    *float64
	Battery     *int32
	Error       *int32
}

func readRow(ctx context.Context, t *testing.T, conn *pgx.Conn, ts time.Time) sensorRow {
	var row sensorRow
	err := conn.QueryRow(ctx,
		`SELECT device_id, temperature::float8, humidity::float8, battery, error
		FROM shelly_sensor_data WHERE "timestamp" = $1`, ts).
		Scan(&row.DeviceID, &row.Temperature, &row.Humidity, &row.Battery, &row.Error)
	require.NoError(t, err)
	return row
}

func countRows(ctx context.Context, t *testing.T, conn *pgx.Conn) int {
	var n int
	require.NoError(t, conn.QueryRow(ctx, "SELECT count(*) FROM shelly_sensor_data").Scan(&n))
	return n
}

func TestWriterPostgres(t *testing.T) {
	ctx := context.Background()
	conn := pgtest.Connect(ctx, t)
	pgtest.DropTable(ctx, t, conn, Table)

	w := NewWriter(conn, nil)
	require.NoError(t, w.EnsureSchema(ctx))

	// microsecond precision matches what timestamptz keeps
	ts := time.Date(2025, 3, 1, 12, 0, 0, 123456000, time.UTC)

	t.Run("first reading creates the row", func(t *testing.T) {
		require.NoError(t, w.Upsert(ctx, ts, shelly.DeviceID, shelly.Temperature, "21.50"))

		row := readRow(ctx, t, conn, ts)
		assert.Equal(t, shelly.DeviceID, row.DeviceID)
		require.NotNil(t, row.Temperature)
		assert.InDelta(t, 21.50, *row.Temperature, 0.001)
		assert.Nil(t, row.Humidity)
		assert.Nil(t, row.Battery)
		assert.Nil(t, row.Error)
	})

	t.Run("other channel at same timestamp merges", func(t *testing.T) {
		require.NoError(t, w.Upsert(ctx, ts, shelly.DeviceID, shelly.Humidity, "47"))

		row := readRow(ctx, t, conn, ts)
		require.NotNil(t, row.Temperature)
		assert.InDelta(t, 21.50, *row.Temperature, 0.001)
		require.NotNil(t, row.Humidity)
		assert.InDelta(t, 47, *row.Humidity, 0.001)
		assert.Nil(t, row.Battery)
		assert.Equal(t, 1, countRows(ctx, t, conn))
	})

	t.Run("same channel at same timestamp is last write wins", func(t *testing.T) {
		require.NoError(t, w.Upsert(ctx, ts, shelly.DeviceID, shelly.Temperature, "22.75"))

		row := readRow(ctx, t, conn, ts)
		require.NotNil(t, row.Temperature)
		assert.InDelta(t, 22.75, *row.Temperature, 0.001)
		require.NotNil(t, row.Humidity)
		assert.Equal(t, 1, countRows(ctx, t, conn))
	})

	t.Run("ensure schema is idempotent", func(t *testing.T) {
		require.NoError(t, w.EnsureSchema(ctx))
		require.NoError(t, w.EnsureSchema(ctx))
		assert.Equal(t, 1, countRows(ctx, t, conn))
	})

	t.Run("integer columns", func(t *testing.T) {
		later := ts.Add(time.Second)
		require.NoError(t, w.Upsert(ctx, later, shelly.DeviceID, shelly.Battery, "98"))
		require.NoError(t, w.Upsert(ctx, later, shelly.DeviceID, shelly.Error, "0"))

		row := readRow(ctx, t, conn, later)
		require.NotNil(t, row.Battery)
		assert.EqualValues(t, 98, *row.Battery)
		require.NotNil(t, row.Error)
		assert.EqualValues(t, 0, *row.Error)
		assert.Nil(t, row.Temperature)
	})

	t.Run("uncoercible value is a write error", func(t *testing.T) {
		err := w.Upsert(ctx, ts.Add(2*time.Second), shelly.DeviceID, shelly.Battery, "full")
		assert.Error(t, err)
	})
}
