package pgx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertQuery(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("single update column", func(t *testing.T) {
		query, args, err := UpsertQuery("readings", "timestamp", map[string]any{
			"timestamp":   ts,
			"device_id":   "dev",
			"temperature": "21.50",
		}, []string{"temperature"})
		require.NoError(t, err)
		assert.Equal(t,
			`INSERT INTO "public"."readings" ("device_id", "temperature", "timestamp") VALUES ($1, $2, $3) `+
				`ON CONFLICT ("timestamp") DO UPDATE SET "temperature" = EXCLUDED."temperature"`,
			query)
		assert.Equal(t, []any{"dev", "21.50", ts}, args)
	})

	t.Run("custom schema and do nothing", func(t *testing.T) {
		query, args, err := UpsertQuery("readings", "id", map[string]any{"id": 1}, nil, "iot")
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "iot"."readings" ("id") VALUES ($1) ON CONFLICT ("id") DO NOTHING`, query)
		assert.Equal(t, []any{1}, args)
	})

	t.Run("identifiers are quoted", func(t *testing.T) {
		query, _, err := UpsertQuery("readings", "id", map[string]any{
			"id":           1,
			`x"; DROP x--`: 2,
		}, nil)
		require.NoError(t, err)
		assert.Contains(t, query, `"x""; DROP x--"`)
	})

	t.Run("empty data", func(t *testing.T) {
		_, _, err := UpsertQuery("readings", "id", nil, nil)
		assert.ErrorIs(t, err, ErrNoColumns)
	})

	t.Run("conflict column missing", func(t *testing.T) {
		_, _, err := UpsertQuery("readings", "id", map[string]any{"value": 1}, nil)
		assert.Error(t, err)
	})

	t.Run("update column missing", func(t *testing.T) {
		_, _, err := UpsertQuery("readings", "id", map[string]any{"id": 1}, []string{"value"})
		assert.Error(t, err)
	})
}
