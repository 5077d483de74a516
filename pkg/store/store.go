// Package store persists Shelly sensor readings into PostgreSQL, one row per
// receipt timestamp with a nullable column per measurement.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	pg "github.com/edgeflare/shellypg/pkg/pgx"
	"github.com/edgeflare/shellypg/pkg/shelly"
	"go.uber.org/zap"
)

const (
	// Table receives every reading.
	Table = "shelly_sensor_data"

	columnTimestamp = "timestamp"
	columnDeviceID  = "device_id"
)

var ErrUnknownColumn = errors.New("unknown measurement column")

// columns is the only source of column names that reach SQL.
var columns = map[shelly.Measurement]string{
	shelly.Temperature: "temperature",
	shelly.Humidity:    "humidity",
	shelly.Battery:     "battery",
	shelly.Error:       "error",
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS public.shelly_sensor_data (
		timestamp TIMESTAMPTZ PRIMARY KEY,
		device_id VARCHAR(50) NOT NULL,
		temperature NUMERIC(5,2),
		humidity NUMERIC(5,2),
		battery INTEGER,
		error INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_id ON public.shelly_sensor_data(device_id)`,
	`COMMENT ON TABLE public.shelly_sensor_data IS 'Stores sensor data from Shelly HT devices'`,
}

// Column returns the table column that stores measurement m.
func Column(m shelly.Measurement) (string, error) {
	col, ok := columns[m]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownColumn, m)
	}
	return col, nil
}

// Writer writes readings over a single long-lived connection.
type Writer struct {
	conn   pg.Conn
	logger *zap.Logger
}

// NewWriter returns a Writer using conn. A nil logger disables logging.
func NewWriter(conn pg.Conn, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{conn: conn, logger: logger}
}

// EnsureSchema creates the table and its device index if they are missing.
// It leaves an existing table and its rows untouched.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := w.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	w.logger.Info("Schema ready", zap.String("table", Table))
	return nil
}

// Upsert stores value in the column of measurement m for the row keyed by ts,
// creating the row with deviceID if none exists yet. Other columns of an
// existing row are left as they are. value is passed as text and coerced by
// the column type.
func (w *Writer) Upsert(ctx context.Context, ts time.Time, deviceID string, m shelly.Measurement, value string) error {
	col, err := Column(m)
	if err != nil {
		return err
	}

	data := map[string]any{
		columnTimestamp: ts,
		columnDeviceID:  deviceID,
		col:             value,
	}
	if err := pg.UpsertRow(ctx, w.conn, Table, columnTimestamp, data, []string{col}); err != nil {
		return fmt.Errorf("write %s for %s at %s: %w", col, deviceID, ts.Format(time.RFC3339Nano), err)
	}

	w.logger.Debug("Reading stored",
		zap.Time("timestamp", ts),
		zap.String("device_id", deviceID),
		zap.String("column", col),
		zap.String("value", value))
	return nil
}
