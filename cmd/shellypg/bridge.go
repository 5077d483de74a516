package shellypg

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/edgeflare/shellypg/pkg/bridge"
	"github.com/edgeflare/shellypg/pkg/metrics"
	"github.com/edgeflare/shellypg/pkg/mqtt"
	"github.com/edgeflare/shellypg/pkg/shelly"
	"github.com/edgeflare/shellypg/pkg/store"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

func runBridge(ctx context.Context) error {
	defer logger.Sync() //nolint:errcheck

	conn, writer, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeConn(conn)

	client, err := newMQTTClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{
			Addr:   cfg.Metrics.Addr,
			Logger: logger,
		})
	}

	b := bridge.New(client, writer, bridge.Options{
		Topics:        shelly.Topics(shelly.Namespace, shelly.DeviceID),
		RetryInterval: cfg.Bridge.RetryInterval,
		Logger:        logger,
	})

	logger.Info("Starting bridge",
		zap.String("broker", fmt.Sprintf("%s:%d", cfg.Env.MQTT.Broker, cfg.Env.MQTT.Port)),
		zap.String("device_id", shelly.DeviceID),
		zap.String("table", store.Table),
		zap.Duration("retryInterval", cfg.Bridge.RetryInterval))

	err = b.Run(ctx)
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		logger.Info("Shutdown complete")
		return nil
	}
	return err
}

// openStore connects to PostgreSQL and ensures the table exists. Both steps
// are fatal at startup.
func openStore(ctx context.Context) (*pgx.Conn, *store.Writer, error) {
	conn, err := pgx.Connect(ctx, cfg.Env.PG.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	writer := store.NewWriter(conn, logger)
	if err := writer.EnsureSchema(ctx); err != nil {
		closeConn(conn)
		return nil, nil, err
	}
	return conn, writer, nil
}

func closeConn(conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		logger.Warn("Failed to close database connection", zap.Error(err))
	}
}

func newMQTTClient() (*mqtt.Client, error) {
	broker, err := mqtt.BrokerURL(cfg.Env.MQTT.Broker, cfg.Env.MQTT.Port)
	if err != nil {
		return nil, err
	}

	return mqtt.NewClient(mqtt.ClientOptions{
		Servers:        []*url.URL{broker},
		ClientID:       cfg.Bridge.ClientID,
		Username:       cfg.Env.MQTT.Username,
		Password:       cfg.Env.MQTT.Password,
		KeepAlive:      cfg.Bridge.KeepAlive,
		ConnectTimeout: cfg.Bridge.ConnectTimeout,
		QoS:            cfg.Bridge.QoS,
		CleanSession:   true,
	}, logger)
}
