// Package bridge keeps a subscription to the sensor topics alive and writes
// every received reading to storage.
//
// The bridge moves through three states:
//
//	Disconnected -> Connecting -> Connected -> Disconnected (on error)
//
// A failed connect or a dropped connection waits a fixed interval and then
// runs the whole connect-subscribe cycle again, without limit, until the
// context passed to Run is cancelled. Messages are handled one at a time in
// the delivery callback: route, then write, then the next message.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/edgeflare/shellypg/pkg/metrics"
	"github.com/edgeflare/shellypg/pkg/mqtt"
	"github.com/edgeflare/shellypg/pkg/shelly"
	"go.uber.org/zap"
)

// DefaultRetryInterval is the wait between connection attempts.
const DefaultRetryInterval = 10 * time.Second

var ErrInvalidPayload = errors.New("payload is not valid UTF-8")

// State is the connection state of the bridge.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Broker is the message bus the bridge subscribes through. Connect reports a
// later loss of the established connection through onLost.
type Broker interface {
	Connect(onLost func(error)) error
	Subscribe(topic string, handler mqtt.MessageHandler) error
	Disconnect()
}

// Writer persists a single reading.
type Writer interface {
	Upsert(ctx context.Context, ts time.Time, deviceID string, m shelly.Measurement, value string) error
}

type Options struct {
	// Topics to subscribe after every successful connect. Defaults to every
	// measurement of shelly.DeviceID.
	Topics []string
	// RetryInterval defaults to DefaultRetryInterval.
	RetryInterval time.Duration
	Logger        *zap.Logger
	// Now stamps received messages. Defaults to time.Now.
	Now func() time.Time
	// Timer drives the waits between attempts. Defaults to a time.Timer.
	Timer backoff.Timer
}

type Bridge struct {
	broker        Broker
	writer        Writer
	topics        []string
	retryInterval time.Duration
	logger        *zap.Logger
	now           func() time.Time
	timer         backoff.Timer
	state         atomic.Int32
	lost          chan error
}

// New returns a Bridge that reads from broker and writes to writer.
func New(broker Broker, writer Writer, opts Options) *Bridge {
	b := &Bridge{
		broker:        broker,
		writer:        writer,
		topics:        opts.Topics,
		retryInterval: opts.RetryInterval,
		logger:        opts.Logger,
		now:           opts.Now,
		timer:         opts.Timer,
		lost:          make(chan error, 1),
	}

	if len(b.topics) == 0 {
		b.topics = shelly.Topics(shelly.Namespace, shelly.DeviceID)
	}
	if b.retryInterval <= 0 {
		b.retryInterval = DefaultRetryInterval
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.timer == nil {
		b.timer = &stdTimer{}
	}
	return b
}

// State returns the current connection state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

func (b *Bridge) setState(s State) {
	if prev := State(b.state.Swap(int32(s))); prev != s {
		b.logger.Debug("Bridge state changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", s))
	}
	if s == StateConnected {
		metrics.BrokerConnected.Set(1)
	} else {
		metrics.BrokerConnected.Set(0)
	}
}

// Run connects, subscribes and keeps reconnecting until ctx is cancelled. It
// only returns the context's error.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.setState(StateDisconnected)

	for {
		policy := backoff.WithContext(backoff.NewConstantBackOff(b.retryInterval), ctx)
		err := backoff.RetryNotifyWithTimer(func() error {
			return b.connect(ctx)
		}, policy, b.retrying, b.timer)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			b.broker.Disconnect()
			return ctx.Err()
		case err := <-b.lost:
			b.setState(StateDisconnected)
			b.logger.Warn("Broker connection lost, reconnecting",
				zap.Error(err),
				zap.Duration("retryIn", b.retryInterval))
			if err := b.sleep(ctx, b.retryInterval); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return backoff.Permanent(err)
	}

	// a loss reported by an earlier connection does not apply to this one
	select {
	case <-b.lost:
	default:
	}

	b.setState(StateConnecting)
	metrics.ConnectAttempts.Inc()
	if err := b.broker.Connect(b.connectionLost); err != nil {
		b.setState(StateDisconnected)
		return err
	}
	b.setState(StateConnected)

	for _, topic := range b.topics {
		err := b.broker.Subscribe(topic, func(topic string, payload []byte) {
			_ = b.HandleMessage(ctx, topic, payload)
		})
		if err != nil {
			b.logger.Error("Failed to subscribe", zap.String("topic", topic), zap.Error(err))
			continue
		}
		b.logger.Info("Subscribed", zap.String("topic", topic))
	}
	return nil
}

func (b *Bridge) connectionLost(err error) {
	select {
	case b.lost <- err:
	default:
	}
}

func (b *Bridge) retrying(err error, next time.Duration) {
	b.logger.Error("Connection to MQTT broker failed",
		zap.Error(err),
		zap.Duration("retryIn", next))
}

func (b *Bridge) sleep(ctx context.Context, d time.Duration) error {
	b.timer.Start(d)
	defer b.timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.timer.C():
		return nil
	}
}

// HandleMessage routes one message and writes its payload. The reading is
// stamped with the time of receipt. A returned error means the message was
// dropped; it has already been logged.
func (b *Bridge) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	ts := b.now()
	metrics.MessagesReceived.WithLabelValues(topic).Inc()

	deviceID, m, err := shelly.Route(topic)
	if err != nil {
		metrics.MessagesDropped.WithLabelValues(metrics.ReasonRoute).Inc()
		b.logger.Warn("Dropping message",
			zap.Time("timestamp", ts),
			zap.String("topic", topic),
			zap.Error(err))
		return err
	}

	if !utf8.Valid(payload) {
		metrics.MessagesDropped.WithLabelValues(metrics.ReasonPayload).Inc()
		b.logger.Warn("Dropping message",
			zap.Time("timestamp", ts),
			zap.String("topic", topic),
			zap.String("device_id", deviceID),
			zap.Error(ErrInvalidPayload))
		return ErrInvalidPayload
	}
	value := string(payload)

	b.logger.Debug("Received",
		zap.Time("timestamp", ts),
		zap.String("device_id", deviceID),
		zap.String("measurement", string(m)),
		zap.String("value", value))

	start := time.Now()
	if err := b.writer.Upsert(ctx, ts, deviceID, m, value); err != nil {
		metrics.MessagesDropped.WithLabelValues(metrics.ReasonWrite).Inc()
		b.logger.Error("Failed to store reading",
			zap.Time("timestamp", ts),
			zap.String("topic", topic),
			zap.String("device_id", deviceID),
			zap.String("measurement", string(m)),
			zap.Error(err))
		return err
	}
	metrics.WriteDuration.WithLabelValues(string(m)).Observe(time.Since(start).Seconds())
	metrics.RowsWritten.WithLabelValues(string(m)).Inc()
	return nil
}
