package mqtt

import (
	"errors"
	"fmt"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("mqtt client not connected")

// MessageHandler receives the topic and raw payload of a delivered message.
type MessageHandler func(topic string, payload []byte)

// Client is a subscriber connection to one MQTT broker.
type Client struct {
	opts   *mqtt.ClientOptions
	client mqtt.Client
	logger *zap.Logger
	qos    byte
}

// init ensures that the logger is not nil
func (c *Client) init() {
	if c.logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			// If we can't create a production logger, fall back to a no-op logger
			fmt.Fprintf(os.Stderr, "Failed to create default logger: %v\n", err)
			c.logger = zap.NewNop()
		} else {
			c.logger = logger
		}
	}
}

// NewClient creates a new MQTT client with the given options and logger.
func NewClient(opts ClientOptions, logger ...*zap.Logger) (*Client, error) {
	pahoOpts, err := convertToPahoOptions(&opts)
	if err != nil {
		return nil, err
	}

	client := &Client{
		opts: pahoOpts,
		qos:  opts.QoS,
	}

	if len(logger) > 0 {
		client.logger = logger[0]
	}

	client.init()
	return client, nil
}

// Connect establishes a connection to the MQTT broker. onLost is called once
// if the established connection later drops.
func (c *Client) Connect(onLost func(error)) error {
	c.opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("Connection to MQTT broker lost", zap.Error(err))
		if onLost != nil {
			onLost(err)
		}
	})

	c.client = mqtt.NewClient(c.opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("broker connection error: %w", token.Error())
	}

	c.logger.Info("Connected to MQTT broker", zap.Strings("brokers", getBrokerStrings(c.opts)))
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Subscribe registers handler for messages on the specified MQTT topic.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if c.client == nil {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		c.logger.Error("Subscribe error", zap.Error(err), zap.String("topic", topic))
		return fmt.Errorf("subscribe error: %w", err)
	}
	c.logger.Debug("Subscribed to topic", zap.String("topic", topic), zap.Uint8("qos", c.qos))
	return nil
}

// Disconnect closes the connection to the MQTT broker.
func (c *Client) Disconnect() {
	if !c.IsConnected() {
		return
	}
	c.client.Disconnect(250)
	c.logger.Info("Disconnected from MQTT broker")
}

func getBrokerStrings(opts *mqtt.ClientOptions) []string {
	brokers := make([]string, len(opts.Servers))
	for i, server := range opts.Servers {
		brokers[i] = server.String()
	}
	return brokers
}
