package mqtt

import (
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type ClientOptions struct {
	Servers        []*url.URL    `json:"servers" mapstructure:"servers"`
	ClientID       string        `json:"clientID" mapstructure:"clientID"`
	Username       string        `json:"username" mapstructure:"username"`
	Password       string        `json:"password" mapstructure:"password"`
	KeepAlive      time.Duration `json:"keepAlive" mapstructure:"keepAlive"`
	PingTimeout    time.Duration `json:"pingTimeout" mapstructure:"pingTimeout"`
	ConnectTimeout time.Duration `json:"connectTimeout" mapstructure:"connectTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`
	QoS            byte          `json:"qos" mapstructure:"qos"`
	CleanSession   bool          `json:"cleanSession" mapstructure:"cleanSession"`
}

// BrokerURL returns the tcp URL of a broker listening on host:port.
func BrokerURL(host string, port int) (*url.URL, error) {
	u, err := url.Parse(fmt.Sprintf("tcp://%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("failed to parse broker URL: %w", err)
	}
	return u, nil
}

func convertToPahoOptions(opts *ClientOptions) (*mqtt.ClientOptions, error) {
	if len(opts.Servers) == 0 {
		return nil, fmt.Errorf("no broker configured")
	}
	if opts.QoS > 2 {
		return nil, fmt.Errorf("invalid QoS %d", opts.QoS)
	}

	pahoOpts := mqtt.NewClientOptions()

	for _, server := range opts.Servers {
		pahoOpts.AddBroker(server.String())
	}

	// Set other options only if they are non-empty or non-nil
	if opts.ClientID != "" {
		pahoOpts.SetClientID(opts.ClientID)
	}
	if opts.Username != "" {
		pahoOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		pahoOpts.SetPassword(opts.Password)
	}
	if opts.KeepAlive > 0 {
		pahoOpts.SetKeepAlive(opts.KeepAlive)
	}
	if opts.PingTimeout > 0 {
		pahoOpts.SetPingTimeout(opts.PingTimeout)
	}
	if opts.ConnectTimeout > 0 {
		pahoOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.WriteTimeout > 0 {
		pahoOpts.SetWriteTimeout(opts.WriteTimeout)
	}

	pahoOpts.SetCleanSession(opts.CleanSession)
	// handlers run one at a time in arrival order
	pahoOpts.SetOrderMatters(true)
	// the caller decides when to reconnect
	pahoOpts.SetAutoReconnect(false)
	pahoOpts.SetConnectRetry(false)
	pahoOpts.SetResumeSubs(false)

	return pahoOpts, nil
}
