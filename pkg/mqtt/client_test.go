package mqtt

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBrokerURL(t *testing.T) {
	u, err := BrokerURL("broker.local", 1883)
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker.local:1883", u.String())
}

func TestConvertToPahoOptions(t *testing.T) {
	broker, err := url.Parse("tcp://127.0.0.1:1883")
	require.NoError(t, err)

	t.Run("maps fields and disables auto reconnect", func(t *testing.T) {
		opts, err := convertToPahoOptions(&ClientOptions{
			Servers:        []*url.URL{broker},
			ClientID:       "shellypg-test",
			Username:       "user",
			Password:       "secret",
			KeepAlive:      30 * time.Second,
			ConnectTimeout: 5 * time.Second,
			QoS:            1,
		})
		require.NoError(t, err)

		require.Len(t, opts.Servers, 1)
		assert.Equal(t, "tcp://127.0.0.1:1883", opts.Servers[0].String())
		assert.Equal(t, "shellypg-test", opts.ClientID)
		assert.Equal(t, "user", opts.Username)
		assert.Equal(t, "secret", opts.Password)
		assert.EqualValues(t, 30, opts.KeepAlive)
		assert.Equal(t, 5*time.Second, opts.ConnectTimeout)
		assert.True(t, opts.Order)
		assert.False(t, opts.AutoReconnect)
		assert.False(t, opts.ConnectRetry)
	})

	t.Run("requires a broker", func(t *testing.T) {
		_, err := convertToPahoOptions(&ClientOptions{})
		assert.Error(t, err)
	})

	t.Run("rejects invalid qos", func(t *testing.T) {
		_, err := convertToPahoOptions(&ClientOptions{Servers: []*url.URL{broker}, QoS: 3})
		assert.Error(t, err)
	})
}

func TestClientNotConnected(t *testing.T) {
	broker, err := url.Parse("tcp://127.0.0.1:1883")
	require.NoError(t, err)

	c, err := NewClient(ClientOptions{Servers: []*url.URL{broker}}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Subscribe("a/b/sensor/temperature", func(string, []byte) {}), ErrNotConnected)
	c.Disconnect()
}
