package shelly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name        string
		topic       string
		wantDevice  string
		wantMeasure Measurement
		wantErr     error
	}{
		{
			name:        "temperature",
			topic:       "shellies/shellyht-746CEB/sensor/temperature",
			wantDevice:  "shellyht-746CEB",
			wantMeasure: Temperature,
		},
		{
			name:        "humidity",
			topic:       "shellies/shellyht-746CEB/sensor/humidity",
			wantDevice:  "shellyht-746CEB",
			wantMeasure: Humidity,
		},
		{
			name:        "battery on other namespace",
			topic:       "ns/device/sensor/battery",
			wantDevice:  "device",
			wantMeasure: Battery,
		},
		{
			name:        "error",
			topic:       "ns/device/sensor/error",
			wantDevice:  "device",
			wantMeasure: Error,
		},
		{
			name:    "two segments",
			topic:   "shellies/onlytwoparts",
			wantErr: ErrMalformedTopic,
		},
		{
			name:    "three segments",
			topic:   "shellies/shellyht-746CEB/sensor",
			wantErr: ErrMalformedTopic,
		},
		{
			name:    "too many segments",
			topic:   "shellies/shellyht-746CEB/sensor/temperature/extra",
			wantErr: ErrMalformedTopic,
		},
		{
			name:    "empty device",
			topic:   "shellies//sensor/temperature",
			wantErr: ErrMalformedTopic,
		},
		{
			name:    "not a sensor topic",
			topic:   "shellies/shellyht-746CEB/announce/temperature",
			wantErr: ErrMalformedTopic,
		},
		{
			name:    "unknown measurement",
			topic:   "shellies/shellyht-746CEB/sensor/pressure",
			wantErr: ErrUnknownMeasurement,
		},
		{
			name:    "empty topic",
			topic:   "",
			wantErr: ErrMalformedTopic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, m, err := Route(tt.topic)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, device)
				assert.Empty(t, m)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDevice, device)
			assert.Equal(t, tt.wantMeasure, m)
		})
	}
}

func TestTopics(t *testing.T) {
	topics := Topics(Namespace, DeviceID)
	assert.Equal(t, []string{
		"shellies/shellyht-746CEB/sensor/temperature",
		"shellies/shellyht-746CEB/sensor/humidity",
		"shellies/shellyht-746CEB/sensor/battery",
		"shellies/shellyht-746CEB/sensor/error",
	}, topics)

	for _, topic := range topics {
		device, _, err := Route(topic)
		require.NoError(t, err)
		assert.Equal(t, DeviceID, device)
	}
}

func TestParseMeasurement(t *testing.T) {
	m, err := ParseMeasurement("battery")
	require.NoError(t, err)
	assert.Equal(t, Battery, m)

	_, err = ParseMeasurement("Battery")
	assert.ErrorIs(t, err, ErrUnknownMeasurement)
}
