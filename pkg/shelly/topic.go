// Package shelly maps the MQTT topics published by Shelly H&T sensors to
// device ids and measurement kinds.
package shelly

import (
	"errors"
	"fmt"
	"strings"
)

// topic: NAMESPACE/DEVICE_ID/sensor/MEASUREMENT
//
// Example:
// mosquitto_pub -t shellies/shellyht-746CEB/sensor/temperature -m '21.50'
// mosquitto_pub -t shellies/shellyht-746CEB/sensor/humidity -m '47'

const (
	// Namespace is the first topic segment Shelly devices publish under.
	Namespace = "shellies"
	// DeviceID is the one sensor the bridge listens to.
	DeviceID = "shellyht-746CEB"

	sensorSegment = "sensor"
	topicSegments = 4
)

var (
	ErrMalformedTopic     = errors.New("malformed topic")
	ErrUnknownMeasurement = errors.New("unknown measurement")
)

// Measurement is one of the sensor channels a device publishes.
type Measurement string

const (
	Temperature Measurement = "temperature"
	Humidity    Measurement = "humidity"
	Battery     Measurement = "battery"
	Error       Measurement = "error"
)

// Measurements lists every known channel in subscription order.
var Measurements = []Measurement{Temperature, Humidity, Battery, Error}

// ParseMeasurement returns the Measurement named by s.
func ParseMeasurement(s string) (Measurement, error) {
	for _, m := range Measurements {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMeasurement, s)
}

// Route extracts the device id and measurement from a sensor topic.
func Route(topic string) (string, Measurement, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != topicSegments {
		return "", "", fmt.Errorf("%w: %q has %d segments, expected namespace/device/sensor/measurement",
			ErrMalformedTopic, topic, len(parts))
	}
	if parts[0] == "" || parts[1] == "" || parts[2] != sensorSegment {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}

	m, err := ParseMeasurement(parts[3])
	if err != nil {
		return "", "", err
	}
	return parts[1], m, nil
}

// Topic builds the topic a device publishes measurement m on.
func Topic(namespace, deviceID string, m Measurement) string {
	return fmt.Sprintf("%s/%s/%s/%s", namespace, deviceID, sensorSegment, m)
}

// Topics returns the topics for every measurement of a device.
func Topics(namespace, deviceID string) []string {
	topics := make([]string, len(Measurements))
	for i, m := range Measurements {
		topics[i] = Topic(namespace, deviceID, m)
	}
	return topics
}
