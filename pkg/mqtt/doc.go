// Package mqtt wraps the paho MQTT client for a subscriber that owns its
// reconnect policy: paho's own auto-reconnect is disabled and connection loss
// is reported to the caller instead.
package mqtt
