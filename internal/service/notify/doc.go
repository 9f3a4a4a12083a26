// Package notify publishes alarm notifications to an MQTT broker behind a
// circuit breaker, or only logs them when no broker is configured.
package notify
