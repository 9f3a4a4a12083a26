package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/alarm-controller/internal/config"
	"github.com/oshokin/alarm-controller/internal/logger"
)

const (
	// publishQoS delivers notifications at least once.
	publishQoS = 1
	// disconnectQuiesce is how long paho may spend flushing on close, in milliseconds.
	disconnectQuiesce = 250
	// maxConnectElapsed caps the whole connection retry loop.
	maxConnectElapsed = 30 * time.Second
)

// MQTTPublisher sends payloads over a connected paho client.
type MQTTPublisher struct {
	client mqtt.Client
}

// Connect dials the broker, retrying with exponential backoff.
func Connect(ctx context.Context, settings config.MQTT) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(settings.Broker).
		SetClientID(settings.ClientID).
		SetUsername(settings.Username).
		SetPassword(settings.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.WarnKV(ctx, "MQTT connection lost", "error", err)
		})

	retries := settings.ConnectRetries
	if retries < 1 {
		retries = config.DefaultConnectRetries
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxConnectElapsed

	client := mqtt.NewClient(opts)

	err := backoff.Retry(func() error {
		token := client.Connect()
		if !token.WaitTimeout(maxConnectElapsed) {
			return fmt.Errorf("connect to %s: timed out", settings.Broker)
		}

		if err := token.Error(); err != nil {
			logger.WarnKV(ctx, "Failed to connect to MQTT broker", "broker", settings.Broker, "error", err)

			return err
		}

		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", err)
	}

	logger.InfoKV(ctx, "Connected to MQTT broker", "broker", settings.Broker)

	return &MQTTPublisher{client: client}, nil
}

// Publish sends one payload and waits for the broker to acknowledge it.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, publishQoS, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesce)
	}
}
