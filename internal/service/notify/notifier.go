package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/oshokin/alarm-controller/internal/config"
	"github.com/oshokin/alarm-controller/internal/logger"
	"github.com/oshokin/alarm-controller/internal/metrics"
)

// Publisher delivers a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Message is the JSON body of a notification.
type Message struct {
	Triggered []string  `json:"triggered"`
	SentAt    time.Time `json:"sent_at"`
}

// Notifier publishes the triggered types of every alarm-positive cycle.
type Notifier struct {
	publisher Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker
	metrics   *metrics.Metrics
	now       func() time.Time

	// timeout bounds one delivery, including the wait for the broker ack.
	timeout time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithMetrics counts deliveries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

// WithPublishTimeout overrides config.DefaultPublishTimeout.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		n.now = now
	}
}

// New wraps the publisher with a circuit breaker. A nil publisher yields a
// notifier that only logs.
func New(publisher Publisher, topic string, settings config.Breaker, opts ...Option) *Notifier {
	failures := settings.Failures
	if failures < 1 {
		failures = config.DefaultBreakerFailures
	}

	openFor := settings.OpenFor
	if openFor <= 0 {
		openFor = config.DefaultBreakerOpenFor
	}

	n := &Notifier{
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
		timeout:   config.DefaultPublishTimeout,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "notify",
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(failures) //nolint:gosec // Checked above.
			},
		}),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Notify publishes the triggered set, giving up after the publish timeout.
// While the breaker is open the call fails fast with gobreaker.ErrOpenState.
func (n *Notifier) Notify(ctx context.Context, triggered []string) error {
	if n.publisher == nil {
		logger.InfoKV(ctx, "Alarm notification", "triggered", triggered)

		return nil
	}

	payload, err := json.Marshal(&Message{
		Triggered: triggered,
		SentAt:    n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	_, err = n.breaker.Execute(func() (any, error) {
		return nil, n.publisher.Publish(publishCtx, n.topic, payload)
	})

	n.metrics.Notification(err)

	if err != nil {
		return fmt.Errorf("notify %v: %w", triggered, err)
	}

	logger.DebugKV(ctx, "Alarm notification published", "topic", n.topic, "triggered", triggered)

	return nil
}
