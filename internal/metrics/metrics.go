// Package metrics exposes Prometheus counters for the alarm controller.
//
// All methods are safe on a nil *Metrics so components can run without a registry.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alarm"

// Metrics groups the controller's collectors.
type Metrics struct {
	cycles        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	events        prometheus.Counter
	sounding      prometheus.Gauge
	registry      *prometheus.Registry
}

// New creates the collectors and registers them on a private registry.
func New() (*Metrics, error) {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Evaluation cycles by result.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speaker_transitions_total",
			Help:      "Speaker start/stop commands by direction and outcome.",
		}, []string{"direction", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_events_total",
			Help:      "History rows written.",
		}),
		sounding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "speaker_sounding",
			Help:      "1 while the speaker is sounding.",
		}),
		registry: prometheus.NewRegistry(),
	}

	for _, c := range []prometheus.Collector{m.cycles, m.transitions, m.notifications, m.events, m.sounding} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// Cycle counts a finished evaluation cycle.
func (m *Metrics) Cycle(result string) {
	if m == nil {
		return
	}

	m.cycles.WithLabelValues(result).Inc()
}

// Transition counts a speaker command.
func (m *Metrics) Transition(direction string, err error) {
	if m == nil {
		return
	}

	m.transitions.WithLabelValues(direction, outcome(err)).Inc()
}

// Sounding sets the speaker gauge.
func (m *Metrics) Sounding(on bool) {
	if m == nil {
		return
	}

	if on {
		m.sounding.Set(1)
	} else {
		m.sounding.Set(0)
	}
}

// Notification counts a notification delivery.
func (m *Metrics) Notification(err error) {
	if m == nil {
		return
	}

	m.notifications.WithLabelValues(outcome(err)).Inc()
}

// Events counts written history rows.
func (m *Metrics) Events(n int) {
	if m == nil {
		return
	}

	m.events.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server returns an HTTP server for /metrics on the given address.
func (m *Metrics) Server(address string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// IsServerClosed reports whether err is the normal shutdown result of Server.
func IsServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}
