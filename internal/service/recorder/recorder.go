// Package recorder writes the alarm history rows for a transition into alarm.
package recorder

import (
	"context"
	"fmt"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
	"github.com/oshokin/alarm-controller/internal/logger"
	"github.com/oshokin/alarm-controller/internal/metrics"
)

// Store appends history rows atomically.
type Store interface {
	Append(ctx context.Context, events []domain.Event) error
}

// Recorder turns a verdict into history rows. It does not detect
// transitions; the caller decides when a verdict is worth recording.
type Recorder struct {
	store   Store
	metrics *metrics.Metrics
}

// New creates a recorder over the store. m may be nil.
func New(store Store, m *metrics.Metrics) *Recorder {
	return &Recorder{
		store:   store,
		metrics: m,
	}
}

// Record writes one connectivity row per disconnected type, then one alarm
// row per triggered type.
func (r *Recorder) Record(ctx context.Context, verdict *domain.Verdict) error {
	events := Events(verdict)
	if len(events) == 0 {
		return nil
	}

	if err := r.store.Append(ctx, events); err != nil {
		return fmt.Errorf("record events: %w", err)
	}

	r.metrics.Events(len(events))

	logger.InfoKV(ctx, "Alarm events recorded",
		"triggered", verdict.TriggeredTypes,
		"disconnected", verdict.DisconnectedTypes,
	)

	return nil
}

// Events builds the rows for a verdict. The sensor type doubles as the row
// name because a type may cover several sensors.
func Events(verdict *domain.Verdict) []domain.Event {
	events := make([]domain.Event, 0, len(verdict.DisconnectedTypes)+len(verdict.TriggeredTypes))

	for _, sensorType := range verdict.DisconnectedTypes {
		events = append(events, domain.Event{
			Kind:        domain.KindConnectivity,
			Type:        sensorType,
			Name:        sensorType,
			Description: domain.DescriptionDisconnected,
		})
	}

	for _, sensorType := range verdict.TriggeredTypes {
		events = append(events, domain.Event{
			Kind:        domain.KindAlarm,
			Type:        sensorType,
			Name:        sensorType,
			Description: domain.DescriptionFor(sensorType),
		})
	}

	return events
}
