package server

import (
	"context"
	"fmt"
	"time"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
	"github.com/oshokin/alarm-controller/internal/logger"
	"github.com/oshokin/alarm-controller/internal/service/engine"
)

// cycleRunner runs decision cycles.
type cycleRunner interface {
	Evaluate(ctx context.Context, req engine.Request) (*engine.Outcome, error)
}

// sensorWriter stores sensor reports.
type sensorWriter interface {
	Upsert(ctx context.Context, reading *domain.SensorReading) error
}

// leavingWriter opens the leaving window.
type leavingWriter interface {
	BeginLeaving(ctx context.Context) error
}

// eventLister reads history rows.
type eventLister interface {
	List(ctx context.Context, limit int) ([]domain.Event, error)
}

// stateReader exposes the speaker state.
type stateReader interface {
	State() *domain.State
}

// service glues the engine to the stores behind the gRPC API.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// cycles runs decision cycles.
	cycles cycleRunner
	// sensors stores sensor reports.
	sensors sensorWriter
	// leaving opens the leaving window.
	leaving leavingWriter
	// events lists history rows.
	events eventLister
	// speaker reports the speaker state.
	speaker stateReader
}

// Evaluate runs one cycle over the stored snapshot.
func (s *service) Evaluate(ctx context.Context, checkConnectivity bool) (*engine.Outcome, error) {
	return s.cycles.Evaluate(ctx, engine.Request{CheckConnectivity: checkConnectivity})
}

// TriggerHelp runs a help cycle on behalf of the actor.
func (s *service) TriggerHelp(ctx context.Context, actor *domain.Actor) (*engine.Outcome, error) {
	logger.InfoKV(ctx, "Help requested", "actor", actor.String())

	return s.cycles.Evaluate(ctx, engine.Request{Help: true, Actor: actor})
}

// ReportSensor stores the reading, then evaluates the new snapshot.
func (s *service) ReportSensor(ctx context.Context, reading *domain.SensorReading) (*engine.Outcome, error) {
	if err := s.sensors.Upsert(ctx, reading); err != nil {
		return nil, fmt.Errorf("store sensor report: %w", err)
	}

	logger.DebugKV(ctx, "Sensor report stored", "name", reading.Name, "type", reading.Type, "status", reading.Status)

	return s.cycles.Evaluate(ctx, engine.Request{})
}

// BeginLeaving opens the leaving window.
func (s *service) BeginLeaving(ctx context.Context) error {
	if err := s.leaving.BeginLeaving(ctx); err != nil {
		return fmt.Errorf("begin leaving: %w", err)
	}

	logger.Info(ctx, "Leaving mode started")

	return nil
}

// SpeakerState returns the current speaker state.
func (s *service) SpeakerState(context.Context) *domain.State {
	return s.speaker.State()
}

// ListEvents returns the newest history rows.
func (s *service) ListEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	events, err := s.events.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	return events, nil
}

// runSweeps evaluates with a connectivity check every interval until ctx is done.
func (s *service) runSweeps(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Evaluate(ctx, true); err != nil {
				logger.WarnKV(ctx, "Connectivity sweep failed", "error", err)
			}
		}
	}
}
