package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
	"github.com/oshokin/alarm-controller/internal/logger"
	"github.com/oshokin/alarm-controller/internal/metrics"
	"github.com/oshokin/alarm-controller/internal/service/actuator"
)

// SnapshotSource supplies the current sensor readings.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]domain.SensorReading, error)
}

// LeavingOracle reports the leaving window and closes it once expired.
type LeavingOracle interface {
	Window(ctx context.Context) (domain.LeavingWindow, error)
	MarkLeft(ctx context.Context) error
}

// Recorder writes history rows for a transition into alarm.
type Recorder interface {
	Record(ctx context.Context, verdict *domain.Verdict) error
}

// Actuator owns the speaker state.
type Actuator interface {
	IsSounding() bool
	SetSpeaker(ctx context.Context, on, delay bool, actor *domain.Actor) (actuator.Transition, error)
}

// Notifier is told about every alarm-positive cycle.
type Notifier interface {
	Notify(ctx context.Context, triggered []string) error
}

// Request selects the kind of cycle to run.
type Request struct {
	// Help short-circuits aggregation with the help-source verdict.
	Help bool
	// CheckConnectivity collects disconnected sensor types.
	CheckConnectivity bool
	// Actor is who asked for the cycle, nil for sensor-driven cycles.
	Actor *domain.Actor
}

// Outcome describes what a completed cycle did.
type Outcome struct {
	// Verdict is the aggregated sensor state.
	Verdict *domain.Verdict
	// Suppressed is set for a door-only alarm inside the leaving window.
	Suppressed bool
	// Delay is the delay flag sent with the ON request.
	Delay bool
	// Recorded is set when history rows were written.
	Recorded bool
	// Transition is what the actuator did.
	Transition actuator.Transition
	// Faults joins collaborator failures the cycle tolerated.
	Faults error
}

// Cycle results used in logs and metrics.
const (
	resultQuiet      = "quiet"
	resultAlarm      = "alarm"
	resultSuppressed = "suppressed"
	resultAborted    = "aborted"
)

// Engine runs decision cycles one at a time.
type Engine struct {
	source   SnapshotSource
	leaving  LeavingOracle
	recorder Recorder
	actuator Actuator
	notifier Notifier
	metrics  *metrics.Metrics
	window   time.Duration

	// mu serializes cycles; everything below is only touched under it.
	mu sync.Mutex
	// cycle numbers cycles for log correlation.
	cycle uint64
	// pendingRecorded is set when history was written for an OFF->ON
	// transition whose start command has not succeeded yet.
	pendingRecorded bool
}

// Option configures the engine.
type Option func(*Engine)

// WithLeavingWindow overrides domain.DefaultLeavingWindow.
func WithLeavingWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.window = window
		}
	}
}

// WithMetrics counts cycles.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New wires the engine to its collaborators.
func New(
	source SnapshotSource,
	leaving LeavingOracle,
	recorder Recorder,
	act Actuator,
	notifier Notifier,
	opts ...Option,
) *Engine {
	e := &Engine{
		source:   source,
		leaving:  leaving,
		recorder: recorder,
		actuator: act,
		notifier: notifier,
		window:   domain.DefaultLeavingWindow,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Evaluate runs one cycle to completion. It returns an error only when the
// cycle was aborted before touching the speaker: a failed snapshot, leaving
// or history query, or a malformed reading. Speaker and notifier failures
// are reported in Outcome.Faults.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cycle++
	ctx = logger.WithKV(ctx, "cycle", e.cycle, "help", req.Help)

	outcome, err := e.evaluate(ctx, req)
	if err != nil {
		e.metrics.Cycle(resultAborted)
		logger.ErrorKV(ctx, "Cycle aborted", "error", err)

		return nil, err
	}

	result := resultQuiet

	switch {
	case outcome.Suppressed:
		result = resultSuppressed
	case outcome.Verdict.Alarm():
		result = resultAlarm
	}

	e.metrics.Cycle(result)

	logger.DebugKV(ctx, "Cycle finished",
		"result", result,
		"triggered", outcome.Verdict.TriggeredTypes,
		"transition", outcome.Transition.String(),
		"recorded", outcome.Recorded,
	)

	return outcome, nil
}

//nolint:cyclop // The cycle is a straight sequence of guarded steps.
func (e *Engine) evaluate(ctx context.Context, req Request) (*Outcome, error) {
	verdict, err := e.verdict(ctx, req)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Verdict: verdict,
	}

	var faults []error

	if !verdict.Alarm() {
		e.pendingRecorded = false

		outcome.Transition, err = e.actuator.SetSpeaker(ctx, false, false, req.Actor)
		outcome.Faults = err

		return outcome, nil
	}

	doorOnly := verdict.DoorOnly()
	if doorOnly {
		outcome.Suppressed, err = e.currentlyLeaving(ctx)
		if err != nil {
			return nil, err
		}
	}

	outcome.Delay = doorOnly

	if !e.actuator.IsSounding() && !outcome.Suppressed && !e.pendingRecorded {
		if err = e.recorder.Record(ctx, verdict); err != nil {
			if !req.Help {
				return nil, err
			}

			// A help request still sounds the speaker when history is unavailable.
			logger.ErrorKV(ctx, "Help history write failed", "error", err)

			faults = append(faults, err)
		} else {
			outcome.Recorded = true
			e.pendingRecorded = true
		}
	}

	outcome.Transition, err = e.actuator.SetSpeaker(ctx, true, outcome.Delay, req.Actor)
	if err != nil {
		faults = append(faults, err)
	}

	if e.actuator.IsSounding() {
		e.pendingRecorded = false
	}

	// Existing alarms re-notify on every cycle, after the speaker was handled.
	if err = e.notifier.Notify(ctx, verdict.TriggeredTypes); err != nil {
		logger.WarnKV(ctx, "Notification failed", "error", err)

		faults = append(faults, fmt.Errorf("notify: %w", err))
	}

	outcome.Faults = errors.Join(faults...)

	return outcome, nil
}

// verdict aggregates the snapshot, or returns the help verdict without reading it.
func (e *Engine) verdict(ctx context.Context, req Request) (*domain.Verdict, error) {
	if req.Help {
		return domain.HelpVerdict(), nil
	}

	readings, err := e.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	for i := range readings {
		if err = readings[i].Validate(); err != nil {
			return nil, err
		}
	}

	return domain.Aggregate(readings, req.CheckConnectivity), nil
}

// currentlyLeaving reports whether the leaving window is open. A closed
// window advances the stored mode to "left" on every check.
func (e *Engine) currentlyLeaving(ctx context.Context) (bool, error) {
	window, err := e.leaving.Window(ctx)
	if err != nil {
		return false, fmt.Errorf("query leaving window: %w", err)
	}

	if window.Active(e.window) {
		logger.InfoKV(ctx, "Door alarm inside leaving window", "elapsed", window.Elapsed)

		return true, nil
	}

	if err = e.leaving.MarkLeft(ctx); err != nil {
		return false, fmt.Errorf("close leaving window: %w", err)
	}

	return false, nil
}
