package actuator

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
	"github.com/oshokin/alarm-controller/internal/logger"
	"github.com/oshokin/alarm-controller/internal/metrics"
)

// Speaker is the capability to drive the external sound process.
type Speaker interface {
	Start(ctx context.Context, delay bool) error
	Stop(ctx context.Context) error
}

// StateSaver receives a copy of the state after every transition.
type StateSaver interface {
	Save(ctx context.Context, state *domain.State) error
}

// Transition is the effect of one SetSpeaker call.
type Transition int

const (
	// TransitionNone means the speaker was already in the requested state or the command failed.
	TransitionNone Transition = iota
	// TransitionStarted means the speaker went from OFF to ON.
	TransitionStarted
	// TransitionStopped means the speaker went from ON to OFF.
	TransitionStopped
)

// String names the transition for logs.
func (t Transition) String() string {
	switch t {
	case TransitionStarted:
		return "started"
	case TransitionStopped:
		return "stopped"
	default:
		return "none"
	}
}

// DefaultCommandTimeout bounds a single start/stop command.
const DefaultCommandTimeout = 10 * time.Second

// Controller is the single writer of the speaker state.
type Controller struct {
	// speaker dispatches start/stop commands.
	speaker Speaker
	// saver persists state snapshots, optional.
	saver StateSaver
	// metrics counts transitions, optional.
	metrics *metrics.Metrics
	// timeout bounds each command.
	timeout time.Duration
	// now is the clock used for state timestamps.
	now func() time.Time

	// mu protects state.
	mu sync.Mutex
	// state is the current speaker state.
	state *domain.State
}

// Option configures the controller.
type Option func(*Controller)

// WithCommandTimeout overrides DefaultCommandTimeout.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(c *Controller) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithStateSaver persists a snapshot after every transition.
func WithStateSaver(saver StateSaver) Option {
	return func(c *Controller) {
		c.saver = saver
	}
}

// WithMetrics records transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a controller whose speaker starts OFF.
func New(speaker Speaker, opts ...Option) *Controller {
	c := &Controller{
		speaker: speaker,
		timeout: DefaultCommandTimeout,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.state = &domain.State{
		Timestamp: c.now(),
	}

	return c
}

// IsSounding reports whether the speaker is currently ON.
func (c *Controller) IsSounding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.IsSounding
}

// State returns a copy of the current state.
func (c *Controller) State() *domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.Clone()
}

// SetSpeaker moves the speaker to the requested state. Requests matching the
// current state do nothing. A failed command leaves the state unchanged and
// is returned to the caller, which is expected to log it and carry on.
func (c *Controller) SetSpeaker(ctx context.Context, on, delay bool, actor *domain.Actor) (Transition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if on == c.state.IsSounding {
		return TransitionNone, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		transition Transition
		direction  string
		err        error
	)

	if on {
		transition, direction = TransitionStarted, "start"
		err = c.speaker.Start(callCtx, delay)
	} else {
		transition, direction = TransitionStopped, "stop"
		err = c.speaker.Stop(callCtx)
	}

	c.metrics.Transition(direction, err)

	if err != nil {
		logger.ErrorKV(ctx, "Speaker command failed", "command", direction, "delay", delay, "error", err)

		return TransitionNone, fmt.Errorf("speaker %s: %w", direction, err)
	}

	c.state = &domain.State{
		Timestamp:  c.now(),
		LastActor:  actor.Clone(),
		IsSounding: on,
		Delayed:    on && delay,
	}

	c.metrics.Sounding(on)

	logger.InfoKV(ctx, "Speaker state changed", "transition", transition.String(), "delay", delay, "actor", actor.String())

	if c.saver != nil {
		if err = c.saver.Save(ctx, c.state.Clone()); err != nil {
			logger.WarnKV(ctx, "Failed to save speaker state snapshot", "error", err)
		}
	}

	return transition, nil
}
