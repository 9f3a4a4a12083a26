package alarm

import (
	"errors"
	"fmt"
	"time"
)

// Well-known sensor types.
const (
	TypeDoor   = "door"
	TypeWindow = "wndw"
	TypeSmoke  = "smco"

	// TypeHelp is the synthetic type produced by a manual help request.
	TypeHelp = "help-source"
)

// VerboseDisconnected marks a sensor the hub has lost contact with.
const VerboseDisconnected = "disconnected"

// ErrMalformedReading is returned when a snapshot row misses a required field.
var ErrMalformedReading = errors.New("malformed sensor reading")

// SensorReading is one physical sensor as seen in the current snapshot.
type SensorReading struct {
	// Name uniquely identifies the sensor.
	Name string
	// Type is the category tag; several sensors may share it.
	Type string
	// Enabled sensors are the only ones that can raise an alarm.
	Enabled bool
	// Status is zero when quiescent and nonzero when triggered.
	Status int
	// Dismiss suppresses a triggered sensor.
	Dismiss bool
	// Verbose is a free-form connectivity tag.
	Verbose string
	// UpdatedAt is when the sensor last reported.
	UpdatedAt time.Time
}

// Triggered reports whether the reading contributes to the alarm.
func (r *SensorReading) Triggered() bool {
	return r.Enabled && r.Status != 0 && !r.Dismiss
}

// Disconnected reports whether the reading carries a connectivity fault.
func (r *SensorReading) Disconnected() bool {
	return r.Verbose == VerboseDisconnected
}

// Validate checks fields the engine cannot evaluate without.
func (r *SensorReading) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty name", ErrMalformedReading)
	}

	if r.Type == "" {
		return fmt.Errorf("%w: sensor %q has no type", ErrMalformedReading, r.Name)
	}

	return nil
}

// LeavingWindow describes the "user is leaving" grace period.
type LeavingWindow struct {
	// Mode is the persisted mode, "leaving" or "left".
	Mode string
	// Elapsed is the time since the window was opened.
	Elapsed time.Duration
}

// Leaving modes.
const (
	ModeLeaving = "leaving"
	ModeLeft    = "left"
)

// DefaultLeavingWindow is how long a leaving window stays open.
const DefaultLeavingWindow = 60 * time.Second

// Active reports whether the window is still open for the given length.
func (w LeavingWindow) Active(length time.Duration) bool {
	return w.Mode == ModeLeaving && w.Elapsed < length
}
