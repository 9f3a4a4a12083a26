package alarm

import "time"

// Actor identifies who triggered a cycle (used for manual help requests).
type Actor struct {
	// Hostname is the machine name the request came from.
	Hostname string
	// Username is the system user who sent the request.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// String renders the actor as username@hostname.
func (a *Actor) String() string {
	if a == nil {
		return "<system>"
	}

	return a.Username + "@" + a.Hostname
}

// State represents the speaker actuator at a specific point in time.
type State struct {
	// Timestamp is when the speaker state was last changed.
	Timestamp time.Time
	// LastActor is who caused the last change, nil for sensor-driven cycles.
	LastActor *Actor
	// IsSounding indicates whether the speaker is currently sounding.
	IsSounding bool
	// Delayed reports whether the last start was issued with the delay modifier.
	Delayed bool
}

// Clone returns a copy of the state to avoid leaking internal references.
func (s *State) Clone() *State {
	return &State{
		Timestamp:  s.Timestamp,
		LastActor:  s.LastActor.Clone(),
		IsSounding: s.IsSounding,
		Delayed:    s.Delayed,
	}
}
