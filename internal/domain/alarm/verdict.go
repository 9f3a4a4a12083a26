package alarm

import "slices"

// TypeSet is an insertion-ordered set of sensor types.
type TypeSet []string

// Add appends the type unless it is already present.
func (s TypeSet) Add(sensorType string) TypeSet {
	if slices.Contains(s, sensorType) {
		return s
	}

	return append(s, sensorType)
}

// Contains reports whether the type is in the set.
func (s TypeSet) Contains(sensorType string) bool {
	return slices.Contains(s, sensorType)
}

// Verdict is the outcome of aggregating one snapshot.
type Verdict struct {
	// TriggeredTypes are the distinct types currently in alarm condition.
	TriggeredTypes TypeSet
	// DisconnectedTypes are the distinct types flagged disconnected.
	// Only populated when the cycle asked for a connectivity check.
	DisconnectedTypes TypeSet
}

// Alarm reports whether any sensor type is in alarm condition.
func (v *Verdict) Alarm() bool {
	return len(v.TriggeredTypes) > 0
}

// DoorOnly reports whether the door is the sole triggered type.
// Only this verdict is eligible for leaving-window suppression.
func (v *Verdict) DoorOnly() bool {
	return len(v.TriggeredTypes) == 1 && v.TriggeredTypes[0] == TypeDoor
}

// Clone returns a copy with independent slices.
func (v *Verdict) Clone() *Verdict {
	return &Verdict{
		TriggeredTypes:    slices.Clone(v.TriggeredTypes),
		DisconnectedTypes: slices.Clone(v.DisconnectedTypes),
	}
}

// HelpVerdict is the verdict of a manual help request.
func HelpVerdict() *Verdict {
	return &Verdict{
		TriggeredTypes: TypeSet{TypeHelp},
	}
}

// Aggregate derives a verdict from the snapshot alone.
func Aggregate(readings []SensorReading, checkConnectivity bool) *Verdict {
	verdict := new(Verdict)

	for i := range readings {
		reading := &readings[i]

		if reading.Triggered() {
			verdict.TriggeredTypes = verdict.TriggeredTypes.Add(reading.Type)
		}

		if checkConnectivity && reading.Disconnected() {
			verdict.DisconnectedTypes = verdict.DisconnectedTypes.Add(reading.Type)
		}
	}

	return verdict
}
