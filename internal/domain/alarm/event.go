package alarm

import "time"

// Event kinds stored in the history.
const (
	KindAlarm        = "alarm"
	KindConnectivity = "connectivity"
)

// Descriptions stored with history rows.
const (
	DescriptionDisconnected = "No signal received within the expected interval"
	DescriptionUnknown      = "Sensor triggered"
)

// descriptions maps sensor types to the text stored with an alarm row.
//
//nolint:gochecknoglobals // Static lookup table.
var descriptions = map[string]string{
	TypeDoor:   "Door opened",
	TypeWindow: "Window was opened from outside",
	TypeSmoke:  "Smoke alarm detected smoke",
	TypeHelp:   "Immediate help was requested",
}

// DescriptionFor returns the alarm description for a sensor type.
func DescriptionFor(sensorType string) string {
	if description, ok := descriptions[sensorType]; ok {
		return description
	}

	return DescriptionUnknown
}

// Event is one row of the alarm history.
type Event struct {
	// ID is assigned by the store when empty.
	ID string
	// Kind is KindAlarm or KindConnectivity.
	Kind string
	// Type is the sensor type the row is about.
	Type string
	// Name is the sensor name; the type is used when no single sensor applies.
	Name string
	// Description is the human readable text.
	Description string
	// OccurredAt is set by the store when zero.
	OccurredAt time.Time
}
