package v1

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
)

// Field names used inside structpb messages.
const (
	FieldIsSounding        = "is_sounding"
	FieldDelayed           = "delayed"
	FieldTimestamp         = "timestamp"
	FieldLastActor         = "last_actor"
	FieldHostname          = "hostname"
	FieldUsername          = "username"
	FieldTriggered         = "triggered"
	FieldDisconnected      = "disconnected"
	FieldSuppressed        = "suppressed"
	FieldSpeaker           = "speaker"
	FieldFaults            = "faults"
	FieldCheckConnectivity = "check_connectivity"
	FieldName              = "name"
	FieldType              = "type"
	FieldStatus            = "status"
	FieldEnabled           = "enabled"
	FieldDismiss           = "dismiss"
	FieldVerbose           = "verbose"
	FieldID                = "id"
	FieldKind              = "kind"
	FieldDescription       = "description"
	FieldOccurredAt        = "occurred_at"
)

// ErrMissingField is returned when a required message field is absent or has the wrong kind.
var ErrMissingField = errors.New("missing or mistyped field")

// StateToStruct converts the speaker state into its wire form.
func StateToStruct(state *domain.State) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldIsSounding: structpb.NewBoolValue(state.IsSounding),
		FieldDelayed:    structpb.NewBoolValue(state.Delayed),
	}

	if !state.Timestamp.IsZero() {
		fields[FieldTimestamp] = structpb.NewStringValue(state.Timestamp.UTC().Format(time.RFC3339Nano))
	}

	if state.LastActor != nil {
		fields[FieldLastActor] = structpb.NewStructValue(ActorToStruct(state.LastActor))
	}

	return &structpb.Struct{Fields: fields}
}

// StructToState converts the wire form back into the speaker state.
func StructToState(s *structpb.Struct) (*domain.State, error) {
	state := &domain.State{
		IsSounding: s.GetFields()[FieldIsSounding].GetBoolValue(),
		Delayed:    s.GetFields()[FieldDelayed].GetBoolValue(),
	}

	if raw := s.GetFields()[FieldTimestamp].GetStringValue(); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", FieldTimestamp, err)
		}

		state.Timestamp = ts
	}

	if actor := s.GetFields()[FieldLastActor].GetStructValue(); actor != nil {
		state.LastActor = StructToActor(actor)
	}

	return state, nil
}

// ActorToStruct converts an actor into its wire form.
func ActorToStruct(actor *domain.Actor) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldHostname: structpb.NewStringValue(actor.Hostname),
		FieldUsername: structpb.NewStringValue(actor.Username),
	}}
}

// StructToActor converts the wire form into an actor; nil stays nil.
func StructToActor(s *structpb.Struct) *domain.Actor {
	if s == nil {
		return nil
	}

	return &domain.Actor{
		Hostname: s.GetFields()[FieldHostname].GetStringValue(),
		Username: s.GetFields()[FieldUsername].GetStringValue(),
	}
}

// ReadingToStruct converts a sensor report into its wire form.
func ReadingToStruct(reading *domain.SensorReading) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldName:    structpb.NewStringValue(reading.Name),
		FieldType:    structpb.NewStringValue(reading.Type),
		FieldStatus:  structpb.NewNumberValue(float64(reading.Status)),
		FieldEnabled: structpb.NewBoolValue(reading.Enabled),
		FieldDismiss: structpb.NewBoolValue(reading.Dismiss),
		FieldVerbose: structpb.NewStringValue(reading.Verbose),
	}}
}

// StructToReading converts a sensor report from the wire. Every field except
// verbose is required; a missing one is a contract violation, not a zero value.
func StructToReading(s *structpb.Struct) (*domain.SensorReading, error) {
	fields := s.GetFields()

	name, nameOK := fields[FieldName].GetKind().(*structpb.Value_StringValue)
	sensorType, typeOK := fields[FieldType].GetKind().(*structpb.Value_StringValue)
	status, statusOK := fields[FieldStatus].GetKind().(*structpb.Value_NumberValue)
	enabled, enabledOK := fields[FieldEnabled].GetKind().(*structpb.Value_BoolValue)
	dismiss, dismissOK := fields[FieldDismiss].GetKind().(*structpb.Value_BoolValue)

	if !nameOK || !typeOK || !statusOK || !enabledOK || !dismissOK {
		return nil, fmt.Errorf("sensor report: %w", ErrMissingField)
	}

	if !isStatus(status.NumberValue) {
		return nil, fmt.Errorf("sensor report: status %v: %w", status.NumberValue, ErrMissingField)
	}

	reading := &domain.SensorReading{
		Name:    name.StringValue,
		Type:    sensorType.StringValue,
		Status:  int(status.NumberValue),
		Enabled: enabled.BoolValue,
		Dismiss: dismiss.BoolValue,
		Verbose: fields[FieldVerbose].GetStringValue(),
	}

	if err := reading.Validate(); err != nil {
		return nil, err
	}

	return reading, nil
}

// isStatus reports whether v is a whole number in the int32 range.
// NaN fails the range check.
func isStatus(v float64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32 && math.Trunc(v) == v
}

// EventToStruct converts a history row into its wire form.
func EventToStruct(event *domain.Event) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID:          structpb.NewStringValue(event.ID),
		FieldKind:        structpb.NewStringValue(event.Kind),
		FieldType:        structpb.NewStringValue(event.Type),
		FieldName:        structpb.NewStringValue(event.Name),
		FieldDescription: structpb.NewStringValue(event.Description),
		FieldOccurredAt:  structpb.NewStringValue(event.OccurredAt.UTC().Format(time.RFC3339)),
	}}
}

// StructToEvent converts the wire form into a history row.
func StructToEvent(s *structpb.Struct) domain.Event {
	fields := s.GetFields()

	occurred, _ := time.Parse(time.RFC3339, fields[FieldOccurredAt].GetStringValue())

	return domain.Event{
		ID:          fields[FieldID].GetStringValue(),
		Kind:        fields[FieldKind].GetStringValue(),
		Type:        fields[FieldType].GetStringValue(),
		Name:        fields[FieldName].GetStringValue(),
		Description: fields[FieldDescription].GetStringValue(),
		OccurredAt:  occurred,
	}
}

// StringList converts strings into a list value.
func StringList(values []string) *structpb.Value {
	list := make([]*structpb.Value, 0, len(values))
	for _, v := range values {
		list = append(list, structpb.NewStringValue(v))
	}

	return structpb.NewListValue(&structpb.ListValue{Values: list})
}

// Strings reads a list value of strings, skipping other kinds.
func Strings(v *structpb.Value) []string {
	values := v.GetListValue().GetValues()
	out := make([]string, 0, len(values))

	for _, item := range values {
		if s, ok := item.GetKind().(*structpb.Value_StringValue); ok {
			out = append(out, s.StringValue)
		}
	}

	return out
}
