package v1

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
)

// TestStateConversion keeps timestamp, flags and actor across the wire form.
func TestStateConversion(t *testing.T) {
	t.Parallel()

	want := &domain.State{
		Timestamp:  time.Date(2026, 10, 18, 9, 0, 0, 500, time.UTC),
		LastActor:  &domain.Actor{Hostname: "hallway-hub", Username: "resident"},
		IsSounding: true,
		Delayed:    true,
	}

	got, err := StructToState(StateToStruct(want))
	require.NoError(t, err)
	require.True(t, want.Timestamp.Equal(got.Timestamp))
	require.Equal(t, want.LastActor, got.LastActor)
	require.True(t, got.IsSounding)
	require.True(t, got.Delayed)

	empty, err := StructToState(StateToStruct(new(domain.State)))
	require.NoError(t, err)
	require.True(t, empty.Timestamp.IsZero())
	require.Nil(t, empty.LastActor)
}

// TestStructToReading_RequiresFields rejects reports with missing fields instead of zeroing them.
func TestStructToReading_RequiresFields(t *testing.T) {
	t.Parallel()

	reading := &domain.SensorReading{Name: "front", Type: domain.TypeDoor, Enabled: true, Status: 1}

	got, err := StructToReading(ReadingToStruct(reading))
	require.NoError(t, err)
	require.Equal(t, reading, got)

	partial := ReadingToStruct(reading)
	delete(partial.Fields, FieldEnabled)

	_, err = StructToReading(partial)
	require.ErrorIs(t, err, ErrMissingField)

	noType := ReadingToStruct(reading)
	noType.Fields[FieldType] = structpb.NewStringValue("")

	_, err = StructToReading(noType)
	require.ErrorIs(t, err, domain.ErrMalformedReading)
}

// TestStructToReading_RejectsNonIntegerStatus fails instead of truncating the status.
func TestStructToReading_RejectsNonIntegerStatus(t *testing.T) {
	t.Parallel()

	reading := &domain.SensorReading{Name: "front", Type: domain.TypeDoor, Enabled: true}

	for _, status := range []float64{0.5, -0.25, math.NaN(), math.Inf(1), math.Inf(-1), 1 << 40} {
		report := ReadingToStruct(reading)
		report.Fields[FieldStatus] = structpb.NewNumberValue(status)

		_, err := StructToReading(report)
		require.ErrorIs(t, err, ErrMissingField, "status %v", status)
	}

	report := ReadingToStruct(reading)
	report.Fields[FieldStatus] = structpb.NewNumberValue(-3)

	got, err := StructToReading(report)
	require.NoError(t, err)
	require.Equal(t, -3, got.Status)
}

// TestStrings skips non-string list items.
func TestStrings(t *testing.T) {
	t.Parallel()

	v := StringList([]string{"door", "smco"})
	v.GetListValue().Values = append(v.GetListValue().Values, structpb.NewNumberValue(1))

	require.Equal(t, []string{"door", "smco"}, Strings(v))
	require.Empty(t, Strings(nil))
}
