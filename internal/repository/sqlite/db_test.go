package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
)

// TestOpen_EndToEnd exercises the real driver: schema, sensors, leaving mode and history.
func TestOpen_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	db, err := Open(ctx, filepath.Join(t.TempDir(), "alarm.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	sensors := NewSensorRepository(db)
	require.NoError(t, sensors.Upsert(ctx, &domain.SensorReading{Name: "front", Type: "door", Enabled: true, Status: 1}))
	require.NoError(t, sensors.Upsert(ctx, &domain.SensorReading{Name: "front", Type: "door", Enabled: true, Status: 0}))
	require.NoError(t, sensors.Upsert(ctx, &domain.SensorReading{Name: "hall", Type: "smco", Enabled: true}))

	readings, err := sensors.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	require.Equal(t, 0, readings[0].Status)

	leaving := NewLeavingRepository(db)

	window, err := leaving.Window(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.ModeLeft, window.Mode)

	require.NoError(t, leaving.BeginLeaving(ctx))

	window, err = leaving.Window(ctx)
	require.NoError(t, err)
	require.True(t, window.Active(domain.DefaultLeavingWindow))

	require.NoError(t, leaving.MarkLeft(ctx))

	window, err = leaving.Window(ctx)
	require.NoError(t, err)
	require.False(t, window.Active(domain.DefaultLeavingWindow))

	events := NewEventRepository(db)
	require.NoError(t, events.Append(ctx, []domain.Event{
		{Kind: domain.KindAlarm, Type: "door", Name: "door", Description: "Door opened"},
	}))

	listed, err := events.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "Door opened", listed[0].Description)
}
