//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/oshokin/alarm-controller/internal/pb/v1"
)

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestClient_RequiresArguments rejects nil actors and readings before dialing out.
func TestClient_RequiresArguments(t *testing.T) {
	t.Parallel()

	c := new(Client)

	_, err := c.TriggerHelp(context.Background(), nil)
	require.ErrorIs(t, err, errActorRequired)

	_, err = c.ReportSensor(context.Background(), nil)
	require.ErrorIs(t, err, errReadingRequired)
}

// TestToResult reads every outcome field.
func TestToResult(t *testing.T) {
	t.Parallel()

	response := &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.FieldTriggered:    pb.StringList([]string{"door"}),
		pb.FieldDisconnected: pb.StringList([]string{"wndw"}),
		pb.FieldSuppressed:   structpb.NewBoolValue(true),
		pb.FieldDelayed:      structpb.NewBoolValue(true),
		pb.FieldSpeaker:      structpb.NewStringValue("started"),
	}}

	require.Equal(t, &Result{
		Triggered:    []string{"door"},
		Disconnected: []string{"wndw"},
		Suppressed:   true,
		Delayed:      true,
		Speaker:      "started",
	}, toResult(response))
}
