package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
	"github.com/oshokin/alarm-controller/internal/config"
	"github.com/oshokin/alarm-controller/internal/service/actuator"
	"github.com/oshokin/alarm-controller/internal/service/notify"
)

var (
	errTestStorage = errors.New("storage unavailable")
	errTestSpeaker = errors.New("sound process failed")
	errTestNotify  = errors.New("broker unreachable")
)

// fakeSource returns a fixed snapshot.
type fakeSource struct {
	readings []domain.SensorReading
	err      error
	calls    int
}

func (f *fakeSource) Snapshot(context.Context) ([]domain.SensorReading, error) {
	f.calls++

	return f.readings, f.err
}

// fakeOracle serves a fixed window and counts MarkLeft calls.
type fakeOracle struct {
	window    domain.LeavingWindow
	err       error
	markLeft  int
	windowHit int
}

func (f *fakeOracle) Window(context.Context) (domain.LeavingWindow, error) {
	f.windowHit++

	return f.window, f.err
}

func (f *fakeOracle) MarkLeft(context.Context) error {
	f.markLeft++
	f.window.Mode = domain.ModeLeft

	return nil
}

// fakeRecorder keeps every recorded verdict.
type fakeRecorder struct {
	verdicts []*domain.Verdict
	err      error
}

func (f *fakeRecorder) Record(_ context.Context, v *domain.Verdict) error {
	if f.err != nil {
		return f.err
	}

	f.verdicts = append(f.verdicts, v.Clone())

	return nil
}

// fakeNotifier keeps every notified set.
type fakeNotifier struct {
	sets [][]string
	err  error
	// onNotify runs before the set is kept.
	onNotify func()
}

func (f *fakeNotifier) Notify(_ context.Context, triggered []string) error {
	if f.onNotify != nil {
		f.onNotify()
	}

	f.sets = append(f.sets, append([]string(nil), triggered...))

	return f.err
}

// fakeSpeaker records start/stop commands.
type fakeSpeaker struct {
	mu     sync.Mutex
	starts []bool
	stops  int
	err    error
}

func (f *fakeSpeaker) Start(_ context.Context, delay bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.starts = append(f.starts, delay)

	return f.err
}

func (f *fakeSpeaker) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stops++

	return f.err
}

// harness bundles an engine with its fakes.
type harness struct {
	source   *fakeSource
	oracle   *fakeOracle
	recorder *fakeRecorder
	notifier *fakeNotifier
	speaker  *fakeSpeaker
	actuator *actuator.Controller
	engine   *Engine
}

func newHarness(readings ...domain.SensorReading) *harness {
	h := &harness{
		source:   &fakeSource{readings: readings},
		oracle:   &fakeOracle{window: domain.LeavingWindow{Mode: domain.ModeLeft, Elapsed: time.Hour}},
		recorder: new(fakeRecorder),
		notifier: new(fakeNotifier),
		speaker:  new(fakeSpeaker),
	}

	h.actuator = actuator.New(h.speaker)
	h.engine = New(h.source, h.oracle, h.recorder, h.actuator, h.notifier)

	return h
}

func sensor(name, sensorType string, status int) domain.SensorReading {
	return domain.SensorReading{Name: name, Type: sensorType, Enabled: true, Status: status}
}

// TestEvaluate_QuietSnapshot requests OFF and stops a sounding speaker without logging.
func TestEvaluate_QuietSnapshot(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("front", domain.TypeDoor, 0), sensor("hall", domain.TypeSmoke, 0))
	ctx := context.Background()

	_, err := h.actuator.SetSpeaker(ctx, true, false, nil)
	require.NoError(t, err)

	outcome, err := h.engine.Evaluate(ctx, Request{})
	require.NoError(t, err)
	require.False(t, outcome.Verdict.Alarm())
	require.Equal(t, actuator.TransitionStopped, outcome.Transition)
	require.Equal(t, 1, h.speaker.stops)
	require.False(t, h.actuator.IsSounding())
	require.Empty(t, h.recorder.verdicts)
	require.Empty(t, h.notifier.sets)
	require.Zero(t, h.oracle.windowHit)
}

// TestEvaluate_DisabledAndDismissed never alarms on disabled or dismissed sensors.
func TestEvaluate_DisabledAndDismissed(t *testing.T) {
	t.Parallel()

	h := newHarness(
		domain.SensorReading{Name: "front", Type: domain.TypeDoor, Enabled: false, Status: 1},
		domain.SensorReading{Name: "hall", Type: domain.TypeSmoke, Enabled: true, Status: 1, Dismiss: true},
	)

	outcome, err := h.engine.Evaluate(context.Background(), Request{})
	require.NoError(t, err)
	require.False(t, outcome.Verdict.Alarm())
	require.Empty(t, h.speaker.starts)
	require.Zero(t, h.speaker.stops)
}

// TestEvaluate_DoorOnlyWindowClosed starts delayed and logs once on OFF->ON.
func TestEvaluate_DoorOnlyWindowClosed(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("front", domain.TypeDoor, 1))
	ctx := context.Background()

	outcome, err := h.engine.Evaluate(ctx, Request{})
	require.NoError(t, err)
	require.Equal(t, domain.TypeSet{domain.TypeDoor}, outcome.Verdict.TriggeredTypes)
	require.True(t, outcome.Delay)
	require.False(t, outcome.Suppressed)
	require.True(t, outcome.Recorded)
	require.Equal(t, actuator.TransitionStarted, outcome.Transition)
	require.Equal(t, []bool{true}, h.speaker.starts)
	require.Len(t, h.recorder.verdicts, 1)
	require.Equal(t, 1, h.oracle.markLeft)
	require.Equal(t, [][]string{{domain.TypeDoor}}, h.notifier.sets)

	// Unchanged snapshot: no second log, no second start, but a re-notify.
	outcome, err = h.engine.Evaluate(ctx, Request{})
	require.NoError(t, err)
	require.False(t, outcome.Recorded)
	require.Equal(t, actuator.TransitionNone, outcome.Transition)
	require.Len(t, h.speaker.starts, 1)
	require.Len(t, h.recorder.verdicts, 1)
	require.Len(t, h.notifier.sets, 2)
}

// TestEvaluate_DoorOnlyWindowActive starts delayed without writing history.
func TestEvaluate_DoorOnlyWindowActive(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("front", domain.TypeDoor, 1))
	h.oracle.window = domain.LeavingWindow{Mode: domain.ModeLeaving, Elapsed: 10 * time.Second}

	outcome, err := h.engine.Evaluate(context.Background(), Request{})
	require.NoError(t, err)
	require.True(t, outcome.Suppressed)
	require.True(t, outcome.Delay)
	require.False(t, outcome.Recorded)
	require.Equal(t, []bool{true}, h.speaker.starts)
	require.Empty(t, h.recorder.verdicts)
	require.Zero(t, h.oracle.markLeft)
	require.Len(t, h.notifier.sets, 1)
}

// TestEvaluate_LeavingWindowExpiry closes a 60s-old window exactly once per check.
func TestEvaluate_LeavingWindowExpiry(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("front", domain.TypeDoor, 1))
	h.oracle.window = domain.LeavingWindow{Mode: domain.ModeLeaving, Elapsed: 60 * time.Second}

	outcome, err := h.engine.Evaluate(context.Background(), Request{})
	require.NoError(t, err)
	require.False(t, outcome.Suppressed)
	require.True(t, outcome.Recorded)
	require.Equal(t, 1, h.oracle.windowHit)
	require.Equal(t, 1, h.oracle.markLeft)
}

// TestEvaluate_MultiType starts immediately and logs one row per type.
func TestEvaluate_MultiType(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("hall", domain.TypeSmoke, 1), sensor("front", domain.TypeDoor, 1))
	h.oracle.window = domain.LeavingWindow{Mode: domain.ModeLeaving}

	outcome, err := h.engine.Evaluate(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, domain.TypeSet{domain.TypeSmoke, domain.TypeDoor}, outcome.Verdict.TriggeredTypes)
	require.False(t, outcome.Delay)
	require.False(t, outcome.Suppressed)
	require.Equal(t, []bool{false}, h.speaker.starts)
	require.Len(t, h.recorder.verdicts, 1)
	require.Len(t, h.recorder.verdicts[0].TriggeredTypes, 2)

	// Multi-type sets never consult the leaving window.
	require.Zero(t, h.oracle.windowHit)
}

// TestEvaluate_SingleNonDoor starts without delay.
func TestEvaluate_SingleNonDoor(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("kitchen", domain.TypeWindow, 1), sensor("bedroom", domain.TypeWindow, 3))

	outcome, err := h.engine.Evaluate(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, domain.TypeSet{domain.TypeWindow}, outcome.Verdict.TriggeredTypes)
	require.False(t, outcome.Delay)
	require.Equal(t, []bool{false}, h.speaker.starts)
}

// TestEvaluate_Help bypasses the snapshot even when every sensor is disabled.
func TestEvaluate_Help(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.SensorReading{Name: "front", Type: domain.TypeDoor, Enabled: false, Status: 1})
	actor := &domain.Actor{Hostname: "kitchen-echo", Username: "resident"}

	outcome, err := h.engine.Evaluate(context.Background(), Request{Help: true, CheckConnectivity: true, Actor: actor})
	require.NoError(t, err)
	require.Equal(t, domain.TypeSet{domain.TypeHelp}, outcome.Verdict.TriggeredTypes)
	require.Empty(t, outcome.Verdict.DisconnectedTypes)
	require.Zero(t, h.source.calls)
	require.Equal(t, []bool{false}, h.speaker.starts)
	require.Len(t, h.recorder.verdicts, 1)
	require.Equal(t, actor, h.actuator.State().LastActor)
}

// TestEvaluate_Connectivity records disconnected types on the transition.
func TestEvaluate_Connectivity(t *testing.T) {
	t.Parallel()

	h := newHarness(
		sensor("hall", domain.TypeSmoke, 1),
		domain.SensorReading{Name: "kitchen", Type: domain.TypeWindow, Enabled: true, Verbose: domain.VerboseDisconnected},
	)

	outcome, err := h.engine.Evaluate(context.Background(), Request{CheckConnectivity: true})
	require.NoError(t, err)
	require.Equal(t, domain.TypeSet{domain.TypeWindow}, outcome.Verdict.DisconnectedTypes)
	require.Equal(t, domain.TypeSet{domain.TypeWindow}, h.recorder.verdicts[0].DisconnectedTypes)

	h2 := newHarness(h.source.readings...)

	outcome, err = h2.engine.Evaluate(context.Background(), Request{})
	require.NoError(t, err)
	require.Empty(t, outcome.Verdict.DisconnectedTypes)
}

// TestEvaluate_SnapshotFailure aborts and leaves the speaker untouched.
func TestEvaluate_SnapshotFailure(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()

	_, err := h.actuator.SetSpeaker(ctx, true, false, nil)
	require.NoError(t, err)

	h.source.err = errTestStorage

	outcome, err := h.engine.Evaluate(ctx, Request{})
	require.ErrorIs(t, err, errTestStorage)
	require.Nil(t, outcome)
	require.True(t, h.actuator.IsSounding())
	require.Zero(t, h.speaker.stops)
}

// TestEvaluate_MalformedReading fails the cycle instead of treating the row as quiet.
func TestEvaluate_MalformedReading(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("front", domain.TypeDoor, 1), domain.SensorReading{Name: "ghost", Enabled: true, Status: 1})

	_, err := h.engine.Evaluate(context.Background(), Request{})
	require.ErrorIs(t, err, domain.ErrMalformedReading)
	require.Empty(t, h.speaker.starts)
	require.Empty(t, h.notifier.sets)
}

// TestEvaluate_LeavingQueryFailure aborts a door-only cycle before actuation.
func TestEvaluate_LeavingQueryFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("front", domain.TypeDoor, 1))
	h.oracle.err = errTestStorage

	_, err := h.engine.Evaluate(context.Background(), Request{})
	require.ErrorIs(t, err, errTestStorage)
	require.Empty(t, h.speaker.starts)
	require.Empty(t, h.recorder.verdicts)
}

// TestEvaluate_HistoryFailure aborts sensor cycles but not help cycles.
func TestEvaluate_HistoryFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("hall", domain.TypeSmoke, 1))
	h.recorder.err = errTestStorage

	_, err := h.engine.Evaluate(context.Background(), Request{})
	require.ErrorIs(t, err, errTestStorage)
	require.Empty(t, h.speaker.starts)

	outcome, err := h.engine.Evaluate(context.Background(), Request{Help: true})
	require.NoError(t, err)
	require.ErrorIs(t, outcome.Faults, errTestStorage)
	require.Equal(t, actuator.TransitionStarted, outcome.Transition)
	require.True(t, h.actuator.IsSounding())
}

// TestEvaluate_SpeakerFailure completes the cycle and does not log the same transition twice.
func TestEvaluate_SpeakerFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("hall", domain.TypeSmoke, 1))
	h.speaker.err = errTestSpeaker
	ctx := context.Background()

	outcome, err := h.engine.Evaluate(ctx, Request{})
	require.NoError(t, err)
	require.ErrorIs(t, outcome.Faults, errTestSpeaker)
	require.True(t, outcome.Recorded)
	require.False(t, h.actuator.IsSounding())

	// The start is retried, the history row is not.
	h.speaker.err = nil

	outcome, err = h.engine.Evaluate(ctx, Request{})
	require.NoError(t, err)
	require.NoError(t, outcome.Faults)
	require.False(t, outcome.Recorded)
	require.Equal(t, actuator.TransitionStarted, outcome.Transition)
	require.Len(t, h.speaker.starts, 2)
	require.Len(t, h.recorder.verdicts, 1)
}

// TestEvaluate_NotifyFailure still sounds the speaker.
func TestEvaluate_NotifyFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("hall", domain.TypeSmoke, 1))
	h.notifier.err = errTestNotify

	outcome, err := h.engine.Evaluate(context.Background(), Request{})
	require.NoError(t, err)
	require.ErrorIs(t, outcome.Faults, errTestNotify)
	require.True(t, h.actuator.IsSounding())
}

// TestEvaluate_SpeakerBeforeNotify starts the speaker before the notification goes out.
func TestEvaluate_SpeakerBeforeNotify(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("hall", domain.TypeSmoke, 1))

	var soundingAtNotify bool

	h.notifier.onNotify = func() {
		soundingAtNotify = h.actuator.IsSounding()
	}

	_, err := h.engine.Evaluate(context.Background(), Request{})
	require.NoError(t, err)
	require.True(t, soundingAtNotify)
}

// blockingPublisher waits for the broker ack until its context ends.
type blockingPublisher struct{}

func (blockingPublisher) Publish(ctx context.Context, _ string, _ []byte) error {
	<-ctx.Done()

	return ctx.Err()
}

// TestEvaluate_UnacknowledgedNotification still sounds help and releases the cycle.
func TestEvaluate_UnacknowledgedNotification(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newHarness()
		notifier := notify.New(blockingPublisher{}, "home/alarm/notify", config.Breaker{},
			notify.WithPublishTimeout(time.Second))
		e := New(h.source, h.oracle, h.recorder, h.actuator, notifier)

		outcome, err := e.Evaluate(context.Background(), Request{Help: true})
		require.NoError(t, err)
		require.Equal(t, actuator.TransitionStarted, outcome.Transition)
		require.ErrorIs(t, outcome.Faults, context.DeadlineExceeded)
		require.True(t, h.actuator.IsSounding())
		require.Equal(t, []bool{false}, h.speaker.starts)

		// The lock was released: an all-clear can still stop the speaker.
		h.source.readings = []domain.SensorReading{sensor("hall", domain.TypeSmoke, 0)}

		outcome, err = e.Evaluate(context.Background(), Request{})
		require.NoError(t, err)
		require.Equal(t, actuator.TransitionStopped, outcome.Transition)
	})
}

// TestEvaluate_DoorStartedWhileLeaving stays unlogged after the window expires.
func TestEvaluate_DoorStartedWhileLeaving(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("front", domain.TypeDoor, 1))
	h.oracle.window = domain.LeavingWindow{Mode: domain.ModeLeaving, Elapsed: 30 * time.Second}
	ctx := context.Background()

	outcome, err := h.engine.Evaluate(ctx, Request{})
	require.NoError(t, err)
	require.True(t, outcome.Suppressed)
	require.Equal(t, actuator.TransitionStarted, outcome.Transition)

	h.oracle.window = domain.LeavingWindow{Mode: domain.ModeLeaving, Elapsed: 90 * time.Second}

	outcome, err = h.engine.Evaluate(ctx, Request{})
	require.NoError(t, err)
	require.False(t, outcome.Suppressed)
	require.False(t, outcome.Recorded)
	require.Equal(t, actuator.TransitionNone, outcome.Transition)
	require.Empty(t, h.recorder.verdicts)
	require.Equal(t, 1, h.oracle.markLeft)
}

// TestEvaluate_NewTransitionLogsAgain logs again after the alarm cleared and re-triggered.
func TestEvaluate_NewTransitionLogsAgain(t *testing.T) {
	t.Parallel()

	h := newHarness(sensor("hall", domain.TypeSmoke, 1))
	ctx := context.Background()

	_, err := h.engine.Evaluate(ctx, Request{})
	require.NoError(t, err)

	h.source.readings = []domain.SensorReading{sensor("hall", domain.TypeSmoke, 0)}

	_, err = h.engine.Evaluate(ctx, Request{})
	require.NoError(t, err)

	h.source.readings = []domain.SensorReading{sensor("hall", domain.TypeSmoke, 1)}

	_, err = h.engine.Evaluate(ctx, Request{})
	require.NoError(t, err)

	require.Len(t, h.recorder.verdicts, 2)
	require.Len(t, h.speaker.starts, 2)
	require.Equal(t, 1, h.speaker.stops)
}

// TestEvaluate_Serialized runs concurrent triggers and expects a single start and log.
func TestEvaluate_Serialized(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := newHarness(sensor("hall", domain.TypeSmoke, 1))

		var wg sync.WaitGroup

		for range 16 {
			wg.Go(func() {
				_, err := h.engine.Evaluate(context.Background(), Request{})
				require.NoError(t, err)
			})
		}

		wg.Wait()
		synctest.Wait()

		require.Len(t, h.speaker.starts, 1)
		require.Len(t, h.recorder.verdicts, 1)
		require.Len(t, h.notifier.sets, 16)
	})
}
