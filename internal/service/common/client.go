//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/alarm-controller/internal/config"
	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
	pb "github.com/oshokin/alarm-controller/internal/pb/v1"
)

// Client wraps the gRPC AlarmController client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the controller.
	conn *grpc.ClientConn
	// api is the AlarmController client stub.
	api *pb.AlarmControllerClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Result is the client view of one decision cycle.
type Result struct {
	// Triggered lists the sensor types in alarm condition.
	Triggered []string
	// Disconnected lists the sensor types that lost contact.
	Disconnected []string
	// Suppressed is set when a door-only alarm fell inside the leaving window.
	Suppressed bool
	// Delayed is set when the speaker was asked to start with a delay.
	Delayed bool
	// Speaker is the transition the controller applied.
	Speaker string
	// Faults describes tolerated failures, empty when there were none.
	Faults string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned when an actor is not provided but is required for the operation.
	errActorRequired = errors.New("actor must be provided")
	// errReadingRequired is returned when a sensor report is missing.
	errReadingRequired = errors.New("sensor reading must be provided")
)

// Dial establishes a gRPC connection to the controller.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial alarm controller: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         pb.NewAlarmControllerClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Evaluate asks the controller to run a cycle over the stored snapshot.
func (c *Client) Evaluate(ctx context.Context, checkConnectivity bool) (*Result, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	request := &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.FieldCheckConnectivity: structpb.NewBoolValue(checkConnectivity),
	}}

	response, err := c.api.Evaluate(callCtx, request)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	return toResult(response), nil
}

// TriggerHelp sounds the speaker on behalf of the actor.
func (c *Client) TriggerHelp(ctx context.Context, actor *domain.Actor) (*Result, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.TriggerHelp(callCtx, pb.ActorToStruct(actor))
	if err != nil {
		return nil, fmt.Errorf("trigger help: %w", err)
	}

	return toResult(response), nil
}

// ReportSensor sends one sensor report.
func (c *Client) ReportSensor(ctx context.Context, reading *domain.SensorReading) (*Result, error) {
	if reading == nil {
		return nil, errReadingRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.ReportSensor(callCtx, pb.ReadingToStruct(reading))
	if err != nil {
		return nil, fmt.Errorf("report sensor: %w", err)
	}

	return toResult(response), nil
}

// BeginLeaving opens the leaving window.
func (c *Client) BeginLeaving(ctx context.Context) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.BeginLeaving(callCtx, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("begin leaving: %w", err)
	}

	return nil
}

// GetSpeakerState retrieves the current speaker state.
func (c *Client) GetSpeakerState(ctx context.Context) (*domain.State, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetSpeakerState(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get speaker state: %w", err)
	}

	return pb.StructToState(response)
}

// ListEvents retrieves up to limit history rows, newest first.
func (c *Client) ListEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.ListEvents(callCtx, wrapperspb.Int32(int32(limit))) //nolint:gosec // Limits are small.
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]domain.Event, 0, len(response.GetValues()))
	for _, value := range response.GetValues() {
		events = append(events, pb.StructToEvent(value.GetStructValue()))
	}

	return events, nil
}

// toResult reads a cycle outcome from its wire form.
func toResult(s *structpb.Struct) *Result {
	fields := s.GetFields()

	return &Result{
		Triggered:    pb.Strings(fields[pb.FieldTriggered]),
		Disconnected: pb.Strings(fields[pb.FieldDisconnected]),
		Suppressed:   fields[pb.FieldSuppressed].GetBoolValue(),
		Delayed:      fields[pb.FieldDelayed].GetBoolValue(),
		Speaker:      fields[pb.FieldSpeaker].GetStringValue(),
		Faults:       fields[pb.FieldFaults].GetStringValue(),
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
