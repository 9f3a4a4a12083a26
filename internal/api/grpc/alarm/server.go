package alarm

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
	pb "github.com/oshokin/alarm-controller/internal/pb/v1"
	"github.com/oshokin/alarm-controller/internal/service/engine"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Evaluate(ctx context.Context, checkConnectivity bool) (*engine.Outcome, error)
	TriggerHelp(ctx context.Context, actor *domain.Actor) (*engine.Outcome, error)
	ReportSensor(ctx context.Context, reading *domain.SensorReading) (*engine.Outcome, error)
	BeginLeaving(ctx context.Context) error
	SpeakerState(ctx context.Context) *domain.State
	ListEvents(ctx context.Context, limit int) ([]domain.Event, error)
}

// Server implements the AlarmController gRPC API.
type Server struct {
	// service provides the business logic for alarm operations.
	service Service
}

var _ pb.AlarmControllerServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Evaluate runs one cycle, optionally with a connectivity check.
func (s *Server) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	checkConnectivity := req.GetFields()[pb.FieldCheckConnectivity].GetBoolValue()

	outcome, err := s.service.Evaluate(ctx, checkConnectivity)
	if err != nil {
		return nil, toStatus(err, "unable to evaluate sensors")
	}

	return outcomeToStruct(outcome), nil
}

// TriggerHelp sounds the speaker on behalf of the actor in the request.
func (s *Server) TriggerHelp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	actor := pb.StructToActor(req)
	if actor.Hostname == "" && actor.Username == "" {
		return nil, status.Error(codes.InvalidArgument, "actor is required")
	}

	outcome, err := s.service.TriggerHelp(ctx, actor)
	if err != nil {
		return nil, toStatus(err, "unable to trigger help")
	}

	return outcomeToStruct(outcome), nil
}

// ReportSensor stores a sensor report and evaluates the new snapshot.
func (s *Server) ReportSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	reading, err := pb.StructToReading(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	outcome, err := s.service.ReportSensor(ctx, reading)
	if err != nil {
		return nil, toStatus(err, "unable to process sensor report")
	}

	return outcomeToStruct(outcome), nil
}

// BeginLeaving opens the leaving window.
func (s *Server) BeginLeaving(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.service.BeginLeaving(ctx); err != nil {
		return nil, toStatus(err, "unable to start leaving mode")
	}

	return new(emptypb.Empty), nil
}

// GetSpeakerState returns the current speaker state.
func (s *Server) GetSpeakerState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return pb.StateToStruct(s.service.SpeakerState(ctx)), nil
}

// ListEvents returns the newest history rows, newest first.
func (s *Server) ListEvents(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	if req.GetValue() < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	events, err := s.service.ListEvents(ctx, int(req.GetValue()))
	if err != nil {
		return nil, toStatus(err, "unable to list events")
	}

	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(events))}
	for i := range events {
		list.Values = append(list.Values, structpb.NewStructValue(pb.EventToStruct(&events[i])))
	}

	return list, nil
}

// outcomeToStruct converts a cycle outcome into its wire form.
func outcomeToStruct(outcome *engine.Outcome) *structpb.Struct {
	fields := map[string]*structpb.Value{
		pb.FieldTriggered:    pb.StringList(outcome.Verdict.TriggeredTypes),
		pb.FieldDisconnected: pb.StringList(outcome.Verdict.DisconnectedTypes),
		pb.FieldSuppressed:   structpb.NewBoolValue(outcome.Suppressed),
		pb.FieldDelayed:      structpb.NewBoolValue(outcome.Delay),
		pb.FieldSpeaker:      structpb.NewStringValue(outcome.Transition.String()),
	}

	if outcome.Faults != nil {
		fields[pb.FieldFaults] = structpb.NewStringValue(outcome.Faults.Error())
	}

	return &structpb.Struct{Fields: fields}
}

// toStatus maps service errors onto gRPC codes.
func toStatus(err error, message string) error {
	switch {
	case errors.Is(err, domain.ErrMalformedReading), errors.Is(err, pb.ErrMissingField):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, message)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, message)
	default:
		return status.Error(codes.Unavailable, message)
	}
}
