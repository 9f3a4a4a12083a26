package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "alarm.v1.AlarmController"

// Full method names.
const (
	MethodEvaluate        = "/" + ServiceName + "/Evaluate"
	MethodTriggerHelp     = "/" + ServiceName + "/TriggerHelp"
	MethodReportSensor    = "/" + ServiceName + "/ReportSensor"
	MethodBeginLeaving    = "/" + ServiceName + "/BeginLeaving"
	MethodGetSpeakerState = "/" + ServiceName + "/GetSpeakerState"
	MethodListEvents      = "/" + ServiceName + "/ListEvents"
)

// AlarmControllerServer is the server API for the alarm controller.
type AlarmControllerServer interface {
	// Evaluate runs one cycle over the stored snapshot.
	Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// TriggerHelp runs one manual help cycle; the request carries the actor.
	TriggerHelp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// ReportSensor stores a sensor report and runs one cycle.
	ReportSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// BeginLeaving opens the leaving window.
	BeginLeaving(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
	// GetSpeakerState returns the speaker state.
	GetSpeakerState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	// ListEvents returns the newest history rows.
	ListEvents(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.ListValue, error)
}

// RegisterAlarmControllerServer registers the implementation on the gRPC server.
func RegisterAlarmControllerServer(s grpc.ServiceRegistrar, srv AlarmControllerServer) {
	s.RegisterService(&AlarmControllerServiceDesc, srv)
}

// AlarmControllerServiceDesc describes the service for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var AlarmControllerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlarmControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: unaryHandler(MethodEvaluate, AlarmControllerServer.Evaluate)},
		{MethodName: "TriggerHelp", Handler: unaryHandler(MethodTriggerHelp, AlarmControllerServer.TriggerHelp)},
		{MethodName: "ReportSensor", Handler: unaryHandler(MethodReportSensor, AlarmControllerServer.ReportSensor)},
		{MethodName: "BeginLeaving", Handler: unaryHandler(MethodBeginLeaving, AlarmControllerServer.BeginLeaving)},
		{MethodName: "GetSpeakerState", Handler: unaryHandler(MethodGetSpeakerState, AlarmControllerServer.GetSpeakerState)},
		{MethodName: "ListEvents", Handler: unaryHandler(MethodListEvents, AlarmControllerServer.ListEvents)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "alarm/v1/alarm.proto",
}

// message constrains request types to pointers of a concrete struct.
type message[T any] interface {
	*T
}

// unaryHandler adapts a typed method to the grpc.MethodDesc handler signature.
func unaryHandler[Req any, Resp any, PReq message[Req]](
	fullMethod string,
	call func(AlarmControllerServer, context.Context, PReq) (Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(AlarmControllerServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AlarmControllerServer), ctx, req.(PReq))
		}

		return interceptor(ctx, in, info, handler)
	}
}

// AlarmControllerClient is the client API for the alarm controller.
type AlarmControllerClient struct {
	cc grpc.ClientConnInterface
}

// NewAlarmControllerClient wraps a connection.
func NewAlarmControllerClient(cc grpc.ClientConnInterface) *AlarmControllerClient {
	return &AlarmControllerClient{cc: cc}
}

// Evaluate runs one cycle on the server.
func (c *AlarmControllerClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodEvaluate, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// TriggerHelp runs a manual help cycle on the server.
func (c *AlarmControllerClient) TriggerHelp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodTriggerHelp, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// ReportSensor stores a report and runs a cycle on the server.
func (c *AlarmControllerClient) ReportSensor(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodReportSensor, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// BeginLeaving opens the leaving window on the server.
func (c *AlarmControllerClient) BeginLeaving(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, MethodBeginLeaving, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// GetSpeakerState fetches the speaker state.
func (c *AlarmControllerClient) GetSpeakerState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetSpeakerState, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// ListEvents fetches the newest history rows.
func (c *AlarmControllerClient) ListEvents(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, MethodListEvents, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
