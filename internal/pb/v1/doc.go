// Package v1 defines the alarm controller wire contract.
//
// Messages are protobuf well-known types (structpb, wrapperspb, emptypb) with
// typed field names, and the service descriptor is declared by hand, so no
// protoc step is needed to build the module.
package v1
