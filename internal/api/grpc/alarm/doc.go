// Package alarm implements the gRPC transport for the alarm controller.
//
// It adapts domain types to the structpb wire messages and exposes a server
// that calls into a provided business-service interface.
package alarm
