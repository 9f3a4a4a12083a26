// Package common holds helpers shared by the alarm binaries.
//
// It provides a lightweight gRPC client wrapper with timeouts and utilities to
// detect the current system actor (hostname/username) for audit purposes.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
