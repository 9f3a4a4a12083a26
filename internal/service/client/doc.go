// Package client implements the alarm-client subcommands.
//
// Each command connects to the controller, performs one request and logs the
// result. The help command keeps retrying until the controller accepts it.
package client
