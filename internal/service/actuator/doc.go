// Package actuator owns the speaker state and turns on/off requests into
// start/stop commands for the external sound process.
//
// Repeated requests for the current state are no-ops, and the state only
// changes after the command was dispatched successfully.
package actuator
