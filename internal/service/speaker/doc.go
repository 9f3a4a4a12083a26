// Package speaker drives the external sound control script and cleans up
// player processes left behind by a previous run.
package speaker
