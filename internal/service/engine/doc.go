// Package engine implements the alarm decision cycle.
//
// One cycle turns the current sensor snapshot (or a manual help request)
// into a Verdict, informs the notifier, applies door-only suppression while
// the user is leaving, records history on a transition into alarm and asks
// the actuator for the matching speaker state. Cycles never overlap.
package engine
