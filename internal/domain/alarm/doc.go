// Package alarm contains core domain types for the alarm business logic.
//
// It defines sensor readings as delivered by the snapshot source, the leaving
// window used for door-only suppression, the per-cycle Verdict, the speaker
// State owned by the actuator controller and the history Event rows.
package alarm
