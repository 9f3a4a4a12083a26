// Package sqlite stores sensor readings, the leaving mode and the alarm
// history in a single SQLite database.
//
// The engine consumes it through three narrow repositories: SensorRepository
// (snapshot source), LeavingRepository (leaving-mode oracle) and
// EventRepository (history store).
package sqlite
