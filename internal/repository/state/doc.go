// Package state keeps a snapshot of the speaker State on disk.
//
// The FileRepository stores and loads the state as protobuf JSON. The
// controller writes it on every transition; on startup the server reads it
// to find a speaker left sounding by a previous run.
package state
