// Package config defines the controller settings and provides helpers to
// load, validate and save them in YAML format.
//
// Validate fills defaults for everything optional, so a minimal file only
// needs the server address.
package config
