// Package store persists bridge state that must survive a restart in SQLite:
// the last-known playback spec (plus whether playback was active at
// shutdown) and the history of playback uploads.
//
// The database is small and local. Schema changes append a migration in
// schema.go; Open applies any the file has not seen yet.
package store
