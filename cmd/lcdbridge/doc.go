// Package main hosts the lcdbridge CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground and
// translates terminal invocations into HTTP calls against its local API:
// status, playback control, brightness, and upload history. Configuration
// scaffolding (config init/validate) works without a running daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
