// Package logging assembles structured slog loggers and formatting helpers used
// across the bridge daemon and CLI.
//
// It owns the configurable console/JSON handlers, the tee used for diagnostic
// run logs, and the standardized attribute keys every component emits
// (component, event_type, error_hint, impact, session_id, mode). Callers get a
// no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so the pipeline,
// playback, and API components all produce lines with the same shape.
package logging
