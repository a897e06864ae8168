package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldSessionID identifies a playback session or daemon process run.
	FieldSessionID = "session_id"
	// FieldRunID matches the timestamp in the per-run log file name.
	FieldRunID = "run_id"
)

// runHandler stamps fixed process-level attributes onto every record.
type runHandler struct {
	next  slog.Handler
	attrs []slog.Attr
}

func newRunHandler(next slog.Handler, sessionID, runID string) slog.Handler {
	var attrs []slog.Attr
	if id := strings.TrimSpace(sessionID); id != "" {
		attrs = append(attrs, slog.String(FieldSessionID, id))
	}
	if id := strings.TrimSpace(runID); id != "" {
		attrs = append(attrs, slog.String(FieldRunID, id))
	}
	if next == nil {
		return NoopHandler{}
	}
	if len(attrs) == 0 {
		return next
	}
	return &runHandler{next: next, attrs: attrs}
}

func (h *runHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *runHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(h.attrs...)
	return h.next.Handle(ctx, record)
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runHandler{next: h.next.WithAttrs(attrs), attrs: h.attrs}
}

func (h *runHandler) WithGroup(name string) slog.Handler {
	return &runHandler{next: h.next.WithGroup(name), attrs: h.attrs}
}
