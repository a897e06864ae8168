package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lcdbridge/internal/config"
	"lcdbridge/internal/logging"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "lcdbridge.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleHeaderCarriesComponentAndMode(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "pipeline.emit").Info("frame written",
		logging.String(logging.FieldMode, "STREAMING"),
		logging.String(logging.FieldEventType, "frame_written"),
		logging.Int("bytes", 1024),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"INFO [pipeline.emit] (streaming) – frame written", "bytes=1024"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "event_type") {
		t.Fatalf("expected event_type hidden on info console lines, got %q", line)
	}
}

func TestNewJSONLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}, SessionID: "abc", RunID: "20261018T101500.000Z"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if payload["msg"] != "json message" || payload["k"] != "v" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if payload[logging.FieldSessionID] != "abc" {
		t.Fatalf("expected session id, got %v", payload[logging.FieldSessionID])
	}
	if payload[logging.FieldRunID] != "20261018T101500.000Z" {
		t.Fatalf("expected run id, got %v", payload[logging.FieldRunID])
	}
	if _, ok := payload["ts"].(string); !ok {
		t.Fatalf("expected ts string, got %v", payload["ts"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := logging.WithSessionID(context.Background(), "sess-1")
	ctx = logging.WithRequestID(ctx, "req-xyz")
	logging.WithContext(ctx, logger).Info("contextual log")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if payload[logging.FieldSessionID] != "sess-1" {
		t.Fatalf("session_id = %v", payload[logging.FieldSessionID])
	}
	if payload[logging.FieldRequestID] != "req-xyz" {
		t.Fatalf("request_id = %v", payload[logging.FieldRequestID])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "write failed", "frame_write_failed", logging.String(logging.FieldImpact, "frame dropped"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if payload[logging.FieldEventType] != "frame_write_failed" {
		t.Fatalf("event_type = %v", payload[logging.FieldEventType])
	}
	if payload[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error_hint")
	}
	if payload[logging.FieldImpact] != "frame dropped" {
		t.Fatalf("impact overridden: %v", payload[logging.FieldImpact])
	}
}

func TestDomainAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.ErrorWithContext(logger, "upload failed", "upload_failed",
		logging.Session("sess-7"),
		logging.Size("size", 24_000),
		logging.Size("capacity", -1),
		logging.String(logging.FieldEventType, "explicit"),
	)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	want := map[string]any{
		logging.FieldSessionID: "sess-7",
		"size":                 "24 kB",
		"capacity":             "0 B",
		logging.FieldEventType: "explicit",
	}
	for key, value := range want {
		if payload[key] != value {
			t.Fatalf("%s = %v, want %v", key, payload[key], value)
		}
	}
	if payload[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error_hint")
	}
	if _, ok := payload[logging.FieldImpact]; ok {
		t.Fatal("error lines should not gain a default impact")
	}
}

func TestCleanupOldLogsKeepsNewestAndExcluded(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().AddDate(0, 0, -30)
	names := []string{"lcdbridge-a.log", "lcdbridge-b.log", "lcdbridge-c.log", "other.txt"}
	for i, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		stamp := old.Add(time.Duration(i) * time.Hour)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 7, logging.RetentionTarget{
		Dir:        dir,
		Pattern:    "lcdbridge-*.log",
		Exclude:    []string{filepath.Join(dir, "lcdbridge-a.log")},
		KeepNewest: 1,
	})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	for _, name := range []string{"lcdbridge-a.log", "lcdbridge-c.log", "other.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s kept: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "lcdbridge-b.log")); !os.IsNotExist(err) {
		t.Fatalf("expected lcdbridge-b.log pruned, err=%v", err)
	}
}
