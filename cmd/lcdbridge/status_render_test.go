package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"lcdbridge/internal/daemon"
	"lcdbridge/internal/device"
	"lcdbridge/internal/preflight"
	"lcdbridge/internal/state"
	"lcdbridge/internal/store"
)

func TestStatusLineRender(t *testing.T) {
	line := statusLine{Label: "lcdbridge", Kind: statusError, Message: "Not running"}
	want := fmt.Sprintf("  %-*s %s", statusLabelWidth, "lcdbridge:", "[ERROR] Not running")
	if got := line.render(false); got != want {
		t.Fatalf("render mismatch\n got: %q\nwant: %q", got, want)
	}
	if got := (statusLine{Label: "Playback", Kind: statusInfo}).render(false); !strings.HasSuffix(got, "[INFO]") {
		t.Fatalf("empty message render = %q", got)
	}

	colored := statusLine{Label: "lcdbridge", Kind: statusOK, Message: "Running"}.render(true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("colored render = %q", colored)
	}
}

func TestStatusPrinterSections(t *testing.T) {
	var buf bytes.Buffer
	p := newStatusPrinter(&buf)
	p.section("Preflight")
	p.lines(preflightLine(preflight.Result{Name: "Device driver", Detail: `"hid" not registered`}))
	out := buf.String()
	for _, want := range []string{"== Preflight ==\n---------------\n", "[ERROR] \"hid\" not registered"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("buffer output must not be colored: %q", out)
	}
}

func TestDaemonLines(t *testing.T) {
	info := daemon.InfoResponse{
		Info:       device.Info{Name: "Kraken", Serial: "SIM1", Resolution: device.Resolution{Width: 640, Height: 640}, RenderingMode: device.FormatRGBA},
		Mode:       "PLAYBACK",
		GIFMode:    true,
		GIFRunning: true,
		GIFPath:    "/srv/anim.gif",
		GIFFPS:     12.5,
		GIFConfig:  state.PlaybackSpec{SourcePath: "/srv/anim.gif", FitMode: state.Fit, Zoom: 120, Rotation: 90},
	}
	lines := daemonLines(info, "http://127.0.0.1:30003")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %+v", len(lines), lines)
	}
	if !strings.Contains(lines[0].render(false), "[OK] Running at 127.0.0.1:30003") {
		t.Fatalf("daemon line = %+v", lines[0])
	}
	if !strings.Contains(lines[1].render(false), "[WARN] offline: Kraken 640x640 RGBA") {
		t.Fatalf("device line = %+v", lines[1])
	}
	if !strings.Contains(lines[3].render(false), "[OK] anim.gif at 12.5 fps") {
		t.Fatalf("playback line = %+v", lines[3])
	}
	if !strings.Contains(lines[4].render(false), "Fit, zoom 120%, rotation 90") {
		t.Fatalf("saved line = %+v", lines[4])
	}
}

func TestTelemetryRows(t *testing.T) {
	cpu := 55.0
	rows := telemetryRows(state.Snapshot{CPULoad: 12, Liquid: 31.24, Pump: 70, CPUTemp: &cpu})
	if len(rows) != 5 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[1][1] != "31.2 °C" || rows[3][1] != "55.0 °C" || rows[4][1] != "n/a" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestShouldColorize(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
	t.Setenv("NO_COLOR", "1")
	if shouldColorize(os.Stdout) {
		t.Fatal("NO_COLOR must disable color")
	}
}

func TestUploadLine(t *testing.T) {
	cases := map[string]statusKind{
		store.OutcomeUploaded: statusOK,
		store.OutcomeFailed:   statusError,
		store.OutcomeStopped:  statusInfo,
	}
	for outcome, want := range cases {
		line := uploadLine(store.Upload{Outcome: outcome, Colors: 128, BlobBytes: 2048, StartedAt: time.Now()})
		if line.Kind != want || !strings.HasPrefix(line.Message, outcome+", 2.0 KiB, 128 colors") {
			t.Fatalf("uploadLine(%q) = %+v", outcome, line)
		}
	}
	if line := uploadLine(store.Upload{Outcome: store.OutcomeUploaded, OverCapacity: true}); !strings.HasSuffix(line.Message, "over capacity") {
		t.Fatalf("over capacity not reported: %q", line.Message)
	}
}
