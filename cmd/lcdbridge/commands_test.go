package main

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lcdbridge/internal/daemon"
	"lcdbridge/internal/device"
	"lcdbridge/internal/state"
	"lcdbridge/internal/testsupport"
)

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "[OK] Running at "+env.apiAddr)
	requireContains(t, out, "STREAMING")
	requireContains(t, out, "[INFO] idle")
	requireContains(t, out, "CPU load")
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "Device driver")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var info daemon.InfoResponse
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if info.Mode != "STREAMING" || !info.Online || info.Resolution.Width != 32 {
		t.Fatalf("info = %+v", info)
	}
}

func TestStatusCommandWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	addr := unusedAddr(t)

	out, _, err := runCLI(t, []string{"status"}, addr, env.configPath)
	if err != nil {
		t.Fatalf("status should render without a daemon: %v", err)
	}
	requireContains(t, out, "[ERROR] Not running")
	requireContains(t, out, "== Preflight ==")

	if _, _, err := runCLI(t, []string{"status", "--json"}, addr, env.configPath); err == nil {
		t.Fatal("status --json should fail without a daemon")
	}
}

func TestGIFCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	gifPath := filepath.Join(testsupport.BaseDir(env.cfg), "anim.gif")
	testsupport.WriteGIF(t, gifPath)

	out, _, err := runCLI(t, []string{"gif", "start", gifPath, "--fit", "fit", "--zoom", "150", "--fps", "20"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("gif start: %v", err)
	}
	requireContains(t, out, "Playback starting for "+gifPath)
	waitFor(t, 5*time.Second, func() bool {
		ups, err := env.comp.Store.RecentUploads(context.Background(), 1)
		return err == nil && len(ups) == 1 && env.comp.Shared.Playback().Live
	})
	if got := env.comp.Shared.LastKnown(); got.FitMode != state.Fit || got.Zoom != 150 || got.FPS != "20" {
		t.Fatalf("last known = %+v", got)
	}

	out, _, err = runCLI(t, []string{"status"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "anim.gif at ")
	requireContains(t, out, "Last upload")

	out, _, err = runCLI(t, []string{"gif", "stop"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("gif stop: %v", err)
	}
	requireContains(t, out, "Playback stopped")
	if env.sim.Mode() != device.ModeLiquid {
		t.Fatalf("device mode = %v", env.sim.Mode())
	}

	out, _, err = runCLI(t, []string{"gif", "history"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("gif history: %v", err)
	}
	requireContains(t, out, "anim.gif")
	requireContains(t, out, "uploaded")
	requireContains(t, out, "Outcome")
	requireContains(t, out, "latest upload")

	out, _, err = runCLI(t, []string{"gif", "config", gifPath, "--rotation", "90", "--fit", "Stretch"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("gif config: %v", err)
	}
	requireContains(t, out, "Playback settings saved")
	if env.comp.Shared.Mode() != state.Streaming {
		t.Fatal("gif config must not start playback")
	}

	out, _, err = runCLI(t, []string{"gif", "resume"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("gif resume: %v", err)
	}
	requireContains(t, out, "Playback resuming")
	waitFor(t, 5*time.Second, func() bool { return env.comp.Shared.Playback().Live })
	if got := env.comp.Shared.LastKnown(); got.Rotation != 90 || got.FitMode != state.Stretch {
		t.Fatalf("last known = %+v", got)
	}
}

func TestGIFStartRejectsMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(testsupport.BaseDir(env.cfg), "missing.gif")

	_, _, err := runCLI(t, []string{"gif", "start", missing}, env.apiAddr, env.configPath)
	if err == nil || !strings.Contains(err.Error(), `status "ignored"`) {
		t.Fatalf("expected ignored error, got %v", err)
	}
}

func TestGIFHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"gif", "history"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("gif history: %v", err)
	}
	requireContains(t, out, "No uploads recorded")
}

func TestBrightnessCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"brightness", "40"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("brightness: %v", err)
	}
	requireContains(t, out, "Brightness set to 40%")
	if env.sim.Brightness() != 40 {
		t.Fatalf("brightness = %d", env.sim.Brightness())
	}

	for _, arg := range []string{"101", "-1", "loud"} {
		if _, _, err := runCLI(t, []string{"brightness", "--", arg}, env.apiAddr, env.configPath); err == nil {
			t.Fatalf("brightness %s: expected error", arg)
		}
	}
	if env.sim.Brightness() != 40 {
		t.Fatalf("rejected values must not reach the device, brightness = %d", env.sim.Brightness())
	}
}

func unusedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}
