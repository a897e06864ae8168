package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lcdbridge/internal/config"
	"lcdbridge/internal/daemon"
	"lcdbridge/internal/device"
	"lcdbridge/internal/logging"
	"lcdbridge/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	comp       *daemon.Components
	sim        *device.Simulator
	daemon     *daemon.Daemon
	apiAddr    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	sim := device.NewSimulator(device.Options{Width: cfg.Device.Width, Height: cfg.Device.Height, BucketCapacity: 1 << 20})
	comp, err := daemon.Assemble(cfg, sim, testsupport.MustOpenStore(t, cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	d, err := daemon.New(cfg, comp, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		comp:       comp,
		sim:        sim,
		daemon:     d,
		apiAddr:    d.Addr(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstate_dir = %q\nlog_dir = %q\nassets_dir = %q\nbind = %q\n\n[device]\ndriver = %q\nwidth = %d\nheight = %d\nbucket_capacity = %q\n\n[usb]\nhotplug_enabled = false\n",
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.AssetsDir,
		cfg.Paths.APIBind,
		cfg.Device.Driver,
		cfg.Device.Width,
		cfg.Device.Height,
		cfg.Device.BucketCapacity,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
