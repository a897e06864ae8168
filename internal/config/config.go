package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	AssetsDir string `toml:"assets_dir"`
	APIBind   string `toml:"bind"`
}

// Device selects the gateway driver and the metadata the simulator reports.
type Device struct {
	Driver         string `toml:"driver"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	BucketCapacity string `toml:"bucket_capacity"`
	FrameFormat    string `toml:"frame_format"`
	SnapshotPath   string `toml:"snapshot_path"`
}

// CapacityBytes parses bucket_capacity ("24MiB", "20 MB", "25165824").
func (d Device) CapacityBytes() (int, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(d.BucketCapacity))
	if err != nil {
		return 0, fmt.Errorf("device.bucket_capacity: %w", err)
	}
	if n == 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("device.bucket_capacity: %d bytes out of range", n)
	}
	return int(n), nil
}

// Pipeline contains frame pipeline sizing.
type Pipeline struct {
	QueueCapacity        int `toml:"queue_capacity"`
	StatsRefreshInterval int `toml:"stats_refresh_ms"`
}

// Overlay contains spinner and text rendering settings.
type Overlay struct {
	FontPath   string  `toml:"font_path"`
	MinSpeed   float64 `toml:"min_speed"`
	BaseSpeed  float64 `toml:"base_speed"`
	Decay      float64 `toml:"decay"`
	DecayFloor int     `toml:"decay_floor"`
}

// Playback contains firmware playback and transcoding settings.
type Playback struct {
	JoinTimeout         int  `toml:"join_timeout_ms"`
	QuiesceDelay        int  `toml:"quiesce_ms"`
	NeutralSettle       int  `toml:"neutral_settle_ms"`
	ResetSettle         int  `toml:"reset_settle_ms"`
	DeleteRetries       int  `toml:"delete_retries"`
	PaletteMin          int  `toml:"palette_min"`
	PaletteMax          int  `toml:"palette_max"`
	PaletteIterations   int  `toml:"palette_iterations"`
	PaletteMinWidth     int  `toml:"palette_min_width"`
	MinFrameMillis      int  `toml:"min_frame_ms"`
	AllowOversizeUpload bool `toml:"allow_oversize_upload"`
	ResumeOnStart       bool `toml:"resume_on_start"`
	WatchSource         bool `toml:"watch_source"`
}

// Telemetry contains host sampling intervals.
type Telemetry struct {
	CPUInterval         int  `toml:"cpu_interval_ms"`
	TemperatureInterval int  `toml:"temperature_interval_ms"`
	TemperaturesEnabled bool `toml:"temperatures_enabled"`
}

// USB contains hotplug monitoring settings.
type USB struct {
	HotplugEnabled bool   `toml:"hotplug_enabled"`
	VendorID       string `toml:"vendor_id"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics toggles the Prometheus endpoint.
type Metrics struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for the bridge.
//
// Configuration sections by subsystem:
//   - Paths: state, log, and asset directories plus the HTTP bind address
//   - Device: gateway driver and simulator metadata
//   - Pipeline: queue capacity and device stats refresh throttle
//   - Overlay: spinner speed/decay and font selection
//   - Playback: firmware upload, palette search, and session timing
//   - Telemetry: CPU and temperature sampling
//   - USB: hotplug monitoring
//   - Logging: log format, level, and retention
//   - Metrics: Prometheus endpoint
type Config struct {
	Paths     Paths     `toml:"paths"`
	Device    Device    `toml:"device"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Overlay   Overlay   `toml:"overlay"`
	Playback  Playback  `toml:"playback"`
	Telemetry Telemetry `toml:"telemetry"`
	USB       USB       `toml:"usb"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("lcdbridge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The assets directory is optional; a missing one only disables /images.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath is the sqlite file holding the last-known playback spec and upload history.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "lcdbridge.db")
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "lcdbridge.lock")
}

// StatsRefresh returns the device stats refresh throttle.
func (c *Config) StatsRefresh() time.Duration {
	return millis(c.Pipeline.StatsRefreshInterval)
}

// JoinTimeout bounds how long a playback worker stop waits.
func (c *Config) JoinTimeout() time.Duration {
	return millis(c.Playback.JoinTimeout)
}

// CPUInterval returns the CPU sampling window.
func (c *Config) CPUInterval() time.Duration {
	return millis(c.Telemetry.CPUInterval)
}

// TemperatureInterval returns the temperature polling period.
func (c *Config) TemperatureInterval() time.Duration {
	return millis(c.Telemetry.TemperatureInterval)
}

func millis(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleOptions overrides values in the generated sample configuration.
// Empty fields keep the sample defaults.
type SampleOptions struct {
	Driver string
	Bind   string
}

// RenderSample returns the sample configuration with opts applied. Inline
// comments on overridden lines are kept.
func RenderSample(opts SampleOptions) string {
	overrides := map[string]string{"driver": opts.Driver, "bind": opts.Bind}
	lines := strings.Split(sampleConfig, "\n")
	for i, line := range lines {
		key, rest, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value := overrides[strings.TrimSpace(key)]
		if value == "" {
			continue
		}
		out := fmt.Sprintf("%s= %q", key, value)
		if _, comment, found := strings.Cut(rest, "#"); found {
			out += "  #" + comment
		}
		lines[i] = out
	}
	return strings.Join(lines, "\n")
}

// CreateSample writes the default sample configuration to path.
func CreateSample(path string) error {
	return WriteSample(path, SampleOptions{})
}

// WriteSample writes the sample configuration with opts applied to path,
// creating parent directories.
func WriteSample(path string, opts SampleOptions) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(RenderSample(opts)), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
