package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDevice(); err != nil {
		return err
	}
	if err := c.normalizeOverlay(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizePlayback()
	c.normalizeTelemetry()
	c.normalizeUSB()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.AssetsDir, err = expandPath(c.Paths.AssetsDir); err != nil {
		return fmt.Errorf("paths.assets_dir: %w", err)
	}
	if value, ok := os.LookupEnv(bindEnvVar); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIBind = value
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeDevice() error {
	c.Device.Driver = strings.ToLower(strings.TrimSpace(c.Device.Driver))
	if c.Device.Driver == "" {
		c.Device.Driver = defaultDeviceDriver
	}
	c.Device.FrameFormat = strings.ToUpper(strings.TrimSpace(c.Device.FrameFormat))
	if c.Device.FrameFormat == "" {
		c.Device.FrameFormat = defaultFrameFormat
	}
	var err error
	if c.Device.SnapshotPath, err = expandPath(strings.TrimSpace(c.Device.SnapshotPath)); err != nil {
		return fmt.Errorf("device.snapshot_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeOverlay() error {
	var err error
	if c.Overlay.FontPath, err = expandPath(strings.TrimSpace(c.Overlay.FontPath)); err != nil {
		return fmt.Errorf("overlay.font_path: %w", err)
	}
	if c.Overlay.DecayFloor < 0 {
		c.Overlay.DecayFloor = 0
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.QueueCapacity <= 0 {
		c.Pipeline.QueueCapacity = defaultQueueCapacity
	}
	if c.Pipeline.StatsRefreshInterval <= 0 {
		c.Pipeline.StatsRefreshInterval = defaultStatsRefreshMillis
	}
}

func (c *Config) normalizePlayback() {
	if c.Playback.JoinTimeout <= 0 {
		c.Playback.JoinTimeout = defaultJoinTimeoutMillis
	}
	if c.Playback.DeleteRetries <= 0 {
		c.Playback.DeleteRetries = defaultDeleteRetries
	}
	if c.Playback.PaletteIterations <= 0 {
		c.Playback.PaletteIterations = defaultPaletteIterations
	}
	if c.Playback.MinFrameMillis <= 0 {
		c.Playback.MinFrameMillis = defaultMinFrameMillis
	}
	for _, v := range []*int{&c.Playback.QuiesceDelay, &c.Playback.NeutralSettle, &c.Playback.ResetSettle, &c.Playback.PaletteMinWidth} {
		if *v < 0 {
			*v = 0
		}
	}
}

func (c *Config) normalizeTelemetry() {
	if c.Telemetry.CPUInterval <= 0 {
		c.Telemetry.CPUInterval = defaultCPUIntervalMillis
	}
	if c.Telemetry.TemperatureInterval <= 0 {
		c.Telemetry.TemperatureInterval = defaultTemperatureMillis
	}
}

func (c *Config) normalizeUSB() {
	c.USB.VendorID = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.USB.VendorID), "0x"))
	if c.USB.VendorID == "" {
		c.USB.VendorID = defaultUSBVendorID
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
