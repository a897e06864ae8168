package testsupport

import (
	"path/filepath"
	"testing"

	"lcdbridge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The device is a small simulator so frames stay cheap to render.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.AssetsDir = filepath.Join(base, "images")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Device.Driver = "simulator"
	cfgVal.Device.Width = 32
	cfgVal.Device.Height = 32
	cfgVal.Device.BucketCapacity = "1MiB"
	cfgVal.Playback.JoinTimeout = 500
	cfgVal.Playback.QuiesceDelay = 0
	cfgVal.Playback.NeutralSettle = 0
	cfgVal.Playback.ResetSettle = 0
	cfgVal.Telemetry.TemperaturesEnabled = false
	cfgVal.USB.HotplugEnabled = false
	cfgVal.Metrics.Enabled = true

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithResolution overrides the simulated display size.
func WithResolution(width, height int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.Width = width
		b.cfg.Device.Height = height
	}
}

// WithBucketCapacity overrides the simulated bucket capacity ("64KiB").
func WithBucketCapacity(capacity string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.BucketCapacity = capacity
	}
}

// WithFrameFormat selects RGBA or Q565 device frames.
func WithFrameFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.FrameFormat = format
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
