package config

const (
	defaultConfigPath            = "~/.config/lcdbridge/config.toml"
	defaultStateDir              = "~/.local/share/lcdbridge"
	defaultLogDir                = "~/.local/share/lcdbridge/logs"
	defaultAssetsDir             = "~/.local/share/lcdbridge/images"
	defaultAPIBind               = "127.0.0.1:30003"
	defaultDeviceDriver          = "simulator"
	defaultDeviceWidth           = 640
	defaultDeviceHeight          = 640
	defaultBucketCapacity        = "24MiB"
	defaultFrameFormat           = "RGBA"
	defaultQueueCapacity         = 2
	defaultStatsRefreshMillis    = 1000
	defaultMinSpeed              = 2
	defaultBaseSpeed             = 18
	defaultDecay                 = 1.1
	defaultDecayFloor            = 10
	defaultJoinTimeoutMillis     = 2000
	defaultQuiesceMillis         = 500
	defaultNeutralSettleMillis   = 300
	defaultResetSettleMillis     = 200
	defaultDeleteRetries         = 3
	defaultPaletteMin            = 16
	defaultPaletteMax            = 256
	defaultPaletteIterations     = 20
	defaultPaletteMinWidth       = 10
	defaultMinFrameMillis        = 20
	defaultCPUIntervalMillis     = 1000
	defaultTemperatureMillis     = 2000
	defaultUSBVendorID           = "1e71"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	bindEnvVar                   = "LCDBRIDGE_BIND"
	maxPaletteColors             = 256
	minPaletteColors             = 2
	supportedFrameFormatsSummary = "RGBA or Q565"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			AssetsDir: defaultAssetsDir,
			APIBind:   defaultAPIBind,
		},
		Device: Device{
			Driver:         defaultDeviceDriver,
			Width:          defaultDeviceWidth,
			Height:         defaultDeviceHeight,
			BucketCapacity: defaultBucketCapacity,
			FrameFormat:    defaultFrameFormat,
		},
		Pipeline: Pipeline{
			QueueCapacity:        defaultQueueCapacity,
			StatsRefreshInterval: defaultStatsRefreshMillis,
		},
		Overlay: Overlay{
			MinSpeed:   defaultMinSpeed,
			BaseSpeed:  defaultBaseSpeed,
			Decay:      defaultDecay,
			DecayFloor: defaultDecayFloor,
		},
		Playback: Playback{
			JoinTimeout:         defaultJoinTimeoutMillis,
			QuiesceDelay:        defaultQuiesceMillis,
			NeutralSettle:       defaultNeutralSettleMillis,
			ResetSettle:         defaultResetSettleMillis,
			DeleteRetries:       defaultDeleteRetries,
			PaletteMin:          defaultPaletteMin,
			PaletteMax:          defaultPaletteMax,
			PaletteIterations:   defaultPaletteIterations,
			PaletteMinWidth:     defaultPaletteMinWidth,
			MinFrameMillis:      defaultMinFrameMillis,
			AllowOversizeUpload: true,
		},
		Telemetry: Telemetry{
			CPUInterval:         defaultCPUIntervalMillis,
			TemperatureInterval: defaultTemperatureMillis,
			TemperaturesEnabled: true,
		},
		USB: USB{
			HotplugEnabled: true,
			VendorID:       defaultUSBVendorID,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Metrics: Metrics{
			Enabled: true,
		},
	}
}
