package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lcdbridge/internal/access"
	"lcdbridge/internal/config"
	"lcdbridge/internal/device"
	"lcdbridge/internal/logging"
	"lcdbridge/internal/metrics"
	"lcdbridge/internal/overlay"
	"lcdbridge/internal/pipeline"
	"lcdbridge/internal/playback"
	"lcdbridge/internal/state"
	"lcdbridge/internal/store"
	"lcdbridge/internal/telemetry"
	"lcdbridge/internal/transcode"
)

// Components is the wired object graph behind one daemon.
type Components struct {
	Shared     *state.Shared
	Gateway    device.Gateway
	Device     *access.Coordinator
	Metrics    *metrics.Metrics
	Renderer   *overlay.Renderer
	Packer     *overlay.Packer
	Pipeline   *pipeline.Pipeline
	Transcoder *transcode.Transcoder
	Uploader   *transcode.Uploader
	Playback   *playback.Coordinator
	Telemetry  *telemetry.Aggregator
	Store      *store.Store
}

// Assemble builds every component around gw. st may be nil, in which case
// nothing survives a restart.
func Assemble(cfg *config.Config, gw device.Gateway, st *store.Store, logger *slog.Logger) (*Components, error) {
	if cfg == nil || gw == nil {
		return nil, errors.New("daemon components require config and gateway")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	shared := state.New()
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(shared)
	}
	dev := access.New(gw, access.WithWaitObserver(m.ObserveLockWait))
	info := dev.Info()
	res := dev.Resolution()

	renderer, err := overlay.NewRenderer(overlay.Options{
		Resolution: res,
		FontPath:   cfg.Overlay.FontPath,
		MinSpeed:   cfg.Overlay.MinSpeed,
		BaseSpeed:  cfg.Overlay.BaseSpeed,
		Decay:      cfg.Overlay.Decay,
		DecayFloor: cfg.Overlay.DecayFloor,
	}, shared.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("overlay renderer: %w", err)
	}
	packer := overlay.NewPacker(info.RenderingMode, res)

	pipe := pipeline.New(shared, dev, renderer, packer, m,
		logging.NewComponentLogger(logger, "pipeline"),
		pipeline.Options{QueueCapacity: cfg.Pipeline.QueueCapacity, StatsRefresh: cfg.StatsRefresh()},
	)

	transcodeLogger := logging.NewComponentLogger(logger, "transcode")
	tr := transcode.New(transcode.Options{
		Resolution: res,
		Capacity:   dev.MaxBucketSize(),
		Search: transcode.SearchOptions{
			MinColors:  cfg.Playback.PaletteMin,
			MaxColors:  cfg.Playback.PaletteMax,
			Iterations: cfg.Playback.PaletteIterations,
			MinWidth:   cfg.Playback.PaletteMinWidth,
		},
		MinFrameMS: cfg.Playback.MinFrameMillis,
	}, transcodeLogger)
	uploader := transcode.NewUploader(dev, transcode.UploadOptions{
		NeutralSettle: time.Duration(cfg.Playback.NeutralSettle) * time.Millisecond,
		ResetSettle:   time.Duration(cfg.Playback.ResetSettle) * time.Millisecond,
		DeleteRetries: cfg.Playback.DeleteRetries,
		AllowOversize: cfg.Playback.AllowOversizeUpload,
	}, transcodeLogger)

	var persisted playback.Store
	if st != nil {
		persisted = st
	}
	coordinator := playback.New(shared, tr, uploader, persisted, m,
		logging.NewComponentLogger(logger, "playback"),
		playback.Options{
			JoinTimeout: cfg.JoinTimeout(),
			Quiesce:     time.Duration(cfg.Playback.QuiesceDelay) * time.Millisecond,
		},
	)

	agg := telemetry.New(shared.Telemetry, telemetry.Options{
		CPUInterval:         cfg.CPUInterval(),
		TemperatureInterval: cfg.TemperatureInterval(),
		TemperaturesEnabled: cfg.Telemetry.TemperaturesEnabled,
	}, logging.NewComponentLogger(logger, "telemetry"))

	return &Components{
		Shared:     shared,
		Gateway:    gw,
		Device:     dev,
		Metrics:    m,
		Renderer:   renderer,
		Packer:     packer,
		Pipeline:   pipe,
		Transcoder: tr,
		Uploader:   uploader,
		Playback:   coordinator,
		Telemetry:  agg,
		Store:      st,
	}, nil
}

// Close releases the renderer fonts, the gateway, and the store.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	if c.Renderer != nil {
		c.Renderer.Close()
	}
	var errs []error
	if c.Gateway != nil {
		if err := c.Gateway.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close device: %w", err))
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
