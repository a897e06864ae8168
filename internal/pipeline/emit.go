package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lcdbridge/internal/device"
	"lcdbridge/internal/logging"
	"lcdbridge/internal/metrics"
	"lcdbridge/internal/state"
)

const fpsSmoothing = 0.1

func (p *Pipeline) runEmit(ctx context.Context) {
	defer p.wg.Done()
	logger := logging.NewComponentLogger(p.logger, "pipeline.emit")

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-p.output:
			p.emit(logger, frame)
			p.refreshStats(logger)
		}
	}
}

// emit writes one frame. Failures drop the frame; the next one supersedes it.
func (p *Pipeline) emit(logger *slog.Logger, frame DeviceFrame) {
	start := p.now()
	err := p.device.Do("emit", func(gw device.Gateway) error {
		// Mode may have changed since the frame was admitted.
		if p.shared.Mode() == state.Playback {
			return errPlaybackActive
		}
		return gw.WriteFrame(frame.Pix)
	})
	switch {
	case errors.Is(err, errPlaybackActive):
		p.metrics.FrameDropped(metrics.DropPlayback)
	case err != nil:
		p.metrics.FrameDropped(metrics.DropWrite)
		p.failedWrites++
		if !p.writeFailing {
			p.writeFailing = true
			logging.WarnWithContext(logger, "frame write failed", "frame_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the USB connection to the cooler"),
				logging.String(logging.FieldImpact, "frames are dropped until a write succeeds"),
			)
		} else {
			logger.Debug("frame write failed", logging.Error(err))
		}
	default:
		done := p.now()
		p.metrics.FrameWritten(done.Sub(start))
		if p.writeFailing {
			logger.Info("frame writes recovered", logging.Int("dropped", p.failedWrites))
			p.writeFailing = false
			p.failedWrites = 0
		}
		p.updateFPS(done)
	}
}

func (p *Pipeline) updateFPS(now time.Time) {
	if !p.lastWrite.IsZero() {
		if dt := now.Sub(p.lastWrite).Seconds(); dt > 0 {
			inst := 1 / dt
			if p.fps == 0 {
				p.fps = inst
			} else {
				p.fps += fpsSmoothing * (inst - p.fps)
			}
			p.shared.SetStreamFPS(p.fps)
		}
	}
	p.lastWrite = now
}

// refreshStats reads liquid temperature and pump duty at most once per
// refresh interval, and never while playback owns the device.
func (p *Pipeline) refreshStats(logger *slog.Logger) {
	now := p.now()
	if now.Sub(p.lastStats) < p.opts.StatsRefresh {
		return
	}
	if p.shared.Mode() == state.Playback {
		return
	}
	p.lastStats = now

	var stats device.Stats
	err := p.device.Do("stats", func(gw device.Gateway) error {
		if p.shared.Mode() == state.Playback {
			return errPlaybackActive
		}
		if err := gw.Clear(); err != nil {
			return err
		}
		var err error
		stats, err = gw.Stats()
		return err
	})
	if errors.Is(err, errPlaybackActive) {
		return
	}
	if err != nil {
		p.metrics.StatsRefreshFailed()
		logger.Debug("device stats refresh failed", logging.Error(err))
		return
	}
	p.shared.Telemetry.Set(state.Liquid, stats.Liquid)
	p.shared.Telemetry.Set(state.Pump, stats.Pump)
}
