package pipeline

import (
	"context"
	"log/slog"

	"lcdbridge/internal/imaging"
	"lcdbridge/internal/logging"
	"lcdbridge/internal/metrics"
	"lcdbridge/internal/state"
)

func (p *Pipeline) runCompose(ctx context.Context) {
	defer p.wg.Done()
	logger := logging.NewComponentLogger(p.logger, "pipeline.compose")

	for {
		var frame RawFrame
		select {
		case <-ctx.Done():
			return
		case frame = <-p.input:
		}

		out, ok := p.compose(logger, frame)
		if !ok {
			continue
		}
		// Blocks on a full output queue but never past shutdown.
		select {
		case p.output <- out:
		case <-ctx.Done():
			p.metrics.FrameDropped(metrics.DropShutdown)
			return
		}
	}
}

func (p *Pipeline) compose(logger *slog.Logger, frame RawFrame) (DeviceFrame, bool) {
	if p.shared.Mode() == state.Playback {
		p.metrics.FrameDropped(metrics.DropPlayback)
		return DeviceFrame{}, false
	}
	start := p.now()
	src, err := imaging.Decode(frame.Data)
	if err != nil {
		p.metrics.FrameDropped(metrics.DropDecode)
		logger.Debug("frame decode failed", logging.Error(err))
		return DeviceFrame{}, false
	}
	img, err := p.composer.Compose(src, frame.Request)
	if err != nil {
		p.metrics.FrameDropped(metrics.DropDecode)
		logging.WarnWithContext(logger, "overlay render failed", "overlay_render_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check overlay.font_path"),
			logging.String(logging.FieldImpact, "frame dropped"),
		)
		return DeviceFrame{}, false
	}
	pix := p.packer.Pack(img, frame.Request.Palette)
	out := DeviceFrame{
		Pix:    pix,
		Queued: start.Sub(frame.Received),
		Render: p.now().Sub(start),
	}
	p.metrics.Composed(out.Queued, out.Render)
	logger.Debug("frame composed",
		logging.Duration("queued", out.Queued),
		logging.Duration("render", out.Render),
		logging.String("composition", frame.Request.Composition.String()),
	)
	return out, true
}
