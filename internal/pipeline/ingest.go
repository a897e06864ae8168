package pipeline

import (
	"context"

	"lcdbridge/internal/logging"
	"lcdbridge/internal/metrics"
	"lcdbridge/internal/overlay"
	"lcdbridge/internal/state"
)

// Ingest admits one POST /frame body. Frames are dropped while playback owns
// the display or when the body is malformed. Otherwise the call blocks until
// the input queue has room or ctx ends. It reports whether the frame was
// queued.
func (p *Pipeline) Ingest(ctx context.Context, body []byte) bool {
	if p.shared.Mode() == state.Playback {
		p.metrics.FrameDropped(metrics.DropPlayback)
		return false
	}
	raw, req, err := overlay.ParseFrame(body)
	if err != nil {
		p.metrics.FrameDropped(metrics.DropRequest)
		p.logger.Debug("frame request rejected", logging.Error(err))
		return false
	}

	now := p.now()
	p.arrivalMu.Lock()
	frame := RawFrame{Data: raw, Request: req, Received: now}
	if !p.lastArrival.IsZero() {
		frame.Gap = now.Sub(p.lastArrival)
	}
	p.lastArrival = now
	p.arrivalMu.Unlock()

	select {
	case p.input <- frame:
		p.metrics.FrameReceived()
		p.logger.Debug("frame queued",
			logging.Duration("raw_interval", frame.Gap),
			logging.Int("bytes", len(raw)),
		)
		return true
	case <-ctx.Done():
		p.metrics.FrameDropped(metrics.DropShutdown)
		return false
	}
}
