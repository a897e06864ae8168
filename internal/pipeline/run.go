package pipeline

import (
	"context"
	"errors"

	"lcdbridge/internal/logging"
	"lcdbridge/internal/metrics"
)

// Start launches the Compose and Emit loops.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("pipeline already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(2)
	go p.runCompose(runCtx)
	go p.runEmit(runCtx)

	p.logger.Info("frame pipeline started",
		logging.Int("queue_capacity", p.opts.QueueCapacity),
		logging.Duration("stats_refresh", p.opts.StatsRefresh),
	)
	return nil
}

// Stop terminates both loops and waits for them. Frames still queued are
// discarded.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.drain()
}

// Running reports whether the loops are active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) drain() {
	for {
		select {
		case <-p.input:
			p.metrics.FrameDropped(metrics.DropShutdown)
		case <-p.output:
			p.metrics.FrameDropped(metrics.DropShutdown)
		default:
			return
		}
	}
}
