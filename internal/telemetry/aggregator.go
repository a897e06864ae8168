package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/sensors"

	"lcdbridge/internal/logging"
	"lcdbridge/internal/state"
)

// CPUSource measures whole-system CPU load over interval, in percent.
type CPUSource func(ctx context.Context, interval time.Duration) (float64, error)

// TemperatureSource lists host temperature sensors.
type TemperatureSource func(ctx context.Context) ([]sensors.TemperatureStat, error)

// Options configures sampling.
type Options struct {
	CPUInterval         time.Duration
	TemperatureInterval time.Duration
	TemperaturesEnabled bool
}

// Aggregator runs the CPU sampler and the temperature bridge.
type Aggregator struct {
	telemetry *state.Telemetry
	opts      Options
	cpu       CPUSource
	temps     TemperatureSource
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds an Aggregator backed by gopsutil.
func New(t *state.Telemetry, opts Options, logger *slog.Logger) *Aggregator {
	if opts.CPUInterval <= 0 {
		opts.CPUInterval = time.Second
	}
	if opts.TemperatureInterval <= 0 {
		opts.TemperatureInterval = 2 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aggregator{
		telemetry: t,
		opts:      opts,
		cpu:       systemCPU,
		temps:     sensors.TemperaturesWithContext,
		logger:    logger,
	}
}

func systemCPU(ctx context.Context, interval time.Duration) (float64, error) {
	values, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, errors.New("no cpu sample")
	}
	return values[0], nil
}

// Start launches the sampling loops. A second call is a no-op.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true

	a.wg.Add(1)
	go a.runCPU(runCtx)
	if a.opts.TemperaturesEnabled {
		a.wg.Add(1)
		go a.runTemperatures(runCtx)
	}
	a.logger.Info("telemetry sampling started",
		logging.Duration("cpu_interval", a.opts.CPUInterval),
		logging.Bool("temperatures", a.opts.TemperaturesEnabled),
	)
}

// Stop cancels the loops and waits for them.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	a.running = false
	a.cancel = nil
	a.mu.Unlock()

	cancel()
	a.wg.Wait()
}

func (a *Aggregator) runCPU(ctx context.Context) {
	defer a.wg.Done()
	failing := false
	for ctx.Err() == nil {
		load, err := a.cpu(ctx, a.opts.CPUInterval)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !failing {
				logging.WarnWithContext(a.logger, "cpu sampling failed", "cpu_sample_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check /proc/stat is readable"),
					logging.String(logging.FieldImpact, "the cpu spinner stops moving"),
				)
			}
			failing = true
			if !sleepCtx(ctx, a.opts.CPUInterval) {
				return
			}
			continue
		}
		if failing {
			a.logger.Info("cpu sampling recovered")
			failing = false
		}
		a.telemetry.Set(state.CPULoad, clampPercent(load))
	}
}

func (a *Aggregator) runTemperatures(ctx context.Context) {
	defer a.wg.Done()
	a.pollTemperatures(ctx)
	ticker := time.NewTicker(a.opts.TemperatureInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pollTemperatures(ctx)
		}
	}
}

// pollTemperatures updates CPU and GPU temperatures; a sensor that is not
// found marks its field unavailable.
func (a *Aggregator) pollTemperatures(ctx context.Context) {
	stats, err := a.temps(ctx)
	if err != nil && len(stats) == 0 {
		a.logger.Debug("temperature poll failed", logging.Error(err))
		a.telemetry.Clear(state.CPUTemp)
		a.telemetry.Clear(state.GPUTemp)
		return
	}
	cpuTemp, cpuOK, gpuTemp, gpuOK := Classify(stats)
	if cpuOK {
		a.telemetry.Set(state.CPUTemp, cpuTemp)
	} else {
		a.telemetry.Clear(state.CPUTemp)
	}
	if gpuOK {
		a.telemetry.Set(state.GPUTemp, gpuTemp)
	} else {
		a.telemetry.Clear(state.GPUTemp)
	}
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
