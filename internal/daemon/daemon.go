package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"lcdbridge/internal/config"
	"lcdbridge/internal/device"
	"lcdbridge/internal/logging"
	"lcdbridge/internal/state"
)

// Daemon drives the cooler LCD and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	comp    *Components
	api     *apiServer
	usb     *usbMonitor
	watcher *sourceWatcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Mode         state.Mode
	DeviceOnline bool
	APIAddress   string
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon around assembled components.
func New(cfg *config.Config, comp *Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || comp == nil || logger == nil {
		return nil, errors.New("daemon requires config, components, and logger")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		comp:     comp,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, comp, logger)
	d.usb = newUSBMonitor(cfg, logger, d.rearm, func() { comp.Shared.SetDeviceOnline(false) })
	d.watcher = newSourceWatcher(cfg, logger, d.restartSource)
	if d.watcher != nil {
		comp.Playback.OnSourceChange(d.watcher.Track)
	}
	return d, nil
}

// Start acquires the lock, launches the pipeline and monitors, and opens the
// HTTP boundary. With playback.resume_on_start it restores a session that
// was active at the last shutdown.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lcdbridge daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.comp.Pipeline.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start pipeline: %w", err)
	}
	d.comp.Telemetry.Start(d.ctx)
	if err := d.watcher.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start source watcher: %w", err)
	}
	if err := d.usb.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start usb monitor: %w", err)
	}

	d.resume(d.ctx)

	if err := d.api.start(d.ctx); err != nil {
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("lcdbridge daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.addr()),
		logging.String(logging.FieldMode, d.comp.Shared.Mode().String()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	d.usb.Stop()
	d.watcher.Stop()
	d.comp.Telemetry.Stop()
	d.comp.Pipeline.Stop()
	_ = d.comp.Playback.Shutdown(context.Background())
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
	_ = d.lock.Unlock()
}

func (d *Daemon) resume(ctx context.Context) {
	active, err := d.comp.Playback.LoadPersisted(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to load persisted playback state", "playback_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state database"),
			logging.String(logging.FieldImpact, "last playback settings are not restored"),
		)
		return
	}
	if !active || !d.cfg.Playback.ResumeOnStart {
		return
	}
	if _, err := d.comp.Playback.Resume(ctx); err != nil {
		logging.WarnWithContext(d.logger, "playback resume at start failed", "playback_resume_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the saved animation may have moved; send a new /gif request"),
			logging.String(logging.FieldImpact, "the display starts in streaming mode"),
		)
	}
}

// Stop leaves playback, stops every worker, and releases the daemon lock.
// A session active at shutdown stays flagged for resume.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.usb.Stop()
	d.watcher.Stop()
	if err := d.comp.Playback.Shutdown(context.Background()); err != nil {
		d.logger.Warn("playback shutdown incomplete",
			logging.Error(err),
			logging.String(logging.FieldEventType, "playback_shutdown_failed"),
			logging.String(logging.FieldErrorHint, "replug the cooler if the display stays on the animation"),
			logging.String(logging.FieldImpact, "device may not return to streaming mode"),
		)
	}
	d.comp.Telemetry.Stop()
	d.comp.Pipeline.Stop()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start refuses to run"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("lcdbridge daemon stopped")
}

// Close stops the daemon and releases the device and store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.comp.Close()
}

// Addr returns the bound HTTP address, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Mode:         d.comp.Shared.Mode(),
		DeviceOnline: d.comp.Shared.DeviceOnline(),
		APIAddress:   d.api.addr(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}

// rearm restores the display after the cooler reappears: a running session
// is uploaded again, otherwise host streaming is re-armed.
func (d *Daemon) rearm(ctx context.Context) error {
	d.comp.Shared.SetDeviceOnline(true)
	if spec, ok := d.comp.Playback.Active(); ok {
		_, err := d.comp.Playback.Enter(ctx, spec)
		return err
	}
	return d.comp.Device.Do("hotplug_reset", func(gw device.Gateway) error {
		return gw.Reset()
	})
}

// restartSource re-enters playback with the running spec when its source
// file changed on disk.
func (d *Daemon) restartSource(ctx context.Context, path string) error {
	spec, ok := d.comp.Playback.Active()
	if !ok || spec.SourcePath != path {
		return nil
	}
	_, err := d.comp.Playback.Enter(ctx, spec)
	return err
}
