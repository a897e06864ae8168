package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"lcdbridge/internal/config"
	"lcdbridge/internal/daemon"
	"lcdbridge/internal/device"
	"lcdbridge/internal/logging"
	"lcdbridge/internal/preflight"
	"lcdbridge/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// DebugLog tees DEBUG output into <log_dir>/debug as JSON.
	DebugLog bool
	// Ready, when set, receives the bound API address once the daemon runs.
	Ready func(addr string)
}

// Run starts the lcdbridge daemon and blocks until SIGINT, SIGTERM, or ctx
// cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("lcdbridge-%s.log", runID))
	sessionID := uuid.NewString()
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		SessionID:        sessionID,
		RunID:            runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
	debugPath := filepath.Join(debugDir, fmt.Sprintf("lcdbridge-%s.json", runID))
	if opts.DebugLog {
		debugLogger, debugErr := logging.New(logging.Options{
			Level:            "debug",
			Format:           "json",
			OutputPaths:      []string{debugPath},
			ErrorOutputPaths: []string{debugPath},
			Development:      true,
			SessionID:        sessionID,
			RunID:            runID,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug log: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
			logger.Info("debug log enabled",
				logging.String(logging.FieldEventType, "debug_log_enabled"),
				logging.String("debug_log_path", debugPath),
			)
		}
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update lcdbridge.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "lcdbridge-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: debugDir, Pattern: "lcdbridge-*.json", Exclude: []string{debugPath}},
	)
	logPreflight(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "lcdbridge.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	capacity, err := cfg.Device.CapacityBytes()
	if err != nil {
		return err
	}
	gw, err := device.Open(cfg.Device.Driver, device.Options{
		Width:          cfg.Device.Width,
		Height:         cfg.Device.Height,
		BucketCapacity: capacity,
		FrameFormat:    device.FrameFormat(cfg.Device.FrameFormat),
		SnapshotPath:   cfg.Device.SnapshotPath,
		Logger:         logging.NewComponentLogger(logger, "device"),
	})
	if err != nil {
		logging.ErrorWithContext(logger, "open device", "device_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check device.driver and that the cooler is connected"),
			logging.String(logging.FieldImpact, "daemon cannot start"),
		)
		return err
	}

	st, err := store.Open(cfg)
	if err != nil {
		_ = gw.Close()
		logging.ErrorWithContext(logger, "open state store", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
			logging.String(logging.FieldImpact, "daemon cannot start"),
		)
		return err
	}

	comp, err := daemon.Assemble(cfg, gw, st, logger)
	if err != nil {
		_ = gw.Close()
		_ = st.Close()
		return fmt.Errorf("assemble daemon: %w", err)
	}
	d, err := daemon.New(cfg, comp, logger)
	if err != nil {
		_ = comp.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("daemon close incomplete",
				logging.Error(err),
				logging.String(logging.FieldEventType, "daemon_close_failed"),
				logging.String(logging.FieldErrorHint, "replug the cooler if the display stays blank"),
				logging.String(logging.FieldImpact, "device or store handles may leak until exit"),
			)
		}
	}()

	logDeviceSnapshot(logger, cfg, gw)

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if opts.Ready != nil {
		opts.Ready(d.Addr())
	}

	<-signalCtx.Done()
	logger.Info("lcdbridge daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "lcdbridge.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logPreflight(logger *slog.Logger, cfg *config.Config) {
	for _, r := range preflight.RunAll(cfg) {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "run lcdbridge status for details"),
			logging.String(logging.FieldImpact, "some features may be unavailable"),
		)
	}
}

func logDeviceSnapshot(logger *slog.Logger, cfg *config.Config, gw device.Gateway) {
	info := gw.Info()
	logger.Info("device snapshot",
		logging.String(logging.FieldEventType, "device_snapshot"),
		logging.String("driver", cfg.Device.Driver),
		logging.String("serial", info.Serial),
		logging.String("name", info.Name),
		logging.Int("width", info.Resolution.Width),
		logging.Int("height", info.Resolution.Height),
		logging.String("rendering_mode", string(info.RenderingMode)),
		logging.String("bucket_capacity", humanize.IBytes(uint64(gw.MaxBucketSize()))),
		logging.Bool("hotplug", cfg.USB.HotplugEnabled),
		logging.Bool("metrics", cfg.Metrics.Enabled),
	)
}
