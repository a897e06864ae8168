package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lcdbridge/internal/config"
	"lcdbridge/internal/logging"
)

const defaultSourceDebounce = 750 * time.Millisecond

// sourceWatcher restarts playback when the active source file is rewritten.
// It watches the parent directory so editors that save via rename are seen.
type sourceWatcher struct {
	logger   *slog.Logger
	debounce time.Duration
	restart  func(ctx context.Context, path string) error

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	path    string
	dir     string
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// newSourceWatcher returns nil unless playback.watch_source is set.
func newSourceWatcher(cfg *config.Config, logger *slog.Logger, restart func(ctx context.Context, path string) error) *sourceWatcher {
	if cfg == nil || !cfg.Playback.WatchSource {
		return nil
	}
	return &sourceWatcher{
		logger:   logging.NewComponentLogger(logger, "source-watcher"),
		debounce: defaultSourceDebounce,
		restart:  restart,
	}
}

// Start creates the fsnotify watcher and begins handling events.
func (s *sourceWatcher) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logging.WarnWithContext(s.logger, "source watcher unavailable", "source_watch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_instances"),
			logging.String(logging.FieldImpact, "edited animations need a manual restart"),
		)
		return nil
	}
	s.watcher = w
	if s.dir != "" {
		s.addLocked(s.dir)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.run(runCtx, w)
	return nil
}

// Stop closes the watcher and waits for the event loop.
func (s *sourceWatcher) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	w := s.watcher
	s.cancel = nil
	s.watcher = nil
	s.mu.Unlock()

	cancel()
	_ = w.Close()
	s.wg.Wait()
}

// Track points the watcher at path; an empty path stops watching. It is the
// playback coordinator's source hook and must not block.
func (s *sourceWatcher) Track(path string) {
	if s == nil {
		return
	}
	if path != "" {
		path = filepath.Clean(path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if path == s.path {
		return
	}
	dir := ""
	if path != "" {
		dir = filepath.Dir(path)
	}
	if s.watcher != nil && dir != s.dir {
		if s.dir != "" {
			_ = s.watcher.Remove(s.dir)
		}
		if dir != "" {
			s.addLocked(dir)
		}
	}
	s.path = path
	s.dir = dir
}

func (s *sourceWatcher) addLocked(dir string) {
	if err := s.watcher.Add(dir); err != nil {
		logging.WarnWithContext(s.logger, "cannot watch playback source directory", "source_watch_failed",
			logging.String("dir", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check directory permissions"),
			logging.String(logging.FieldImpact, "edits to the animation are not picked up"),
		)
	}
}

func (s *sourceWatcher) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *sourceWatcher) run(ctx context.Context, w *fsnotify.Watcher) {
	defer s.wg.Done()
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if path := s.current(); path != "" && filepath.Clean(ev.Name) == path {
				fire = time.After(s.debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Debug("source watcher error", logging.Error(err))
		case <-fire:
			fire = nil
			path := s.current()
			if path == "" || s.restart == nil {
				continue
			}
			s.logger.Info("playback source changed; restarting",
				logging.String(logging.FieldEventType, "source_changed"),
				logging.String("path", path),
			)
			if err := s.restart(ctx, path); err != nil {
				logging.WarnWithContext(s.logger, "restart after source change failed", "source_restart_failed",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check that the rewritten file is a complete GIF"),
					logging.String(logging.FieldImpact, "the previous animation keeps playing"),
				)
			}
		}
	}
}
