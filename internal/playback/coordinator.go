package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lcdbridge/internal/logging"
	"lcdbridge/internal/metrics"
	"lcdbridge/internal/state"
	"lcdbridge/internal/store"
	"lcdbridge/internal/transcode"
)

// Preparer turns a spec into an upload-ready blob.
type Preparer interface {
	Prepare(ctx context.Context, spec state.PlaybackSpec) (*transcode.Blob, error)
}

// Device runs the firmware command sequences.
type Device interface {
	Upload(blob *transcode.Blob) error
	Restore() error
	// Exclusive runs fn while holding the device lock.
	Exclusive(op string, fn func())
}

// Store persists the last-known spec and the upload history.
type Store interface {
	SaveLastKnown(ctx context.Context, spec state.PlaybackSpec, active bool) error
	SetActive(ctx context.Context, active bool) error
	LoadLastKnown(ctx context.Context) (store.LastKnown, error)
	RecordUpload(ctx context.Context, u store.Upload) (int64, error)
}

// Options tunes session handling.
type Options struct {
	// JoinTimeout bounds the wait for a stopped worker.
	JoinTimeout time.Duration
	// Quiesce lets in-flight frame writes finish before the worker starts.
	Quiesce time.Duration
}

// Coordinator is the single writer of the device mode.
type Coordinator struct {
	shared   *state.Shared
	preparer Preparer
	device   Device
	store    Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
	opts     Options
	sleep    func(time.Duration)
	newID    func() string
	notify   func(path string)

	// mu serializes Enter, Leave, and Save.
	mu sync.Mutex

	// sessMu guards current together with the mode write it implies.
	sessMu  sync.Mutex
	current *session
}

type session struct {
	id     string
	spec   state.PlaybackSpec
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Coordinator. st may be nil when nothing is persisted.
func New(shared *state.Shared, preparer Preparer, dev Device, st Store, m *metrics.Metrics, logger *slog.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 2 * time.Second
	}
	return &Coordinator{
		shared:   shared,
		preparer: preparer,
		device:   dev,
		store:    st,
		metrics:  m,
		logger:   logger,
		opts:     opts,
		sleep:    time.Sleep,
		newID:    uuid.NewString,
	}
}

// OnSourceChange registers fn to learn the source path of the running
// session; an empty path means no session. Register before the first Enter.
// fn must not call back into the Coordinator.
func (c *Coordinator) OnSourceChange(fn func(path string)) {
	c.notify = fn
}

func (c *Coordinator) sourceChanged(path string) {
	if c.notify != nil {
		c.notify(path)
	}
}

// Enter stops any running session, switches to PLAYBACK, and starts a worker
// that transcodes and uploads spec. The spec becomes the last-known spec
// whatever the outcome. A spec whose source is missing changes nothing.
func (c *Coordinator) Enter(ctx context.Context, spec state.PlaybackSpec) (string, error) {
	spec = spec.Normalized()
	if err := ValidateSource(spec.SourcePath); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	sess := &session{id: c.newID(), spec: spec, done: make(chan struct{})}
	c.sessMu.Lock()
	c.current = sess
	c.device.Exclusive("enter_playback", func() {
		c.shared.SetMode(state.Playback)
		c.shared.SetPlayback(state.PlaybackStatus{SessionID: sess.id, Path: spec.SourcePath})
	})
	c.sessMu.Unlock()

	c.sourceChanged(spec.SourcePath)

	c.shared.SetLastKnown(spec)
	c.persist(ctx, func(ctx context.Context, st Store) error { return st.SaveLastKnown(ctx, spec, true) })

	logger := c.logger.With(logging.Session(sess.id))
	logger.Info("entering playback",
		logging.String("path", spec.SourcePath),
		logging.String("fit_mode", string(spec.FitMode)),
		logging.Int("rotation", spec.Rotation),
		logging.String("fps", spec.FPS),
	)

	if c.opts.Quiesce > 0 {
		c.sleep(c.opts.Quiesce)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	go c.run(logging.WithSessionID(workerCtx, sess.id), sess, logger)
	return sess.id, nil
}

// Leave stops the worker, restores host streaming, and switches to
// STREAMING. Calling it while already streaming only repeats the harmless
// device restore.
func (c *Coordinator) Leave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stopped := c.stopLocked()
	err := c.device.Restore()

	c.sessMu.Lock()
	c.current = nil
	c.device.Exclusive("leave_playback", func() {
		c.shared.SetMode(state.Streaming)
		c.shared.SetPlayback(state.PlaybackStatus{})
	})
	c.sessMu.Unlock()
	c.sourceChanged("")

	c.persist(ctx, func(ctx context.Context, st Store) error { return st.SetActive(ctx, false) })

	if err != nil {
		logging.WarnWithContext(c.logger, "device restore failed while leaving playback", "playback_restore_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "replug the cooler or restart the daemon if the display stays blank"),
			logging.String(logging.FieldImpact, "streamed frames may not reach the display"),
		)
		return fmt.Errorf("restore streaming: %w", err)
	}
	c.logger.Info("left playback", logging.Bool("session_stopped", stopped))
	return nil
}

// Save records spec as the last-known spec without starting playback. A
// spec without a source path is ignored.
func (c *Coordinator) Save(ctx context.Context, spec state.PlaybackSpec) error {
	spec = spec.Normalized()
	if spec.SourcePath == "" {
		return fmt.Errorf("%w: source path is empty", ErrInvalidSpec)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shared.SetLastKnown(spec)
	active := c.shared.Mode() == state.Playback
	c.persist(ctx, func(ctx context.Context, st Store) error { return st.SaveLastKnown(ctx, spec, active) })
	c.logger.Info("playback config saved",
		logging.String("path", spec.SourcePath),
		logging.String("fit_mode", string(spec.FitMode)),
		logging.Int("zoom", spec.Zoom),
	)
	return nil
}

// Resume enters playback with the last-known spec.
func (c *Coordinator) Resume(ctx context.Context) (string, error) {
	return c.Enter(ctx, c.shared.LastKnown())
}

// Active returns the spec of the running session.
func (c *Coordinator) Active() (state.PlaybackSpec, bool) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	if c.current == nil {
		return state.PlaybackSpec{}, false
	}
	return c.current.spec, true
}

// LoadPersisted seeds the shared last-known spec from the store and reports
// whether playback was active when the bridge last stopped.
func (c *Coordinator) LoadPersisted(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	last, err := c.store.LoadLastKnown(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.shared.SetLastKnown(last.Spec.Normalized())
	return last.Active, nil
}

// Shutdown leaves playback if a session exists or the mode says so. The
// persisted active flag is kept so the next start can resume.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	playing := c.shared.Mode() == state.Playback
	c.mu.Unlock()
	if !playing {
		return nil
	}
	err := c.Leave(ctx)
	c.persist(ctx, func(ctx context.Context, st Store) error { return st.SetActive(ctx, true) })
	return err
}

// stopLocked cancels the current session and waits up to JoinTimeout for
// its worker. It reports whether a session was running.
func (c *Coordinator) stopLocked() bool {
	c.sessMu.Lock()
	sess := c.current
	c.sessMu.Unlock()
	if sess == nil {
		return false
	}
	sess.cancel()
	select {
	case <-sess.done:
	case <-time.After(c.opts.JoinTimeout):
		logging.WarnWithContext(c.logger, "playback worker did not stop in time", "playback_join_timeout",
			logging.Session(sess.id),
			logging.Duration("timeout", c.opts.JoinTimeout),
			logging.String(logging.FieldErrorHint, "a device command is still running; it finishes under the device lock"),
			logging.String(logging.FieldImpact, "the next transition waits for the device"),
		)
	}
	return true
}

func (c *Coordinator) persist(ctx context.Context, fn func(context.Context, Store) error) {
	if c.store == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, c.store); err != nil {
		logging.WarnWithContext(c.logger, "failed to persist playback state", "playback_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the state directory"),
			logging.String(logging.FieldImpact, "playback settings will not survive a restart"),
		)
	}
}
