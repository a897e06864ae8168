package playback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lcdbridge/internal/logging"
	"lcdbridge/internal/state"
	"lcdbridge/internal/store"
	"lcdbridge/internal/transcode"
)

// run prepares and uploads one session, then idles until stopped.
func (c *Coordinator) run(ctx context.Context, sess *session, logger *slog.Logger) {
	defer close(sess.done)
	started := time.Now()
	record := store.Upload{SessionID: sess.id, SourcePath: sess.spec.SourcePath, StartedAt: started}

	blob, err := c.preparer.Prepare(ctx, sess.spec)
	if err != nil {
		if ctx.Err() != nil {
			c.finish(record, store.OutcomeStopped, "stopped during prepare", logger)
			return
		}
		c.onFailure(sess, "prepare", err, record, logger)
		return
	}
	c.metrics.PaletteSearch(blob.Passes, len(blob.Data))
	record.Colors = blob.Colors
	record.BlobBytes = len(blob.Data)
	record.Passes = blob.Passes
	record.OverCapacity = blob.OverCapacity
	record.EffectiveFPS = blob.Timing.EffectiveFPS

	if ctx.Err() != nil {
		c.finish(record, store.OutcomeStopped, "stopped before upload", logger)
		return
	}
	if err := c.device.Upload(blob); err != nil {
		c.onFailure(sess, "upload", err, record, logger)
		return
	}

	c.sessMu.Lock()
	if c.current == sess {
		c.shared.SetPlayback(state.PlaybackStatus{
			SessionID: sess.id,
			Path:      sess.spec.SourcePath,
			Live:      true,
			FPS:       blob.Timing.EffectiveFPS,
		})
	}
	c.sessMu.Unlock()

	logger.Info("playback live",
		logging.String("path", sess.spec.SourcePath),
		logging.Int("colors", blob.Colors),
		logging.Size("size", len(blob.Data)),
		logging.Float64("effective_fps", blob.Timing.EffectiveFPS),
		logging.Duration("elapsed", time.Since(started)),
	)
	c.finish(record, store.OutcomeUploaded, "", logger)

	<-ctx.Done()
}

// onFailure restores host streaming after a failed session. It never takes
// the coordinator mutex and never returns an error; a failing restore is
// only logged. No retry follows. A session that was already replaced only
// records its outcome.
func (c *Coordinator) onFailure(sess *session, stage string, cause error, record store.Upload, logger *slog.Logger) {
	reason := stage + ": " + cause.Error()

	// sessMu is held across Restore so a newer session cannot be installed
	// and start uploading between the check and the reset.
	c.sessMu.Lock()
	current := c.current == sess
	var restoreErr error
	if current {
		restoreErr = c.device.Restore()
		c.current = nil
		c.device.Exclusive("leave_playback", func() {
			c.shared.SetMode(state.Streaming)
			c.shared.SetPlayback(state.PlaybackStatus{})
		})
	}
	c.sessMu.Unlock()

	if !current {
		logger.Info("superseded playback session failed",
			logging.String(logging.FieldEventType, "playback_superseded_failure"),
			logging.String("stage", stage),
			logging.Error(cause),
		)
		c.finish(record, store.OutcomeFailed, reason, logger)
		return
	}

	hint := "check the source file and the daemon log"
	if errors.Is(cause, transcode.ErrOverCapacity) {
		hint = "use a smaller animation or set playback.allow_oversize_upload=true"
	}
	logging.WarnWithContext(logger, "playback failed; returned to streaming", "playback_failed",
		logging.String("stage", stage),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "the display returns to streamed frames"),
	)
	if restoreErr != nil {
		logging.WarnWithContext(logger, "device restore failed after playback failure", "playback_restore_failed",
			logging.Error(restoreErr),
			logging.String(logging.FieldErrorHint, "replug the cooler or restart the daemon"),
			logging.String(logging.FieldImpact, "streamed frames may not reach the display"),
		)
	}

	c.sourceChanged("")
	c.persist(context.Background(), func(ctx context.Context, st Store) error { return st.SetActive(ctx, false) })
	c.finish(record, store.OutcomeFailed, reason, logger)
}

func (c *Coordinator) finish(record store.Upload, outcome, reason string, logger *slog.Logger) {
	record.Outcome = outcome
	record.Reason = reason
	record.FinishedAt = time.Now()
	c.metrics.SessionFinished(outcome)
	if c.store == nil {
		return
	}
	if _, err := c.store.RecordUpload(context.Background(), record); err != nil {
		logger.Debug("upload history not recorded", logging.Error(err))
	}
}
