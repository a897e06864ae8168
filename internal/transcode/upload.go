package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"lcdbridge/internal/access"
	"lcdbridge/internal/device"
	"lcdbridge/internal/logging"
)

const bucketID = 0

// UploadOptions tunes the bucket upload sequence.
type UploadOptions struct {
	// NeutralSettle is the pause after switching to liquid mode.
	NeutralSettle time.Duration
	// ResetSettle is the pause after switching to liquid mode during recovery.
	ResetSettle   time.Duration
	DeleteRetries int
	// AllowOversize attempts blobs larger than the bucket instead of failing.
	AllowOversize bool
}

// Uploader runs the firmware bucket protocol under the device lock.
type Uploader struct {
	device *access.Coordinator
	opts   UploadOptions
	logger *slog.Logger
	sleep  func(time.Duration)
}

// NewUploader builds an Uploader.
func NewUploader(dev *access.Coordinator, opts UploadOptions, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Uploader{device: dev, opts: opts, logger: logger, sleep: time.Sleep}
}

// Upload replaces bucket 0 with blob and switches the display to bucket
// playback. The whole sequence holds the device lock.
func (u *Uploader) Upload(blob *Blob) error {
	if blob == nil || len(blob.Data) == 0 {
		return ErrNoFrames
	}
	size := len(blob.Data)
	capacity := u.device.MaxBucketSize()
	if capacity > 0 && size > capacity {
		if !u.opts.AllowOversize {
			return fmt.Errorf("%w: %s > %s", ErrOverCapacity, humanize.Bytes(uint64(size)), humanize.Bytes(uint64(capacity)))
		}
		logging.WarnWithContext(u.logger, "uploading animation larger than bucket", "bucket_oversize_attempt",
			logging.Size("size", size),
			logging.Size("capacity", capacity),
			logging.String(logging.FieldErrorHint, "set playback.allow_oversize_upload=false to refuse such uploads"),
			logging.String(logging.FieldImpact, "bucket creation may fail"),
		)
	}

	return u.device.Do("upload", func(gw device.Gateway) error {
		// Drain status reports that queued up while the blob was prepared.
		if err := gw.Clear(); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		if err := gw.SetMode(device.ModeLiquid, 0); err != nil {
			return fmt.Errorf("set liquid mode: %w", err)
		}
		u.sleep(u.opts.NeutralSettle)
		if err := gw.Clear(); err != nil {
			return fmt.Errorf("clear: %w", err)
		}

		if err := gw.DeleteBucket(bucketID, u.opts.DeleteRetries); err != nil {
			level := slog.LevelInfo
			if !errors.Is(err, device.ErrBucketNotFound) {
				level = slog.LevelWarn
			}
			u.logger.Log(context.Background(), level, "bucket delete failed; continuing",
				logging.Error(err),
				logging.String(logging.FieldEventType, "bucket_delete_failed"),
			)
			if err := gw.Clear(); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
		}
		if err := gw.CreateBucket(bucketID, size); err != nil {
			return fmt.Errorf("create bucket %d: %w", bucketID, err)
		}
		if err := gw.WriteGIF(bucketID, blob.Data); err != nil {
			return fmt.Errorf("write animation: %w", err)
		}
		if err := gw.SetMode(device.ModeBucket, 0); err != nil {
			return fmt.Errorf("activate bucket playback: %w", err)
		}
		u.logger.Info("animation uploaded; firmware playback active",
			logging.Size("size", size),
			logging.Int("colors", blob.Colors),
		)
		return nil
	})
}

// Exclusive runs fn while holding the device lock without sending commands.
func (u *Uploader) Exclusive(op string, fn func()) {
	_ = u.device.Do(op, func(device.Gateway) error {
		fn()
		return nil
	})
}

// Restore returns the display to host streaming: liquid mode, settle, then
// re-arm the stream.
func (u *Uploader) Restore() error {
	return u.device.Do("restore", func(gw device.Gateway) error {
		if err := gw.Clear(); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		if err := gw.SetMode(device.ModeLiquid, 0); err != nil {
			return fmt.Errorf("set liquid mode: %w", err)
		}
		u.sleep(u.opts.ResetSettle)
		if err := gw.Clear(); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		if err := gw.Reset(); err != nil {
			return fmt.Errorf("re-arm streaming: %w", err)
		}
		return nil
	})
}
