package transcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"lcdbridge/internal/device"
	"lcdbridge/internal/imaging"
	"lcdbridge/internal/logging"
	"lcdbridge/internal/state"
)

var (
	// ErrNoFrames reports a source without a single decodable frame.
	ErrNoFrames = errors.New("source contains no frames")
	// ErrOverCapacity reports a blob larger than the bucket.
	ErrOverCapacity = errors.New("animation exceeds bucket capacity")
)

// Options configures a Transcoder.
type Options struct {
	Resolution device.Resolution
	Capacity   int
	Search     SearchOptions
	MinFrameMS int
}

// Blob is an encoded animation ready for upload. It lives for one upload.
type Blob struct {
	Data         []byte
	Colors       int
	Passes       int
	OverCapacity bool
	Frames       int
	Timing       Timing
}

// Transcoder fits animations into the device bucket.
type Transcoder struct {
	opts   Options
	logger *slog.Logger
}

// New builds a Transcoder.
func New(opts Options, logger *slog.Logger) *Transcoder {
	if opts.MinFrameMS <= 0 {
		opts.MinFrameMS = 20
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transcoder{opts: opts, logger: logger}
}

// Prepare loads spec.SourcePath and produces the largest palette encoding
// that fits the bucket.
func (t *Transcoder) Prepare(ctx context.Context, spec state.PlaybackSpec) (*Blob, error) {
	src, err := LoadSource(spec.SourcePath)
	if err != nil {
		return nil, err
	}
	return t.PrepareSource(ctx, src, spec)
}

// PrepareSource is Prepare for an already decoded animation.
func (t *Transcoder) PrepareSource(ctx context.Context, src *Source, spec state.PlaybackSpec) (*Blob, error) {
	if src == nil || len(src.Frames) == 0 {
		return nil, ErrNoFrames
	}
	spec = spec.Normalized()
	target := image.Pt(t.opts.Resolution.Width, t.opts.Resolution.Height)

	fitted := make([]*image.RGBA, 0, len(src.Frames))
	for _, frame := range src.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var img image.Image = frame
		if spec.Rotation%360 != 0 {
			img = imaging.Rotate(frame, float64(spec.Rotation), color.Black)
		}
		fitted = append(fitted, FitFrame(img, spec, target))
	}

	timing := ResolveTiming(spec, src.Delays, t.opts.MinFrameMS)
	delays := timing.gifDelays(src.Delays, len(fitted))

	encode := func(ctx context.Context, colors int) ([]byte, error) {
		blob, err := encodeGIF(ctx, fitted, delays, colors)
		if err != nil {
			return nil, err
		}
		t.logger.Debug("palette pass",
			logging.Int("colors", colors),
			logging.Size("size", len(blob)),
		)
		return blob, nil
	}
	result, err := SearchPalette(ctx, encode, t.opts.Capacity, t.opts.Search)
	if err != nil {
		return nil, fmt.Errorf("palette search: %w", err)
	}

	blob := &Blob{
		Data:         result.Blob,
		Colors:       result.Colors,
		Passes:       result.Passes,
		OverCapacity: result.OverCapacity,
		Frames:       len(fitted),
		Timing:       timing,
	}
	attrs := []logging.Attr{
		logging.Int("colors", blob.Colors),
		logging.Int("passes", blob.Passes),
		logging.Int("frames", blob.Frames),
		logging.Size("size", len(blob.Data)),
		logging.Float64("effective_fps", timing.EffectiveFPS),
		logging.Bool("native_timing", timing.Native()),
	}
	if blob.OverCapacity {
		logging.WarnWithContext(t.logger, "animation does not fit bucket at any palette size", "palette_over_capacity",
			append(attrs,
				logging.Size("capacity", t.opts.Capacity),
				logging.String(logging.FieldErrorHint, "use a shorter or smaller source animation"),
				logging.String(logging.FieldImpact, "upload may be rejected by the device"),
			)...,
		)
	} else {
		t.logger.Info("animation prepared", logging.Args(attrs...)...)
	}
	return blob, nil
}
