package transcode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/draw"
)

// encodeGIF writes frames as a looping GIF sharing one palette of at most
// colors entries, derived from the first frame by median cut. Each frame is
// error-diffusion dithered against that palette.
func encodeGIF(ctx context.Context, frames []*image.RGBA, delays []int, colors int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	colors = max(2, min(256, colors))
	q := quantize.MedianCutQuantizer{Aggregation: quantize.Mean}
	pal := q.Quantize(make(color.Palette, 0, colors), frames[0])
	if len(pal) == 0 {
		pal = color.Palette{color.Black}
	}

	bounds := frames[0].Rect
	anim := &gif.GIF{
		Image: make([]*image.Paletted, 0, len(frames)),
		Delay: make([]int, 0, len(frames)),
		Config: image.Config{
			ColorModel: pal,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		},
	}
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		indexed := image.NewPaletted(bounds, pal)
		draw.FloydSteinberg.Draw(indexed, bounds, frame, frame.Rect.Min)
		anim.Image = append(anim.Image, indexed)
		anim.Delay = append(anim.Delay, delays[i])
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}
	return buf.Bytes(), nil
}
