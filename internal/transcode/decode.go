package transcode

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"

	"golang.org/x/image/draw"

	"lcdbridge/internal/imaging"
)

const defaultNativeDelayMS = 100

// Source is a decoded animation: fully composed frames plus their native
// display time in milliseconds.
type Source struct {
	Frames []*image.RGBA
	Delays []int
}

// LoadSource reads an animated GIF, or a PNG/JPEG still as a one-frame
// animation, from path.
func LoadSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return DecodeSource(bufio.NewReader(f))
}

// DecodeSource decodes an animation from r.
func DecodeSource(r io.Reader) (*Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if bytes.HasPrefix(data, []byte("GIF8")) {
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode gif: %w", err)
		}
		return composeGIF(g), nil
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Source{Frames: []*image.RGBA{imaging.ToRGBA(img)}, Delays: []int{defaultNativeDelayMS}}, nil
}

// composeGIF replays GIF disposal so every output frame is a complete
// picture rather than a partial delta.
func composeGIF(g *gif.GIF) *Source {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() && len(g.Image) > 0 {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)
	src := &Source{
		Frames: make([]*image.RGBA, 0, len(g.Image)),
		Delays: make([]int, 0, len(g.Image)),
	}
	for i, frame := range g.Image {
		var previous *image.RGBA
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		src.Frames = append(src.Frames, flattenOnBlack(canvas))

		delay := defaultNativeDelayMS
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = g.Delay[i] * 10
		}
		src.Delays = append(src.Delays, delay)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return src
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out
}

func flattenOnBlack(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	draw.Draw(out, out.Rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(out, out.Rect, img, img.Rect.Min, draw.Over)
	return out
}
