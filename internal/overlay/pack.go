package overlay

import (
	"image"
	"image/color"
	"image/color/palette"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/draw"

	"lcdbridge/internal/device"
)

// Packer converts composed frames into the device's streaming pixel layout.
type Packer struct {
	format    device.FrameFormat
	res       device.Resolution
	quantizer draw.Quantizer
	web       []uint16
}

// NewPacker builds a packer for the given layout and resolution.
func NewPacker(format device.FrameFormat, res device.Resolution) *Packer {
	return &Packer{
		format:    format,
		res:       res,
		quantizer: quantize.MedianCutQuantizer{Aggregation: quantize.Mean},
		web:       rgb565Table(palette.WebSafe),
	}
}

// FrameSize is the byte length of every packed frame.
func (p *Packer) FrameSize() int {
	return p.res.FrameSize(p.format)
}

// Pack flattens img onto black and encodes it. Q565 output is first reduced
// to the requested palette with Floyd-Steinberg dithering.
func (p *Packer) Pack(img *image.RGBA, pal Palette) []byte {
	flat := flatten(img, p.res)
	if p.format != device.FormatQ565 {
		return flat.Pix
	}

	colors := color.Palette(palette.WebSafe)
	table := p.web
	if pal == PaletteAdaptive {
		colors = p.quantizer.Quantize(make(color.Palette, 0, 256), flat)
		table = rgb565Table(colors)
	}
	indexed := image.NewPaletted(flat.Rect, colors)
	draw.FloydSteinberg.Draw(indexed, indexed.Rect, flat, image.Point{})

	out := make([]byte, 0, len(indexed.Pix)*2)
	for _, idx := range indexed.Pix {
		v := table[idx]
		out = append(out, byte(v), byte(v>>8))
	}
	return out
}

// flatten copies img into a fully opaque frame of the display size. Pixels are
// premultiplied, so compositing over black only forces alpha to 255.
func flatten(img *image.RGBA, res device.Resolution) *image.RGBA {
	flat := image.NewRGBA(res.Rect())
	draw.Draw(flat, flat.Rect, img, img.Rect.Min, draw.Src)
	for i := 3; i < len(flat.Pix); i += 4 {
		flat.Pix[i] = 0xff
	}
	return flat
}

func rgb565Table(colors color.Palette) []uint16 {
	table := make([]uint16, len(colors))
	for i, c := range colors {
		table[i] = RGB565(c)
	}
	return table
}

// RGB565 packs a colour into 5-6-5 bits.
func RGB565(c color.Color) uint16 {
	r, g, b, _ := c.RGBA()
	return uint16(r>>11)<<11 | uint16(g>>10)<<5 | uint16(b>>11)
}
