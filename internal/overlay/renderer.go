package overlay

import (
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"lcdbridge/internal/device"
	"lcdbridge/internal/imaging"
	"lcdbridge/internal/state"
)

// Options configures a Renderer.
type Options struct {
	Resolution device.Resolution
	FontPath   string
	MinSpeed   float64
	BaseSpeed  float64
	Decay      float64
	DecayFloor int
}

// Renderer draws overlays for streamed frames. The rotating spinner keeps a
// canvas across frames so earlier arcs fade out; a Renderer therefore belongs
// to a single compose loop and is not safe for concurrent use.
type Renderer struct {
	opts      Options
	telemetry *state.Telemetry
	fonts     *fontCache
	spinner   *image.RGBA
	lastAngle float64
}

// NewRenderer builds a renderer sized to the display.
func NewRenderer(opts Options, telemetry *state.Telemetry) (*Renderer, error) {
	if opts.Resolution.Width <= 0 || opts.Resolution.Height <= 0 {
		return nil, fmt.Errorf("overlay: invalid resolution %dx%d", opts.Resolution.Width, opts.Resolution.Height)
	}
	if opts.Decay <= 1 {
		opts.Decay = 1.1
	}
	fonts, err := newFontCache(opts.FontPath)
	if err != nil {
		return nil, err
	}
	if telemetry == nil {
		telemetry = state.NewTelemetry()
	}
	return &Renderer{
		opts:      opts,
		telemetry: telemetry,
		fonts:     fonts,
		spinner:   image.NewRGBA(opts.Resolution.Rect()),
	}, nil
}

// Compose resizes src to the display and applies the request's overlay.
func (r *Renderer) Compose(src image.Image, req Request) (*image.RGBA, error) {
	res := r.opts.Resolution
	img := imaging.Resize(src, res.Width, res.Height)
	if req.Composition == CompositionOff {
		return img, nil
	}
	ov, err := r.Render(req)
	if err != nil {
		return nil, err
	}
	switch req.Composition {
	case CompositionMix:
		out := image.NewRGBA(img.Rect)
		draw.DrawMask(out, out.Rect, img, image.Point{}, ov, image.Point{}, draw.Src)
		return out, nil
	default:
		draw.Draw(img, img.Rect, ov, image.Point{}, draw.Over)
		return img, nil
	}
}

// Render draws the overlay layer alone, rotated counter-clockwise by the
// request rotation.
func (r *Renderer) Render(req Request) (*image.RGBA, error) {
	res := r.opts.Resolution
	w, h := float64(res.Width), float64(res.Height)
	alpha := req.Alpha()
	lineWidth := float64(res.Width / 20)

	layer := image.NewRGBA(res.Rect())
	if field, ok := req.Spinner.field(); ok {
		r.advanceSpinner(field, alpha, lineWidth)
		draw.Draw(layer, layer.Rect, r.spinner, image.Point{}, draw.Src)
	}

	dc := gg.NewContextForRGBA(layer)
	dc.SetRGBA255(255, 255, 255, int(alpha))
	if req.Spinner == SpinnerStatic {
		dc.SetLineWidth(lineWidth)
		dc.DrawEllipse(w/2, h/2, w/2-lineWidth/2, h/2-lineWidth/2)
		dc.Stroke()
	}
	if req.Text != nil {
		if err := r.drawText(dc, req.Text, w, h); err != nil {
			return nil, err
		}
	}
	if req.Rotation%360 == 0 {
		return layer, nil
	}
	return imaging.Rotate(layer, float64(req.Rotation), nil), nil
}

// advanceSpinner fades the retained canvas and draws the next two arc
// segments, the leading half slightly dimmer than the trailing half.
func (r *Renderer) advanceSpinner(field state.Field, alpha uint8, lineWidth float64) {
	r.decay()
	pct, _ := r.telemetry.Get(field)
	step := r.opts.MinSpeed + r.opts.BaseSpeed*pct/100
	next := r.lastAngle + step

	res := r.opts.Resolution
	w, h := float64(res.Width), float64(res.Height)
	dc := gg.NewContextForRGBA(r.spinner)
	dc.SetLineWidth(lineWidth)
	dc.SetLineCapButt()
	arc := func(from, to float64, a uint8) {
		dc.SetRGBA255(255, 255, 255, int(a))
		dc.DrawEllipticalArc(w/2, h/2, w/2-lineWidth/2, h/2-lineWidth/2, gg.Radians(from), gg.Radians(to))
		dc.Stroke()
	}
	arc(r.lastAngle, r.lastAngle+step/2, uint8(math.Round(float64(alpha)/1.05)))
	arc(r.lastAngle+step/2, next, alpha)
	r.lastAngle = math.Mod(next, 360)
}

// decay divides every alpha on the spinner canvas by the decay factor and
// clears pixels at or below the floor. Colour channels are premultiplied and
// scale with alpha.
func (r *Renderer) decay() {
	pix := r.spinner.Pix
	floor := uint8(max(0, min(255, r.opts.DecayFloor)))
	for i := 0; i+3 < len(pix); i += 4 {
		a := pix[i+3]
		if a == 0 {
			continue
		}
		if a <= floor {
			pix[i], pix[i+1], pix[i+2], pix[i+3] = 0, 0, 0, 0
			continue
		}
		na := math.Round(float64(a) / r.opts.Decay)
		scale := na / float64(a)
		pix[i] = uint8(math.Round(float64(pix[i]) * scale))
		pix[i+1] = uint8(math.Round(float64(pix[i+1]) * scale))
		pix[i+2] = uint8(math.Round(float64(pix[i+2]) * scale))
		pix[i+3] = uint8(na)
	}
}

func (r *Renderer) drawText(dc *gg.Context, text *Text, w, h float64) error {
	value := "--"
	if v, ok := r.telemetry.Get(text.Source.Field); ok {
		value = fmt.Sprintf("%.0f", v)
	}

	if err := r.drawCentered(dc, text.Title, text.TitleSize, w/2, h/5); err != nil {
		return err
	}
	if err := r.drawCentered(dc, value, text.ValueSize, w/2, h/2); err != nil {
		return err
	}
	vw, vh := dc.MeasureString(value)
	degree, err := r.fonts.face(math.Floor(text.ValueSize / 3))
	if err != nil {
		return err
	}
	dc.SetFontFace(degree)
	dc.DrawStringAnchored("°", w/2+vw/2, h/2-vh/2, 0, 1)

	return r.drawCentered(dc, text.Source.Label, text.LabelSize, w/2, 4*h/5)
}

func (r *Renderer) drawCentered(dc *gg.Context, s string, size, x, y float64) error {
	face, err := r.fonts.face(size)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.DrawStringAnchored(s, x, y, 0.5, 0.5)
	return nil
}

// Close releases cached font faces.
func (r *Renderer) Close() {
	r.fonts.Close()
}
