package transcode

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"lcdbridge/internal/imaging"
	"lcdbridge/internal/state"
)

// Placement maps a scaled source onto the target canvas: Scaled is the size
// the source is resampled to, and the Dst rectangle of the target receives the
// scaled pixels starting at Src.
type Placement struct {
	Scaled image.Point
	Dst    image.Rectangle
	Src    image.Point
}

// Place computes the geometric fit of a src-sized frame onto target. Offsets
// are percentages of half the target extent; zoom is a percentage ≥ 100.
func Place(mode state.FitMode, src, target image.Point, zoom, offsetX, offsetY int) Placement {
	full := image.Rectangle{Max: target}
	if mode == state.Stretch || src.X <= 0 || src.Y <= 0 {
		return Placement{Scaled: target, Dst: full}
	}

	sx := float64(target.X) / float64(src.X)
	sy := float64(target.Y) / float64(src.Y)
	scale := math.Max(sx, sy)
	if mode == state.Fit {
		scale = math.Min(sx, sy)
	}
	scale *= float64(zoom) / 100
	scaled := image.Pt(
		max(1, int(math.Round(float64(src.X)*scale))),
		max(1, int(math.Round(float64(src.Y)*scale))),
	)
	shiftX := int(math.Round(float64(offsetX) / 50 * float64(target.X) / 2))
	shiftY := int(math.Round(float64(offsetY) / 50 * float64(target.Y) / 2))

	var origin image.Point
	if mode == state.Fit {
		// Letterbox: the scaled frame sits centred, shifted by the offset.
		origin = image.Pt(
			floorDiv(target.X-scaled.X, 2)+shiftX,
			floorDiv(target.Y-scaled.Y, 2)+shiftY,
		)
	} else {
		// Crop window into the scaled frame, clamped to stay inside it.
		crop := image.Pt(
			clamp(floorDiv(scaled.X-target.X, 2)-shiftX, 0, scaled.X-target.X),
			clamp(floorDiv(scaled.Y-target.Y, 2)-shiftY, 0, scaled.Y-target.Y),
		)
		origin = crop.Mul(-1)
	}

	dst := image.Rectangle{Min: origin, Max: origin.Add(scaled)}.Intersect(full)
	if dst.Empty() {
		return Placement{Scaled: scaled}
	}
	return Placement{Scaled: scaled, Dst: dst, Src: dst.Min.Sub(origin)}
}

// FitFrame renders img onto a black target canvas according to spec.
func FitFrame(img image.Image, spec state.PlaybackSpec, target image.Point) *image.RGBA {
	b := img.Bounds()
	p := Place(spec.FitMode, b.Size(), target, spec.Zoom, spec.OffsetX, spec.OffsetY)
	canvas := image.NewRGBA(image.Rectangle{Max: target})
	draw.Draw(canvas, canvas.Rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
	if p.Dst.Empty() {
		return canvas
	}
	scaled := imaging.Resize(img, p.Scaled.X, p.Scaled.Y)
	draw.Draw(canvas, p.Dst, scaled, p.Src, draw.Src)
	return canvas
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
