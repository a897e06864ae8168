// Package imaging holds the raster helpers shared by the streaming overlay
// and the animation transcoder.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // registers the JPEG decoder for streamed stills
	_ "image/png"  // registers the PNG decoder for streamed stills
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Decode parses an encoded PNG or JPEG still.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode still: empty payload")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode still: %w", err)
	}
	return img, nil
}

// ToRGBA returns img as an *image.RGBA anchored at the origin, copying only
// when necessary.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}

// Resize scales img to exactly w×h with Catmull-Rom resampling.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Rect, img, b, draw.Src, nil)
	return dst
}

// Rotate turns img counter-clockwise by degrees about its centre, keeping the
// original canvas size. Uncovered pixels take the background colour.
func Rotate(img image.Image, degrees float64, background color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if background != nil {
		draw.Draw(dst, dst.Rect, image.NewUniform(background), image.Point{}, draw.Src)
	}
	turn := math.Mod(degrees, 360)
	if turn < 0 {
		turn += 360
	}
	if turn == 0 {
		draw.Draw(dst, dst.Rect, img, b.Min, draw.Over)
		return dst
	}

	rad := turn * math.Pi / 180
	sin, cos := math.Sincos(rad)
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2
	dx := float64(b.Dx()) / 2
	dy := float64(b.Dy()) / 2
	// Source to destination: translate to the centre, rotate, translate back
	// into destination space. y grows downward, so a visual counter-clockwise
	// turn maps (1,0) to (cos, -sin).
	s2d := f64.Aff3{
		cos, sin, dx - cx*cos - cy*sin,
		-sin, cos, dy + cx*sin - cy*cos,
	}
	draw.BiLinear.Transform(dst, s2d, img, b, draw.Over, nil)
	return dst
}
