package transcode

import (
	"image"
	"image/color"
	"testing"

	"lcdbridge/internal/state"
)

func TestPlaceKeepsRegionsInBounds(t *testing.T) {
	target := image.Pt(64, 48)
	full := image.Rectangle{Max: target}
	sources := []image.Point{{10, 10}, {200, 30}, {30, 200}, {64, 48}, {1, 1}, {500, 499}}
	for _, mode := range []state.FitMode{state.Fill, state.Fit, state.Stretch} {
		for _, src := range sources {
			for _, zoom := range []int{100, 150, 400} {
				for _, off := range []int{-50, -17, 0, 33, 50} {
					p := Place(mode, src, target, zoom, off, -off)
					if !p.Dst.In(full) {
						t.Fatalf("%s %v zoom=%d off=%d: dst %v outside target", mode, src, zoom, off, p.Dst)
					}
					srcRect := image.Rectangle{Min: p.Src, Max: p.Src.Add(p.Dst.Size())}
					if !p.Dst.Empty() && !srcRect.In(image.Rectangle{Max: p.Scaled}) {
						t.Fatalf("%s %v zoom=%d off=%d: src %v outside scaled %v", mode, src, zoom, off, srcRect, p.Scaled)
					}
					if mode != state.Fit && p.Dst != full {
						t.Fatalf("%s %v: expected full coverage, got %v", mode, src, p.Dst)
					}
				}
			}
		}
	}
}

func TestPlaceGeometry(t *testing.T) {
	target := image.Pt(640, 640)
	cases := []struct {
		name string
		mode state.FitMode
		src  image.Point
		zoom int
		offX int
		offY int
		want Placement
	}{
		{
			name: "fit letterboxes",
			mode: state.Fit, src: image.Pt(320, 160), zoom: 100,
			want: Placement{Scaled: image.Pt(640, 320), Dst: image.Rect(0, 160, 640, 480)},
		},
		{
			name: "fit offset shifts by half extent",
			mode: state.Fit, src: image.Pt(320, 160), zoom: 100, offY: 50,
			want: Placement{Scaled: image.Pt(640, 320), Dst: image.Rect(0, 480, 640, 640)},
		},
		{
			name: "fit zoom crops overflow",
			mode: state.Fit, src: image.Pt(100, 100), zoom: 200,
			want: Placement{Scaled: image.Pt(1280, 1280), Dst: image.Rect(0, 0, 640, 640), Src: image.Pt(320, 320)},
		},
		{
			name: "fill centres crop",
			mode: state.Fill, src: image.Pt(320, 160), zoom: 100,
			want: Placement{Scaled: image.Pt(1280, 640), Dst: image.Rect(0, 0, 640, 640), Src: image.Pt(320, 0)},
		},
		{
			name: "fill offset clamps",
			mode: state.Fill, src: image.Pt(320, 160), zoom: 100, offX: -50,
			want: Placement{Scaled: image.Pt(1280, 640), Dst: image.Rect(0, 0, 640, 640), Src: image.Pt(640, 0)},
		},
		{
			name: "stretch ignores aspect",
			mode: state.Stretch, src: image.Pt(320, 160), zoom: 300, offX: 20,
			want: Placement{Scaled: image.Pt(640, 640), Dst: image.Rect(0, 0, 640, 640)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Place(tc.mode, tc.src, target, tc.zoom, tc.offX, tc.offY)
			if got != tc.want {
				t.Fatalf("Place = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestFitFrameLetterboxIsBlack(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	spec := state.PlaybackSpec{FitMode: state.Fit, Zoom: 100}
	out := FitFrame(src, spec, image.Pt(16, 16))
	if got := out.RGBAAt(8, 1); got != (color.RGBA{A: 0xff}) {
		t.Fatalf("letterbox = %v, want black", got)
	}
	if got := out.RGBAAt(8, 8); got.R < 0xf0 {
		t.Fatalf("content = %v, want white", got)
	}
}
