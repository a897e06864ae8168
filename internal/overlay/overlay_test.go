package overlay

import (
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"testing"

	"lcdbridge/internal/device"
	"lcdbridge/internal/state"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func newTestRenderer(t *testing.T, tel *state.Telemetry) *Renderer {
	t.Helper()
	r, err := NewRenderer(Options{
		Resolution: device.Resolution{Width: 64, Height: 64},
		MinSpeed:   2,
		BaseSpeed:  18,
		Decay:      1.1,
		DecayFloor: 10,
	}, tel)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestParseFrame(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	t.Run("defaults", func(t *testing.T) {
		data, req, err := ParseFrame([]byte(`{"raw":"` + raw + `"}`))
		if err != nil {
			t.Fatalf("ParseFrame: %v", err)
		}
		if string(data) != "png-bytes" {
			t.Fatalf("raw = %q", data)
		}
		if req.Composition != CompositionOverlay || req.Spinner != SpinnerStatic || req.Palette != PaletteWeb {
			t.Fatalf("unexpected defaults %+v", req)
		}
		if req.Text == nil || req.Text.Source != SensorLiquid || req.Text.ValueSize != DefaultValueSize {
			t.Fatalf("unexpected text defaults %+v", req.Text)
		}
	})

	t.Run("explicit", func(t *testing.T) {
		body := `{"raw":"` + raw + `","rotation":90,"colorPalette":"ADAPTIVE","composition":"MIX",
			"overlayTransparency":150,"spinner":"OFF","textOverlay":true,"titleText":"Café",
			"titleFontSize":20,"sensorFontSize":0,"sensorLabelFontSize":12,"sensorSource":"GPU Temp"}`
		_, req, err := ParseFrame([]byte(body))
		if err != nil {
			t.Fatalf("ParseFrame: %v", err)
		}
		if req.Rotation != 90 || req.Palette != PaletteAdaptive || req.Composition != CompositionMix {
			t.Fatalf("unexpected request %+v", req)
		}
		if req.Transparency != 100 || req.Spinner != SpinnerNone {
			t.Fatalf("transparency/spinner = %d/%v", req.Transparency, req.Spinner)
		}
		if req.Text.Title != "Café" {
			t.Fatalf("title not NFC normalized: %q", req.Text.Title)
		}
		if req.Text.TitleSize != 20 || req.Text.ValueSize != DefaultValueSize || req.Text.LabelSize != 12 {
			t.Fatalf("font sizes = %+v", req.Text)
		}
		if req.Text.Source != SensorGPUTemp {
			t.Fatalf("sensor = %+v", req.Text.Source)
		}
	})

	t.Run("text disabled", func(t *testing.T) {
		_, req, err := ParseFrame([]byte(`{"raw":"` + raw + `","textOverlay":false}`))
		if err != nil {
			t.Fatalf("ParseFrame: %v", err)
		}
		if req.Text != nil {
			t.Fatalf("expected nil text, got %+v", req.Text)
		}
	})

	for name, body := range map[string]string{
		"bad json":        `{`,
		"missing raw":     `{"composition":"OFF"}`,
		"bad base64":      `{"raw":"***"}`,
		"bad composition": `{"raw":"` + raw + `","composition":"BLEND"}`,
		"bad spinner":     `{"raw":"` + raw + `","spinner":"GPU"}`,
		"bad palette":     `{"raw":"` + raw + `","colorPalette":"CGA"}`,
		"bad sensor":      `{"raw":"` + raw + `","sensorSource":"Fan"}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseFrame([]byte(body)); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestRequestAlpha(t *testing.T) {
	cases := []struct {
		req  Request
		want uint8
	}{
		{Request{Composition: CompositionOverlay}, 255},
		{Request{Composition: CompositionOverlay, Transparency: 50}, 128},
		{Request{Composition: CompositionOverlay, Transparency: 100}, 0},
		{Request{Composition: CompositionMix, Transparency: 50}, 255},
	}
	for _, tc := range cases {
		if got := tc.req.Alpha(); got != tc.want {
			t.Fatalf("%v/%d alpha = %d, want %d", tc.req.Composition, tc.req.Transparency, got, tc.want)
		}
	}
}

func TestComposeOffOnlyResizes(t *testing.T) {
	r := newTestRenderer(t, nil)
	out, err := r.Compose(solid(16, 16, color.RGBA{R: 10, G: 20, B: 30, A: 255}), Request{Composition: CompositionOff, Spinner: SpinnerStatic})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if out.Rect.Dx() != 64 || out.Rect.Dy() != 64 {
		t.Fatalf("rect = %v", out.Rect)
	}
	if got := out.RGBAAt(32, 1); got != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("pixel = %v, overlay should be skipped", got)
	}
}

func TestStaticRingOverlayAndMix(t *testing.T) {
	r := newTestRenderer(t, nil)
	src := solid(64, 64, color.RGBA{B: 200, A: 255})

	over, err := r.Compose(src, Request{Composition: CompositionOverlay, Spinner: SpinnerStatic})
	if err != nil {
		t.Fatalf("Compose overlay: %v", err)
	}
	if got := over.RGBAAt(32, 1); got.R < 200 || got.G < 200 {
		t.Fatalf("ring pixel = %v, want white", got)
	}
	if got := over.RGBAAt(32, 32); got != (color.RGBA{B: 200, A: 255}) {
		t.Fatalf("centre = %v, want source", got)
	}

	mix, err := r.Compose(src, Request{Composition: CompositionMix, Spinner: SpinnerStatic})
	if err != nil {
		t.Fatalf("Compose mix: %v", err)
	}
	if got := mix.RGBAAt(32, 1); got.B < 180 || got.R > 20 {
		t.Fatalf("masked ring pixel = %v, want source colour", got)
	}
	if got := mix.RGBAAt(32, 32); got.A != 0 {
		t.Fatalf("unmasked centre = %v, want transparent", got)
	}
}

func TestSpinnerTrailDecays(t *testing.T) {
	tel := state.NewTelemetry()
	tel.Set(state.CPULoad, 100)
	r := newTestRenderer(t, tel)
	req := Request{Composition: CompositionOverlay, Spinner: SpinnerCPU}

	if _, err := r.Render(req); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if r.lastAngle != 20 {
		t.Fatalf("angle = %v, want 20 at full load", r.lastAngle)
	}
	first := r.spinner.RGBAAt(61, 39).A
	if first == 0 {
		t.Fatal("expected arc ink at 14 degrees")
	}

	if _, err := r.Render(Request{Composition: CompositionOverlay, Spinner: SpinnerNone}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := r.spinner.RGBAAt(61, 39).A; got != first {
		t.Fatalf("non-rotating render touched the trail: %d -> %d", first, got)
	}

	if _, err := r.Render(req); err != nil {
		t.Fatalf("Render: %v", err)
	}
	second := r.spinner.RGBAAt(61, 39).A
	if second == 0 || second >= first {
		t.Fatalf("trail alpha %d -> %d, want faded but visible", first, second)
	}
}

func TestDecayFloorClears(t *testing.T) {
	r := newTestRenderer(t, nil)
	r.spinner.Pix[0], r.spinner.Pix[3] = 100, 100
	r.spinner.Pix[4], r.spinner.Pix[7] = 10, 10
	r.decay()
	if r.spinner.Pix[3] != 91 || r.spinner.Pix[0] != 91 {
		t.Fatalf("decayed pixel = %v", r.spinner.Pix[:4])
	}
	if r.spinner.Pix[7] != 0 || r.spinner.Pix[4] != 0 {
		t.Fatalf("floor pixel = %v", r.spinner.Pix[4:8])
	}
}

func TestTextOverlayDrawsInk(t *testing.T) {
	tel := state.NewTelemetry()
	tel.Set(state.Liquid, 31)
	r := newTestRenderer(t, tel)
	req := DefaultRequest()
	req.Spinner = SpinnerNone
	req.Text.TitleSize, req.Text.ValueSize, req.Text.LabelSize = 8, 24, 8

	layer, err := r.Render(req)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	inked := 0
	for y := 24; y < 40; y++ {
		for x := 0; x < 64; x++ {
			if layer.RGBAAt(x, y).A > 0 {
				inked++
			}
		}
	}
	if inked == 0 {
		t.Fatal("expected value text around the centre line")
	}
}

func TestFontCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := newFontCache("")
	if err != nil {
		t.Fatalf("newFontCache: %v", err)
	}
	t.Cleanup(c.Close)

	keep, err := c.face(24)
	if err != nil {
		t.Fatalf("face(24): %v", err)
	}
	for size := 10; size < 40; size++ {
		if _, err := c.face(float64(size)); err != nil {
			t.Fatalf("face(%d): %v", size, err)
		}
		if _, err := c.face(24); err != nil {
			t.Fatalf("face(24): %v", err)
		}
		if len(c.faces) > maxFaces || len(c.recent) != len(c.faces) {
			t.Fatalf("cache holds %d faces, %d recent", len(c.faces), len(c.recent))
		}
	}
	if got, _ := c.face(24); got != keep {
		t.Fatal("face in steady use was evicted")
	}
	if _, ok := c.faces[10]; ok {
		t.Fatal("least recently used size still cached")
	}
}

func TestPack(t *testing.T) {
	res := device.Resolution{Width: 4, Height: 2}

	t.Run("rgba flattens alpha", func(t *testing.T) {
		p := NewPacker(device.FormatRGBA, res)
		out := p.Pack(solid(4, 2, color.RGBA{R: 60, A: 128}), PaletteWeb)
		if len(out) != p.FrameSize() || len(out) != 32 {
			t.Fatalf("len = %d", len(out))
		}
		if out[0] != 60 || out[3] != 0xff {
			t.Fatalf("first pixel = %v", out[:4])
		}
	})

	t.Run("q565 web", func(t *testing.T) {
		p := NewPacker(device.FormatQ565, res)
		out := p.Pack(solid(4, 2, color.RGBA{R: 255, A: 255}), PaletteWeb)
		if len(out) != 16 {
			t.Fatalf("len = %d", len(out))
		}
		if out[0] != 0x00 || out[1] != 0xf8 {
			t.Fatalf("red = %#x %#x, want 0x00 0xf8", out[0], out[1])
		}
	})

	t.Run("q565 adaptive keeps exact colour", func(t *testing.T) {
		p := NewPacker(device.FormatQ565, res)
		c := color.RGBA{R: 0x18, G: 0x30, B: 0x50, A: 255}
		out := p.Pack(solid(4, 2, c), PaletteAdaptive)
		want := RGB565(c)
		if got := uint16(out[0]) | uint16(out[1])<<8; got != want {
			t.Fatalf("pixel = %#x, want %#x", got, want)
		}
	})
}
