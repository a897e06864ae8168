package testsupport

import (
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
)

// WriteGIF writes a small two-frame animation alternating red and blue.
func WriteGIF(t testing.TB, path string) {
	t.Helper()

	pal := color.Palette{color.RGBA{R: 0xff, A: 0xff}, color.RGBA{B: 0xff, A: 0xff}}
	anim := &gif.GIF{Config: image.Config{Width: 8, Height: 8, ColorModel: pal}}
	for i := range 2 {
		frame := image.NewPaletted(image.Rect(0, 0, 8, 8), pal)
		for p := range frame.Pix {
			frame.Pix[p] = uint8(i)
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := gif.EncodeAll(f, anim); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}
