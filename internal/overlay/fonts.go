package overlay

import (
	"fmt"
	"math"
	"os"
	"slices"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// maxFaces bounds the cache. One frame draws at most four sizes (title,
// value, degree glyph, label).
const maxFaces = 8

// fontCache hands out faces of one typeface keyed by pixel size. The least
// recently used face is closed once more than maxFaces sizes are cached.
type fontCache struct {
	font  *opentype.Font
	faces map[int]font.Face
	// recent lists cached sizes, most recently used last.
	recent []int
}

// newFontCache loads the TrueType/OpenType file at path, or the bundled Go
// Bold face when path is empty.
func newFontCache(path string) (*fontCache, error) {
	data := gobold.TTF
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font %s: %w", path, err)
		}
		data = raw
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &fontCache{font: f, faces: make(map[int]font.Face)}, nil
}

// face returns a face whose em size is size pixels.
func (c *fontCache) face(size float64) (font.Face, error) {
	px := int(math.Max(1, math.Round(size)))
	if f, ok := c.faces[px]; ok {
		c.touch(px)
		return f, nil
	}
	f, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    float64(px),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("font face %dpx: %w", px, err)
	}
	if len(c.recent) >= maxFaces {
		oldest := c.recent[0]
		c.recent = c.recent[1:]
		_ = c.faces[oldest].Close()
		delete(c.faces, oldest)
	}
	c.faces[px] = f
	c.recent = append(c.recent, px)
	return f, nil
}

func (c *fontCache) touch(px int) {
	if i := slices.Index(c.recent, px); i >= 0 {
		c.recent = append(slices.Delete(c.recent, i, i+1), px)
	}
}

func (c *fontCache) Close() {
	for px, f := range c.faces {
		_ = f.Close()
		delete(c.faces, px)
	}
	c.recent = nil
}
