package playback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"lcdbridge/internal/state"
)

// looseInt accepts a JSON number, a numeric string, or null. Anything it
// cannot read leaves the field unset.
type looseInt struct {
	value int
	set   bool
}

func (l *looseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			l.value, l.set = int(f), true
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		l.value, l.set = n, true
	}
	return nil
}

func (l looseInt) or(def int) int {
	if l.set {
		return l.value
	}
	return def
}

// looseString accepts a JSON string or number; the plugin sends fps either way.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = looseString(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	*l = looseString(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

type specPayload struct {
	Path     string      `json:"path"`
	Rotation looseInt    `json:"rotation"`
	FPS      looseString `json:"fps"`
	FitMode  string      `json:"fitMode"`
	Zoom     looseInt    `json:"zoom"`
	OffsetX  looseInt    `json:"offsetX"`
	OffsetY  looseInt    `json:"offsetY"`
}

// ParseSpec decodes a /gif or /gif/config body. Omitted fields take the
// request defaults: rotation 0, native fps, Fill, zoom 100, centred.
func ParseSpec(body []byte) (state.PlaybackSpec, error) {
	var p specPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return state.PlaybackSpec{}, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	fit := state.Fill
	if strings.TrimSpace(p.FitMode) != "" {
		fit = state.ParseFitMode(p.FitMode)
	}
	spec := state.PlaybackSpec{
		SourcePath: p.Path,
		Rotation:   p.Rotation.or(0),
		FPS:        string(p.FPS),
		FitMode:    fit,
		Zoom:       p.Zoom.or(state.MinZoom),
		OffsetX:    p.OffsetX.or(0),
		OffsetY:    p.OffsetY.or(0),
	}
	return spec.Normalized(), nil
}
