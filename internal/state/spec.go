package state

import (
	"strconv"
	"strings"
)

// FitMode maps source dimensions onto the display.
type FitMode string

const (
	Fill    FitMode = "Fill"
	Fit     FitMode = "Fit"
	Stretch FitMode = "Stretch"
)

// ParseFitMode accepts any casing; unknown values select Fill.
func ParseFitMode(value string) FitMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "fit":
		return Fit
	case "stretch":
		return Stretch
	default:
		return Fill
	}
}

const (
	MinZoom   = 100
	MaxZoom   = 400
	MaxOffset = 50
)

// PlaybackSpec describes one firmware playback request. FPS keeps the raw
// request text; an empty or non-positive value means native timing.
type PlaybackSpec struct {
	SourcePath string  `json:"path"`
	Rotation   int     `json:"rotation"`
	FPS        string  `json:"fps"`
	FitMode    FitMode `json:"fitMode"`
	Zoom       int     `json:"zoom"`
	OffsetX    int     `json:"offsetX"`
	OffsetY    int     `json:"offsetY"`
}

// DefaultPlaybackSpec has no source and the request defaults.
func DefaultPlaybackSpec() PlaybackSpec {
	return PlaybackSpec{FitMode: Fill, Zoom: MinZoom}
}

// Normalized clamps zoom and offsets into range and canonicalizes the fit mode.
func (p PlaybackSpec) Normalized() PlaybackSpec {
	p.SourcePath = strings.TrimSpace(p.SourcePath)
	p.FitMode = ParseFitMode(string(p.FitMode))
	p.Zoom = clamp(p.Zoom, MinZoom, MaxZoom)
	p.OffsetX = clamp(p.OffsetX, -MaxOffset, MaxOffset)
	p.OffsetY = clamp(p.OffsetY, -MaxOffset, MaxOffset)
	p.FPS = strings.TrimSpace(p.FPS)
	return p
}

// TargetFPS returns the explicit frame rate, or false for native timing.
func (p PlaybackSpec) TargetFPS() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(p.FPS), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
