package overlay

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"lcdbridge/internal/state"
)

// ErrInvalidRequest reports a frame body that cannot be turned into a Request.
var ErrInvalidRequest = errors.New("invalid frame request")

// Composition selects how the overlay combines with the streamed image.
type Composition int

const (
	CompositionOff Composition = iota
	CompositionMix
	CompositionOverlay
)

func (c Composition) String() string {
	switch c {
	case CompositionMix:
		return "MIX"
	case CompositionOverlay:
		return "OVERLAY"
	default:
		return "OFF"
	}
}

// Spinner selects the ring drawn around the display edge.
type Spinner int

const (
	SpinnerNone Spinner = iota
	SpinnerStatic
	SpinnerCPU
	SpinnerPump
)

func (s Spinner) String() string {
	switch s {
	case SpinnerStatic:
		return "STATIC"
	case SpinnerCPU:
		return "CPU"
	case SpinnerPump:
		return "PUMP"
	default:
		return "OFF"
	}
}

// field returns the telemetry percentage that drives a rotating spinner.
func (s Spinner) field() (state.Field, bool) {
	switch s {
	case SpinnerCPU:
		return state.CPULoad, true
	case SpinnerPump:
		return state.Pump, true
	default:
		return 0, false
	}
}

// Palette selects colour reduction for low-depth device frames.
type Palette int

const (
	PaletteWeb Palette = iota
	PaletteAdaptive
)

func (p Palette) String() string {
	if p == PaletteAdaptive {
		return "ADAPTIVE"
	}
	return "WEB"
}

// Sensor is the telemetry reading shown by the text overlay.
type Sensor struct {
	Name  string
	Field state.Field
	Label string
}

var (
	SensorLiquid  = Sensor{Name: "Liquid", Field: state.Liquid, Label: "Liquid"}
	SensorCPUTemp = Sensor{Name: "CPU Temp", Field: state.CPUTemp, Label: "CPU"}
	SensorGPUTemp = Sensor{Name: "GPU Temp", Field: state.GPUTemp, Label: "GPU"}
)

// Text configures the centred title, value, and label.
type Text struct {
	Title     string
	TitleSize float64
	ValueSize float64
	LabelSize float64
	Source    Sensor
}

// Request holds the overlay directives of one streamed frame. It is resolved
// once at parse time and never mutated afterwards.
type Request struct {
	Rotation     int
	Palette      Palette
	Composition  Composition
	Transparency int
	Spinner      Spinner

	// Text is nil when the text overlay is disabled.
	Text *Text
}

// Alpha is the overlay ink opacity. Only OVERLAY composition honours the
// transparency setting.
func (r Request) Alpha() uint8 {
	if r.Composition != CompositionOverlay {
		return 255
	}
	return uint8(math.Round(float64(100-r.Transparency) * 255 / 100))
}

// Request defaults used for omitted fields.
const (
	DefaultTitle     = "SignalRGB"
	DefaultTitleSize = 40
	DefaultValueSize = 160
	DefaultLabelSize = 40
)

// DefaultRequest matches the values the streaming plugin starts with.
func DefaultRequest() Request {
	return Request{
		Palette:     PaletteWeb,
		Composition: CompositionOverlay,
		Spinner:     SpinnerStatic,
		Text: &Text{
			Title:     DefaultTitle,
			TitleSize: DefaultTitleSize,
			ValueSize: DefaultValueSize,
			LabelSize: DefaultLabelSize,
			Source:    SensorLiquid,
		},
	}
}

type framePayload struct {
	Raw                 string   `json:"raw"`
	Rotation            *float64 `json:"rotation"`
	ColorPalette        *string  `json:"colorPalette"`
	Composition         *string  `json:"composition"`
	OverlayTransparency *float64 `json:"overlayTransparency"`
	Spinner             *string  `json:"spinner"`
	TextOverlay         *bool    `json:"textOverlay"`
	TitleText           *string  `json:"titleText"`
	TitleFontSize       *float64 `json:"titleFontSize"`
	SensorFontSize      *float64 `json:"sensorFontSize"`
	SensorLabelFontSize *float64 `json:"sensorLabelFontSize"`
	SensorSource        *string  `json:"sensorSource"`
}

// ParseFrame decodes a POST /frame body into the encoded still and its
// overlay directives. Omitted fields take DefaultRequest values; unknown
// enum values are rejected.
func ParseFrame(body []byte) ([]byte, Request, error) {
	var p framePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p.Raw))
	if err != nil {
		return nil, Request{}, fmt.Errorf("%w: raw: %v", ErrInvalidRequest, err)
	}
	if len(raw) == 0 {
		return nil, Request{}, fmt.Errorf("%w: raw image missing", ErrInvalidRequest)
	}

	req := DefaultRequest()
	text := *req.Text
	if p.Rotation != nil {
		req.Rotation = int(math.Round(*p.Rotation))
	}
	if p.ColorPalette != nil {
		if req.Palette, err = parsePalette(*p.ColorPalette); err != nil {
			return nil, Request{}, err
		}
	}
	if p.Composition != nil {
		if req.Composition, err = parseComposition(*p.Composition); err != nil {
			return nil, Request{}, err
		}
	}
	if p.OverlayTransparency != nil {
		req.Transparency = clampInt(int(math.Round(*p.OverlayTransparency)), 0, 100)
	}
	if p.Spinner != nil {
		if req.Spinner, err = parseSpinner(*p.Spinner); err != nil {
			return nil, Request{}, err
		}
	}
	if p.TitleText != nil {
		text.Title = norm.NFC.String(*p.TitleText)
	}
	text.TitleSize = fontSize(p.TitleFontSize, text.TitleSize)
	text.ValueSize = fontSize(p.SensorFontSize, text.ValueSize)
	text.LabelSize = fontSize(p.SensorLabelFontSize, text.LabelSize)
	if p.SensorSource != nil {
		if text.Source, err = parseSensor(*p.SensorSource); err != nil {
			return nil, Request{}, err
		}
	}
	req.Text = &text
	if p.TextOverlay != nil && !*p.TextOverlay {
		req.Text = nil
	}
	return raw, req, nil
}

func parseComposition(value string) (Composition, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "OFF":
		return CompositionOff, nil
	case "MIX":
		return CompositionMix, nil
	case "OVERLAY":
		return CompositionOverlay, nil
	}
	return 0, fmt.Errorf("%w: composition %q", ErrInvalidRequest, value)
}

func parseSpinner(value string) (Spinner, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "OFF", "NONE":
		return SpinnerNone, nil
	case "STATIC":
		return SpinnerStatic, nil
	case "CPU":
		return SpinnerCPU, nil
	case "PUMP":
		return SpinnerPump, nil
	}
	return 0, fmt.Errorf("%w: spinner %q", ErrInvalidRequest, value)
}

func parsePalette(value string) (Palette, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "WEB":
		return PaletteWeb, nil
	case "ADAPTIVE":
		return PaletteAdaptive, nil
	}
	return 0, fmt.Errorf("%w: colorPalette %q", ErrInvalidRequest, value)
}

func parseSensor(value string) (Sensor, error) {
	fold := cases.Fold()
	key := fold.String(strings.TrimSpace(value))
	for _, s := range []Sensor{SensorLiquid, SensorCPUTemp, SensorGPUTemp} {
		if key == fold.String(s.Name) {
			return s, nil
		}
	}
	return Sensor{}, fmt.Errorf("%w: sensorSource %q", ErrInvalidRequest, value)
}

func fontSize(v *float64, fallback float64) float64 {
	if v == nil || *v < 1 || math.IsNaN(*v) {
		return fallback
	}
	return math.Round(*v)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
