package device

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrBucketNotFound reports a delete against an empty bucket slot.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrDisconnected reports that the USB device is gone.
	ErrDisconnected = errors.New("device disconnected")
	// ErrNotStreaming reports a frame write while streaming is not armed.
	ErrNotStreaming = errors.New("device not armed for streaming")
	// ErrUnknownDriver reports an Open call for an unregistered driver.
	ErrUnknownDriver = errors.New("unknown device driver")
)

// DisplayMode is a firmware LCD mode accepted by SetMode.
type DisplayMode byte

const (
	// ModeLiquid is the neutral firmware mode showing the liquid temperature.
	ModeLiquid DisplayMode = 0x02
	// ModeBucket plays the animation stored in a bucket slot.
	ModeBucket DisplayMode = 0x04
)

func (m DisplayMode) String() string {
	switch m {
	case ModeLiquid:
		return "liquid"
	case ModeBucket:
		return "bucket"
	default:
		return fmt.Sprintf("mode(0x%02x)", byte(m))
	}
}

// FrameFormat is the pixel layout the device expects for streamed frames.
type FrameFormat string

const (
	// FormatRGBA is 4 bytes per pixel, row-major.
	FormatRGBA FrameFormat = "RGBA"
	// FormatQ565 is 2 bytes per pixel RGB565 little-endian, row-major.
	FormatQ565 FrameFormat = "Q565"
)

// BytesPerPixel returns the frame stride factor for the format.
func (f FrameFormat) BytesPerPixel() int {
	if f == FormatQ565 {
		return 2
	}
	return 4
}

// Resolution is the LCD size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the display bounds anchored at the origin.
func (r Resolution) Rect() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// FrameSize returns the expected DeviceFrame length for the format.
func (r Resolution) FrameSize(format FrameFormat) int {
	return r.Width * r.Height * format.BytesPerPixel()
}

// Info is the identity block reported by the device and relayed by GET /.
type Info struct {
	Serial        string      `json:"serial"`
	Name          string      `json:"name"`
	Resolution    Resolution  `json:"resolution"`
	RenderingMode FrameFormat `json:"renderingMode"`
	Image         string      `json:"image"`
}

// Stats are the device-reported cooling values.
type Stats struct {
	Liquid float64 `json:"liquid"`
	Pump   float64 `json:"pump"`
}

// Gateway is the command surface of the cooler LCD. Implementations are not
// safe for concurrent use; callers serialize through access.Coordinator.
type Gateway interface {
	Info() Info
	Resolution() Resolution
	MaxBucketSize() int
	// Reset re-arms host streaming after a firmware mode change.
	Reset() error
	// Clear drains queued status messages.
	Clear() error
	WriteFrame(frame []byte) error
	Stats() (Stats, error)
	SetBrightness(level int) error
	SetMode(mode DisplayMode, param byte) error
	// DeleteBucket removes the bucket, retrying internally up to retries times.
	DeleteBucket(id, retries int) error
	CreateBucket(id, size int) error
	WriteGIF(id int, blob []byte) error
	Close() error
}
