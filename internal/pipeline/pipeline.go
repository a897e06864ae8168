package pipeline

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"lcdbridge/internal/access"
	"lcdbridge/internal/logging"
	"lcdbridge/internal/metrics"
	"lcdbridge/internal/overlay"
	"lcdbridge/internal/state"
)

// RawFrame is one encoded still received at the boundary. It is consumed
// exactly once by Compose.
type RawFrame struct {
	Data     []byte
	Request  overlay.Request
	Received time.Time
	// Gap is the time since the previous accepted frame arrived.
	Gap time.Duration
}

// DeviceFrame is a packed pixel buffer ready for the device. Emit owns it
// once dequeued.
type DeviceFrame struct {
	Pix    []byte
	Queued time.Duration
	Render time.Duration
}

// Composer resizes a still and draws its overlay.
type Composer interface {
	Compose(src image.Image, req overlay.Request) (*image.RGBA, error)
}

// Packer encodes a composed frame in the device layout.
type Packer interface {
	Pack(img *image.RGBA, pal overlay.Palette) []byte
}

// Options tunes queue sizes and the device telemetry refresh.
type Options struct {
	QueueCapacity int
	StatsRefresh  time.Duration
}

var errPlaybackActive = errors.New("playback owns the display")

// Pipeline moves frames from Ingest through Compose to Emit.
type Pipeline struct {
	shared   *state.Shared
	device   *access.Coordinator
	composer Composer
	packer   Packer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	opts     Options
	now      func() time.Time

	input  chan RawFrame
	output chan DeviceFrame

	arrivalMu   sync.Mutex
	lastArrival time.Time

	// Emit-owned.
	lastStats    time.Time
	lastWrite    time.Time
	fps          float64
	writeFailing bool
	failedWrites int

	mu      sync.Mutex
	running bool
	cancel  func()
	wg      sync.WaitGroup
}

// New wires the pipeline. Frames are not processed until Start.
func New(shared *state.Shared, dev *access.Coordinator, composer Composer, packer Packer, m *metrics.Metrics, logger *slog.Logger, opts Options) *Pipeline {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 2
	}
	if opts.StatsRefresh <= 0 {
		opts.StatsRefresh = time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		shared:   shared,
		device:   dev,
		composer: composer,
		packer:   packer,
		metrics:  m,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		input:    make(chan RawFrame, opts.QueueCapacity),
		output:   make(chan DeviceFrame, opts.QueueCapacity),
	}
}
