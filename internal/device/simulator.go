package device

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"lcdbridge/internal/logging"
)

const (
	simulatorSerial = "SIM-0001"
	simulatorName   = "NZXT Kraken Elite (simulated)"
	simulatorImage  = "2023elite"
	snapshotEvery   = time.Second
)

// Simulator is an in-memory Gateway with deterministic behaviour and fault
// injection. It records overlapping calls so tests can prove serialization.
type Simulator struct {
	mu sync.Mutex

	info     Info
	capacity int
	snapshot string
	logger   *slog.Logger

	armed      bool
	mode       DisplayMode
	brightness int
	stats      Stats
	buckets    map[int][]byte
	lastFrame  []byte
	lastSnap   time.Time
	calls      []string
	frames     int
	closed     bool
	callDelay  time.Duration
	writeFails int
	delFails   int
	createFail bool
	gifFail    bool
	statsFail  bool
	resetFail  bool

	inFlight atomic.Int32
	overlaps atomic.Int32
}

// NewSimulator returns a Simulator armed for streaming.
func NewSimulator(opts Options) *Simulator {
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = 640, 640
	}
	format := opts.FrameFormat
	if format != FormatQ565 {
		format = FormatRGBA
	}
	capacity := opts.BucketCapacity
	if capacity <= 0 {
		capacity = 24 * 1024 * 1024
	}
	return &Simulator{
		info: Info{
			Serial:        simulatorSerial,
			Name:          simulatorName,
			Resolution:    Resolution{Width: width, Height: height},
			RenderingMode: format,
			Image:         simulatorImage,
		},
		capacity:   capacity,
		snapshot:   opts.SnapshotPath,
		logger:     logging.NewComponentLogger(opts.Logger, "device.simulator"),
		armed:      true,
		mode:       ModeLiquid,
		brightness: 100,
		stats:      Stats{Liquid: 30, Pump: 60},
		buckets:    make(map[int][]byte),
	}
}

func (s *Simulator) enter(call string) func() {
	if s.inFlight.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	delay := s.callDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return func() { s.inFlight.Add(-1) }
}

func (s *Simulator) Info() Info { return s.info }

func (s *Simulator) Resolution() Resolution { return s.info.Resolution }

func (s *Simulator) MaxBucketSize() int { return s.capacity }

func (s *Simulator) Reset() error {
	defer s.enter("reset")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	if s.resetFail {
		return errors.New("simulated reset failure")
	}
	s.armed = true
	return nil
}

func (s *Simulator) Clear() error {
	defer s.enter("clear")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	return nil
}

func (s *Simulator) WriteFrame(frame []byte) error {
	defer s.enter("write_frame")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	if s.writeFails > 0 {
		s.writeFails--
		return errors.New("simulated frame write failure")
	}
	if !s.armed {
		return ErrNotStreaming
	}
	if want := s.info.Resolution.FrameSize(s.info.RenderingMode); len(frame) != want {
		return fmt.Errorf("frame length %d, want %d", len(frame), want)
	}
	s.frames++
	s.lastFrame = append(s.lastFrame[:0], frame...)
	if s.snapshot != "" && time.Since(s.lastSnap) >= snapshotEvery {
		s.lastSnap = time.Now()
		if err := s.writeSnapshotLocked(s.snapshot); err != nil {
			s.logger.Debug("snapshot write failed", logging.Error(err))
		}
	}
	return nil
}

func (s *Simulator) Stats() (Stats, error) {
	defer s.enter("get_stats")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Stats{}, ErrDisconnected
	}
	if s.statsFail {
		return Stats{}, errors.New("simulated stats failure")
	}
	return s.stats, nil
}

func (s *Simulator) SetBrightness(level int) error {
	defer s.enter("set_brightness")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	if level < 0 || level > 100 {
		return fmt.Errorf("brightness %d out of range", level)
	}
	s.brightness = level
	return nil
}

func (s *Simulator) SetMode(mode DisplayMode, param byte) error {
	defer s.enter("set_mode:" + mode.String())()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	if mode == ModeBucket {
		if _, ok := s.buckets[int(param)]; !ok {
			return fmt.Errorf("bucket %d: %w", param, ErrBucketNotFound)
		}
	}
	s.mode = mode
	// Any firmware mode change stops host streaming until Reset.
	s.armed = false
	return nil
}

func (s *Simulator) DeleteBucket(id, retries int) error {
	defer s.enter("delete_bucket")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	if retries < 1 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		if s.delFails > 0 {
			s.delFails--
			continue
		}
		if _, ok := s.buckets[id]; !ok {
			return fmt.Errorf("bucket %d: %w", id, ErrBucketNotFound)
		}
		delete(s.buckets, id)
		return nil
	}
	return fmt.Errorf("delete bucket %d failed after %d attempts", id, retries)
}

func (s *Simulator) CreateBucket(id, size int) error {
	defer s.enter("create_bucket")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	if s.createFail {
		return errors.New("simulated create failure")
	}
	if size <= 0 || size > s.capacity {
		return fmt.Errorf("bucket size %d outside capacity %d", size, s.capacity)
	}
	if _, ok := s.buckets[id]; ok {
		return fmt.Errorf("bucket %d already exists", id)
	}
	s.buckets[id] = make([]byte, 0, size)
	return nil
}

func (s *Simulator) WriteGIF(id int, blob []byte) error {
	defer s.enter("write_gif")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	if s.gifFail {
		return errors.New("simulated gif write failure")
	}
	bucket, ok := s.buckets[id]
	if !ok {
		return fmt.Errorf("bucket %d: %w", id, ErrBucketNotFound)
	}
	if len(blob) > cap(bucket) {
		return fmt.Errorf("blob of %d bytes exceeds bucket %d", len(blob), cap(bucket))
	}
	s.buckets[id] = append(bucket[:0], blob...)
	return nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.snapshot != "" && len(s.lastFrame) > 0 {
		return s.writeSnapshotLocked(s.snapshot)
	}
	return nil
}

// Snapshot decodes the last streamed frame into an image.
func (s *Simulator) Snapshot() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lastFrame) == 0 {
		return nil, false
	}
	return s.decodeFrameLocked(), true
}

func (s *Simulator) decodeFrameLocked() image.Image {
	res := s.info.Resolution
	if s.info.RenderingMode == FormatRGBA {
		img := image.NewRGBA(res.Rect())
		copy(img.Pix, s.lastFrame)
		return img
	}
	img := image.NewRGBA(res.Rect())
	for i := 0; i+1 < len(s.lastFrame); i += 2 {
		v := uint16(s.lastFrame[i]) | uint16(s.lastFrame[i+1])<<8
		r := uint8((v >> 11) & 0x1f)
		g := uint8((v >> 5) & 0x3f)
		b := uint8(v & 0x1f)
		px := i / 2
		img.SetRGBA(px%res.Width, px/res.Width, color.RGBA{
			R: r<<3 | r>>2,
			G: g<<2 | g>>4,
			B: b<<3 | b>>2,
			A: 0xff,
		})
	}
	return img
}

func (s *Simulator) writeSnapshotLocked(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := png.Encode(file, s.decodeFrameLocked()); err != nil {
		file.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// Mode returns the current firmware mode.
func (s *Simulator) Mode() DisplayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Armed reports whether host streaming is accepted.
func (s *Simulator) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Brightness returns the last accepted brightness.
func (s *Simulator) Brightness() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brightness
}

// Bucket returns a copy of the blob stored in the slot.
func (s *Simulator) Bucket(id int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.buckets[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), blob...), true
}

// FramesWritten counts successful frame writes.
func (s *Simulator) FramesWritten() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Calls returns the command log in call order.
func (s *Simulator) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ResetCalls clears the command log.
func (s *Simulator) ResetCalls() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// Overlaps counts calls that started while another call was in flight.
func (s *Simulator) Overlaps() int {
	return int(s.overlaps.Load())
}

// SetStats replaces the reported cooling values.
func (s *Simulator) SetStats(stats Stats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// SetCallDelay makes every call take at least d.
func (s *Simulator) SetCallDelay(d time.Duration) {
	s.mu.Lock()
	s.callDelay = d
	s.mu.Unlock()
}

// FailWrites makes the next n frame writes fail.
func (s *Simulator) FailWrites(n int) {
	s.mu.Lock()
	s.writeFails = n
	s.mu.Unlock()
}

// FailDeletes makes the next n delete attempts fail.
func (s *Simulator) FailDeletes(n int) {
	s.mu.Lock()
	s.delFails = n
	s.mu.Unlock()
}

// FailCreate toggles bucket creation failure.
func (s *Simulator) FailCreate(fail bool) {
	s.mu.Lock()
	s.createFail = fail
	s.mu.Unlock()
}

// FailWriteGIF toggles blob write failure.
func (s *Simulator) FailWriteGIF(fail bool) {
	s.mu.Lock()
	s.gifFail = fail
	s.mu.Unlock()
}

// FailStats toggles stats read failure.
func (s *Simulator) FailStats(fail bool) {
	s.mu.Lock()
	s.statsFail = fail
	s.mu.Unlock()
}

// FailReset toggles streaming re-arm failure.
func (s *Simulator) FailReset(fail bool) {
	s.mu.Lock()
	s.resetFail = fail
	s.mu.Unlock()
}

// Disconnect simulates a USB unplug; every later call fails with ErrDisconnected.
func (s *Simulator) Disconnect() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Reconnect reverses Disconnect and leaves the device in its power-on state.
func (s *Simulator) Reconnect() {
	s.mu.Lock()
	s.closed = false
	s.armed = false
	s.mode = ModeLiquid
	s.mu.Unlock()
}
