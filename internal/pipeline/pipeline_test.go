package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"lcdbridge/internal/access"
	"lcdbridge/internal/device"
	"lcdbridge/internal/logging"
	"lcdbridge/internal/metrics"
	"lcdbridge/internal/overlay"
	"lcdbridge/internal/state"
)

type harness struct {
	sim    *device.Simulator
	shared *state.Shared
	pipe   *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sim := device.NewSimulator(device.Options{Width: 8, Height: 8, FrameFormat: device.FormatRGBA})
	shared := state.New()
	res := sim.Resolution()
	renderer, err := overlay.NewRenderer(overlay.Options{Resolution: res, MinSpeed: 2, BaseSpeed: 18, Decay: 1.1, DecayFloor: 10}, shared.Telemetry)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(renderer.Close)
	pipe := New(shared, access.New(sim), renderer, overlay.NewPacker(device.FormatRGBA, res),
		metrics.New(shared), logging.NewNop(), Options{QueueCapacity: 2, StatsRefresh: time.Hour})
	return &harness{sim: sim, shared: shared, pipe: pipe}
}

func frameBody(t *testing.T, extra string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	body := `{"raw":"` + base64.StdEncoding.EncodeToString(buf.Bytes()) + `","composition":"OFF"`
	if extra != "" {
		body += "," + extra
	}
	return []byte(body + "}")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func countCalls(sim *device.Simulator, name string) int {
	n := 0
	for _, c := range sim.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func TestFramesReachDevice(t *testing.T) {
	h := newHarness(t)
	if err := h.pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.pipe.Stop()

	for i := 0; i < 5; i++ {
		if !h.pipe.Ingest(context.Background(), frameBody(t, "")) {
			t.Fatalf("frame %d rejected", i)
		}
	}
	waitFor(t, "five frame writes", func() bool { return h.sim.FramesWritten() == 5 })

	snap, ok := h.sim.Snapshot()
	if !ok {
		t.Fatal("expected a last frame")
	}
	if got := color.RGBAModel.Convert(snap.At(0, 0)).(color.RGBA); got.A != 0xff {
		t.Fatalf("written pixel = %v, want opaque", got)
	}
	if h.sim.Overlaps() != 0 {
		t.Fatalf("device calls overlapped %d times", h.sim.Overlaps())
	}
}

func TestStartTwiceFails(t *testing.T) {
	h := newHarness(t)
	if err := h.pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.pipe.Stop()
	if err := h.pipe.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	h.pipe.Stop()
	if h.pipe.Running() {
		t.Fatal("expected pipeline stopped")
	}
	h.pipe.Stop()
}

func TestIngestDropsDuringPlayback(t *testing.T) {
	h := newHarness(t)
	h.shared.SetMode(state.Playback)
	if err := h.pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.pipe.Stop()

	for i := 0; i < 3; i++ {
		if h.pipe.Ingest(context.Background(), frameBody(t, "")) {
			t.Fatal("frame admitted during playback")
		}
	}
	time.Sleep(50 * time.Millisecond)
	if n := countCalls(h.sim, "write_frame"); n != 0 {
		t.Fatalf("write_frame called %d times during playback", n)
	}
}

func TestEmitRechecksModeUnderLock(t *testing.T) {
	h := newHarness(t)
	frame := DeviceFrame{Pix: make([]byte, h.sim.Resolution().FrameSize(device.FormatRGBA))}
	h.shared.SetMode(state.Playback)
	h.pipe.emit(logging.NewNop(), frame)
	if n := countCalls(h.sim, "write_frame"); n != 0 {
		t.Fatalf("write_frame called %d times after mode change", n)
	}
	h.shared.SetMode(state.Streaming)
	h.pipe.emit(logging.NewNop(), frame)
	if h.sim.FramesWritten() != 1 {
		t.Fatalf("frames written = %d", h.sim.FramesWritten())
	}
}

func TestWriteFailureDoesNotStopEmit(t *testing.T) {
	h := newHarness(t)
	h.pipe.opts.StatsRefresh = time.Nanosecond
	h.sim.SetStats(device.Stats{Liquid: 33, Pump: 70})
	h.sim.FailWrites(1)
	if err := h.pipe.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.pipe.Stop()

	h.pipe.Ingest(context.Background(), frameBody(t, ""))
	waitFor(t, "failed write", func() bool { return countCalls(h.sim, "write_frame") == 1 })
	if h.sim.FramesWritten() != 0 {
		t.Fatal("first write should have failed")
	}
	waitFor(t, "telemetry refresh", func() bool {
		v, ok := h.shared.Telemetry.Get(state.Liquid)
		return ok && v == 33
	})

	h.pipe.Ingest(context.Background(), frameBody(t, ""))
	waitFor(t, "second write", func() bool { return h.sim.FramesWritten() == 1 })
	if v, _ := h.shared.Telemetry.Get(state.Pump); v != 70 {
		t.Fatalf("pump = %v", v)
	}
}

func TestStatsRefreshThrottled(t *testing.T) {
	h := newHarness(t)
	h.pipe.opts.StatsRefresh = time.Hour
	logger := logging.NewNop()
	h.pipe.refreshStats(logger)
	h.pipe.refreshStats(logger)
	if n := countCalls(h.sim, "get_stats"); n != 1 {
		t.Fatalf("get_stats called %d times, want 1", n)
	}

	h.pipe.lastStats = time.Time{}
	h.shared.SetMode(state.Playback)
	h.pipe.refreshStats(logger)
	if n := countCalls(h.sim, "get_stats"); n != 1 {
		t.Fatalf("stats refreshed during playback")
	}
}

func TestIngestBlocksWhenFull(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 2; i++ {
		if !h.pipe.Ingest(context.Background(), frameBody(t, "")) {
			t.Fatalf("frame %d rejected", i)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	if h.pipe.Ingest(ctx, frameBody(t, "")) {
		t.Fatal("third frame should not fit a queue of two")
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Fatal("Ingest returned before the caller's deadline")
	}
}

func TestIngestRejectsMalformedBodies(t *testing.T) {
	h := newHarness(t)
	for _, body := range []string{`{`, `{"raw":""}`, string(frameBody(t, `"spinner":"FAN"`))} {
		if h.pipe.Ingest(context.Background(), []byte(body)) {
			t.Fatalf("accepted %q", body)
		}
	}
	if len(h.pipe.input) != 0 {
		t.Fatalf("input queue holds %d frames", len(h.pipe.input))
	}
}

func TestArrivalGapRecorded(t *testing.T) {
	h := newHarness(t)
	base := time.Unix(1000, 0)
	ticks := []time.Time{base, base.Add(40 * time.Millisecond)}
	h.pipe.now = func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}
	h.pipe.Ingest(context.Background(), frameBody(t, ""))
	h.pipe.Ingest(context.Background(), frameBody(t, ""))
	first, second := <-h.pipe.input, <-h.pipe.input
	if first.Gap != 0 || second.Gap != 40*time.Millisecond {
		t.Fatalf("gaps = %v, %v", first.Gap, second.Gap)
	}
}

func TestFPSSmoothing(t *testing.T) {
	h := newHarness(t)
	base := time.Unix(0, 0)
	h.pipe.updateFPS(base)
	h.pipe.updateFPS(base.Add(100 * time.Millisecond))
	if got := h.shared.StreamFPS(); math.Abs(got-10) > 1e-9 {
		t.Fatalf("seed fps = %v", got)
	}
	h.pipe.updateFPS(base.Add(150 * time.Millisecond))
	if got := h.shared.StreamFPS(); math.Abs(got-11) > 1e-9 {
		t.Fatalf("smoothed fps = %v, want 11", got)
	}
}
