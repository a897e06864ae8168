package device_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lcdbridge/internal/device"
)

func newSim(t *testing.T, opts device.Options) *device.Simulator {
	t.Helper()
	gw, err := device.Open("simulator", opts)
	if err != nil {
		t.Fatalf("open simulator: %v", err)
	}
	sim, ok := gw.(*device.Simulator)
	if !ok {
		t.Fatalf("expected *Simulator, got %T", gw)
	}
	return sim
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := device.Open("kraken-hid", device.Options{})
	if !errors.Is(err, device.ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestSimulatorFrameLengthFollowsFormat(t *testing.T) {
	cases := []struct {
		format device.FrameFormat
		bpp    int
	}{
		{device.FormatRGBA, 4},
		{device.FormatQ565, 2},
	}
	for _, tc := range cases {
		t.Run(string(tc.format), func(t *testing.T) {
			sim := newSim(t, device.Options{Width: 8, Height: 4, FrameFormat: tc.format})
			if err := sim.WriteFrame(make([]byte, 8*4*tc.bpp)); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}
			if err := sim.WriteFrame(make([]byte, 3)); err == nil {
				t.Fatal("expected short frame rejected")
			}
			if sim.FramesWritten() != 1 {
				t.Fatalf("frames = %d", sim.FramesWritten())
			}
		})
	}
}

func TestSimulatorModeChangeDisarmsStreaming(t *testing.T) {
	sim := newSim(t, device.Options{Width: 2, Height: 2})
	if err := sim.SetMode(device.ModeLiquid, 0); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := sim.WriteFrame(make([]byte, 16)); !errors.Is(err, device.ErrNotStreaming) {
		t.Fatalf("expected ErrNotStreaming, got %v", err)
	}
	if err := sim.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := sim.WriteFrame(make([]byte, 16)); err != nil {
		t.Fatalf("WriteFrame after reset: %v", err)
	}
}

func TestSimulatorBucketLifecycle(t *testing.T) {
	sim := newSim(t, device.Options{Width: 2, Height: 2, BucketCapacity: 10})

	if err := sim.DeleteBucket(0, 3); !errors.Is(err, device.ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
	if err := sim.CreateBucket(0, 11); err == nil {
		t.Fatal("expected oversize create to fail")
	}
	if err := sim.CreateBucket(0, 4); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	if err := sim.WriteGIF(0, []byte("GIF89a")); err == nil {
		t.Fatal("expected blob larger than bucket rejected")
	}
	if err := sim.WriteGIF(0, []byte("GIF8")); err != nil {
		t.Fatalf("WriteGIF: %v", err)
	}
	if err := sim.SetMode(device.ModeBucket, 0); err != nil {
		t.Fatalf("SetMode bucket: %v", err)
	}
	if blob, ok := sim.Bucket(0); !ok || string(blob) != "GIF8" {
		t.Fatalf("bucket content = %q ok=%v", blob, ok)
	}

	sim.FailDeletes(2)
	if err := sim.DeleteBucket(0, 3); err != nil {
		t.Fatalf("expected delete to succeed on third attempt: %v", err)
	}
	if err := sim.CreateBucket(0, 4); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	sim.FailDeletes(3)
	if err := sim.DeleteBucket(0, 3); err == nil || errors.Is(err, device.ErrBucketNotFound) {
		t.Fatalf("expected exhausted retries error, got %v", err)
	}
}

func TestSimulatorDisconnect(t *testing.T) {
	sim := newSim(t, device.Options{Width: 2, Height: 2})
	sim.Disconnect()
	if _, err := sim.Stats(); !errors.Is(err, device.ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
	sim.Reconnect()
	if sim.Armed() {
		t.Fatal("expected reconnect to require a reset")
	}
}

func TestSimulatorSnapshotOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "last.png")
	sim := newSim(t, device.Options{Width: 4, Height: 4, FrameFormat: device.FormatQ565, SnapshotPath: path})
	frame := make([]byte, 4*4*2)
	for i := 0; i < len(frame); i += 2 {
		frame[i], frame[i+1] = 0x00, 0xf8 // pure red in RGB565 LE
	}
	if err := sim.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	img, ok := sim.Snapshot()
	if !ok {
		t.Fatal("expected snapshot")
	}
	r, g, b, _ := img.At(1, 1).RGBA()
	if r>>8 != 0xff || g != 0 || b != 0 {
		t.Fatalf("decoded pixel = %d,%d,%d", r>>8, g>>8, b>>8)
	}
	if err := sim.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected snapshot file: %v", err)
	}
}
