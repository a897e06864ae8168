package access_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lcdbridge/internal/access"
	"lcdbridge/internal/device"
)

func TestDoSerializesGatewayCalls(t *testing.T) {
	sim := device.NewSimulator(device.Options{Width: 2, Height: 2})
	sim.SetCallDelay(2 * time.Millisecond)

	var waits atomic.Int32
	coord := access.New(sim, access.WithWaitObserver(func(op string, _ time.Duration) {
		if op == "" {
			t.Error("expected op label")
		}
		waits.Add(1)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = coord.Do("test", func(gw device.Gateway) error {
				if err := gw.Clear(); err != nil {
					return err
				}
				_, err := gw.Stats()
				return err
			})
		}()
	}
	wg.Wait()

	if sim.Overlaps() != 0 {
		t.Fatalf("expected no overlapping gateway calls, got %d", sim.Overlaps())
	}
	if waits.Load() != 8 {
		t.Fatalf("observer calls = %d, want 8", waits.Load())
	}
}

func TestMetadataBypassesLock(t *testing.T) {
	sim := device.NewSimulator(device.Options{Width: 320, Height: 240, BucketCapacity: 1000})
	coord := access.New(sim)

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = coord.Do("hold", func(device.Gateway) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	if coord.Resolution().Width != 320 || coord.MaxBucketSize() != 1000 {
		t.Fatalf("unexpected metadata: %+v %d", coord.Resolution(), coord.MaxBucketSize())
	}
}
