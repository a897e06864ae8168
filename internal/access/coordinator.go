// Package access serializes every device command behind one exclusive lock.
// Acquisition never times out.
package access

import (
	"sync"
	"time"

	"lcdbridge/internal/device"
)

// WaitObserver receives the time spent waiting for the lock.
type WaitObserver func(op string, wait time.Duration)

// Coordinator owns the gateway; the only way to reach it is Do.
type Coordinator struct {
	mu      sync.Mutex
	gw      device.Gateway
	observe WaitObserver
	now     func() time.Time
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithWaitObserver records lock wait durations.
func WithWaitObserver(fn WaitObserver) Option {
	return func(c *Coordinator) { c.observe = fn }
}

// New wraps gw.
func New(gw device.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{gw: gw, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs fn with exclusive access to the gateway. op labels the critical
// section for wait metrics. fn must be a flat, bounded command sequence and
// must not call Do again.
func (c *Coordinator) Do(op string, fn func(device.Gateway) error) error {
	start := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.observe != nil {
		c.observe(op, c.now().Sub(start))
	}
	return fn(c.gw)
}

// Info returns static device metadata without taking the lock.
func (c *Coordinator) Info() device.Info {
	return c.gw.Info()
}

// Resolution returns the display size without taking the lock.
func (c *Coordinator) Resolution() device.Resolution {
	return c.gw.Resolution()
}

// MaxBucketSize returns the bucket capacity without taking the lock.
func (c *Coordinator) MaxBucketSize() int {
	return c.gw.MaxBucketSize()
}
