// Package state holds the process-wide values shared between the pipeline,
// the mode coordinator, telemetry, and the HTTP boundary.
//
// Every field is individually atomic. There is no cross-field consistency:
// readers may observe a telemetry snapshot whose fields were written at
// different times, which the overlay renderer tolerates.
package state

import (
	"math"
	"sync/atomic"
)

// Mode is the global device mode.
type Mode int32

const (
	// Streaming is the initial mode: host pushes frames.
	Streaming Mode = iota
	// Playback means firmware plays an uploaded bucket.
	Playback
)

func (m Mode) String() string {
	if m == Playback {
		return "PLAYBACK"
	}
	return "STREAMING"
}

// PlaybackStatus describes the active playback session for GET /.
type PlaybackStatus struct {
	SessionID string
	Path      string
	Live      bool
	FPS       float64
}

// Shared is the explicit shared context object. The zero value is not
// usable; call New.
type Shared struct {
	mode      atomic.Int32
	Telemetry *Telemetry
	lastKnown atomic.Pointer[PlaybackSpec]
	playback  atomic.Pointer[PlaybackStatus]
	streamFPS atomic.Uint64
	offline   atomic.Bool
}

// New returns a Shared in STREAMING mode with the default last-known spec.
func New() *Shared {
	s := &Shared{Telemetry: NewTelemetry()}
	def := DefaultPlaybackSpec()
	s.lastKnown.Store(&def)
	s.playback.Store(&PlaybackStatus{})
	return s
}

// Mode returns the current device mode.
func (s *Shared) Mode() Mode {
	return Mode(s.mode.Load())
}

// SetMode stores the device mode. Only the mode coordinator calls this.
func (s *Shared) SetMode(m Mode) {
	s.mode.Store(int32(m))
}

// LastKnown returns the spec used for identical restarts.
func (s *Shared) LastKnown() PlaybackSpec {
	return *s.lastKnown.Load()
}

// SetLastKnown records spec as the last known playback configuration.
func (s *Shared) SetLastKnown(spec PlaybackSpec) {
	s.lastKnown.Store(&spec)
}

// Playback returns the active playback status.
func (s *Shared) Playback() PlaybackStatus {
	return *s.playback.Load()
}

// SetPlayback replaces the active playback status.
func (s *Shared) SetPlayback(status PlaybackStatus) {
	s.playback.Store(&status)
}

// StreamFPS returns the smoothed streaming frame rate.
func (s *Shared) StreamFPS() float64 {
	return math.Float64frombits(s.streamFPS.Load())
}

// SetStreamFPS stores the smoothed streaming frame rate.
func (s *Shared) SetStreamFPS(fps float64) {
	s.streamFPS.Store(math.Float64bits(fps))
}

// DeviceOnline reports whether the cooler is believed to be attached.
func (s *Shared) DeviceOnline() bool {
	return !s.offline.Load()
}

// SetDeviceOnline records a hotplug transition.
func (s *Shared) SetDeviceOnline(online bool) {
	s.offline.Store(!online)
}
