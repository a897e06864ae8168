package transcode

import (
	"lcdbridge/internal/state"
)

// Timing is the frame schedule chosen for an upload.
type Timing struct {
	// FrameMS is the uniform per-frame duration, or 0 for native timing.
	FrameMS      int
	EffectiveFPS float64
}

// Native reports whether the source's own delays are preserved.
func (t Timing) Native() bool { return t.FrameMS == 0 }

// ResolveTiming picks the frame schedule. An explicit target fps overrides
// native delays and is clamped to at least minFrameMS per frame.
func ResolveTiming(spec state.PlaybackSpec, nativeDelays []int, minFrameMS int) Timing {
	if fps, ok := spec.TargetFPS(); ok {
		ms := max(minFrameMS, int(1000/fps))
		return Timing{FrameMS: ms, EffectiveFPS: 1000 / float64(ms)}
	}
	first := defaultNativeDelayMS
	if len(nativeDelays) > 0 {
		first = nativeDelays[0]
	}
	return Timing{EffectiveFPS: 1000 / float64(max(first, 1))}
}

// gifDelays converts the schedule into GIF centisecond delays.
func (t Timing) gifDelays(nativeDelays []int, frames int) []int {
	delays := make([]int, frames)
	for i := range delays {
		ms := t.FrameMS
		if ms == 0 {
			ms = defaultNativeDelayMS
			if i < len(nativeDelays) {
				ms = nativeDelays[i]
			}
		}
		delays[i] = max(1, (ms+5)/10)
	}
	return delays
}
