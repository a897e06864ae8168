// Package daemon coordinates the long-running bridge process and its system
// integration points.
//
// It assembles the device gateway, the frame pipeline, the playback
// coordinator, telemetry, and persistence into a single lifecycle guarded by
// a flock so only one bridge drives the cooler. The HTTP boundary, the USB
// hotplug monitor, and the playback source watcher live here as well.
//
// Keep orchestration logic here: frame handling, transcoding, and session
// rules belong to their own packages while the daemon focuses on startup,
// shutdown, and wiring.
package daemon
