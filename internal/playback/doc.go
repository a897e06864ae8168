// Package playback is the mode coordinator. It owns the STREAMING/PLAYBACK
// transitions, runs one transcode-and-upload worker per playback session,
// and returns the device to a streaming-capable state when a session is
// stopped or fails.
//
// Transitions are serialized by the coordinator mutex. A failing worker
// never takes that mutex: the coordinator may be holding it while it joins
// the worker, so failure handling only touches the session-guarded mode.
package playback
