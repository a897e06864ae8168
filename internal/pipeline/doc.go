// Package pipeline streams host frames to the display.
//
// Ingest admits POST /frame bodies into a bounded input queue, blocking the
// caller when it is full. A single Compose loop decodes, resizes, overlays,
// and packs each frame into a bounded output queue. A single Emit loop writes
// frames under the device lock, re-checking the display mode first, and
// refreshes cooler telemetry at most once per interval. Order is strict FIFO.
package pipeline
