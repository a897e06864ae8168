// Package transcode fits an arbitrary animation into the cooler's firmware
// bucket and uploads it.
//
// Frames are decoded with GIF disposal replayed, rotated, and placed onto the
// display with Fill, Fit, or Stretch geometry. SearchPalette bisects the
// palette size over a bounded number of encode passes for the largest blob
// that fits the bucket. Uploader then runs the bucket protocol under the
// device lock, and Restore returns the display to host streaming.
package transcode
