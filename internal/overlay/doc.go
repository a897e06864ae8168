// Package overlay turns streamed stills into device frames.
//
// A POST /frame body is parsed once by ParseFrame into a Request whose
// composition, spinner, palette, and sensor choices are closed enumerations.
// Renderer resizes the still to the display and draws the requested overlay:
// a rotating arc whose speed follows CPU load or pump duty and whose trail
// fades through a retained canvas, a static ring, and centred title, value,
// and label text. Packer flattens the result into the device's RGBA or RGB565
// layout.
package overlay
