// Package frame holds the raster snapshot flowing through a pipeline and
// the pixel-format conversions applied on its way to the wire.
//
// Frames use a 24-bit RGB working format, 3 bytes per pixel, row-major.
// A frame is owned by exactly one stage at a time and is never mutated once
// it has been handed off.
package frame

import (
	"fmt"
	"image"
	"time"
)

// Frame is an immutable raster snapshot. Ownership moves from the generator
// through the queue to the consumer; holders must not write to Pix after
// publishing the frame.
type Frame struct {
	Width  int
	Height int

	// Pix is the RGB pixel data, 3 bytes per pixel, row-major from the
	// top-left corner. Length is always Width*Height*3.
	Pix []byte

	// CapturedAt is the time the frame was produced.
	CapturedAt time.Time
}

// New allocates a black frame of the given size.
func New(w, h int) *Frame {
	return &Frame{
		Width:      w,
		Height:     h,
		Pix:        make([]byte, w*h*3),
		CapturedAt: time.Now(),
	}
}

// SetRGB sets the pixel at (x, y). Intended for frame construction only.
func (f *Frame) SetRGB(x, y int, r, g, b uint8) {
	i := (y*f.Width + x) * 3
	f.Pix[i] = r
	f.Pix[i+1] = g
	f.Pix[i+2] = b
}

// RGB returns the pixel at (x, y).
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix, CapturedAt: f.CapturedAt}
}

// SameSize reports whether two frames share dimensions.
func (f *Frame) SameSize(other *Frame) bool {
	return other != nil && f.Width == other.Width && f.Height == other.Height
}

// Resize scales the frame to w×h using nearest-neighbor sampling and
// returns a new frame. The receiver is returned unchanged when the size
// already matches.
func (f *Frame) Resize(w, h int) *Frame {
	if w == f.Width && h == f.Height {
		return f
	}
	out := &Frame{Width: w, Height: h, Pix: make([]byte, w*h*3), CapturedAt: f.CapturedAt}
	for y := 0; y < h; y++ {
		sy := y * f.Height / h
		srcRow := sy * f.Width * 3
		dstRow := y * w * 3
		for x := 0; x < w; x++ {
			sx := x * f.Width / w
			si := srcRow + sx*3
			di := dstRow + x*3
			out.Pix[di] = f.Pix[si]
			out.Pix[di+1] = f.Pix[si+1]
			out.Pix[di+2] = f.Pix[si+2]
		}
	}
	return out
}

// ToImage converts the frame to a stdlib image for snapshot export.
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			si := (y*f.Width + x) * 3
			di := img.PixOffset(x, y)
			img.Pix[di] = f.Pix[si]
			img.Pix[di+1] = f.Pix[si+1]
			img.Pix[di+2] = f.Pix[si+2]
			img.Pix[di+3] = 0xFF
		}
	}
	return img
}

// String implements fmt.Stringer for log output.
func (f *Frame) String() string {
	return fmt.Sprintf("frame %dx%d @ %s", f.Width, f.Height, f.CapturedAt.Format(time.RFC3339Nano))
}
