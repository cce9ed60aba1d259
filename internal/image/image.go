// Package image defines the Frame type carried through a series fit and the
// pixel-level operations the preprocessing policies are built from. A Frame
// couples a row-major float64 pixel grid with the physical metadata (pixel
// spacing and optics) the scattering model needs to interpret it.
package image

import (
	"gonum.org/v1/gonum/stat"
)

// Optics holds the optical train metadata attached to every frame.
// The fit driver treats it as opaque; it is threaded through so an external
// fitter can compute the forward model.
type Optics struct {
	// Wavelength is the vacuum wavelength of the illumination, in the same
	// length unit as Spacing (conventionally micrometres).
	Wavelength float64 `yaml:"wavelength"`
	// MediumIndex is the refractive index of the immersion medium.
	MediumIndex float64 `yaml:"medium_index"`
}

// Frame is one image of the time series. Frames are treated as immutable
// once loaded: every processing operation returns a new Frame.
type Frame struct {
	// Pix holds pixel values in row-major order, index y*Width + x.
	Pix []float64
	// Width and Height are the frame dimensions in pixels.
	Width, Height int
	// Spacing is the physical size of one pixel.
	Spacing float64
	// Optics is the optical metadata attached at load time.
	Optics Optics
}

// New allocates a zero-valued frame of the given dimensions.
func New(width, height int, spacing float64, optics Optics) *Frame {
	return &Frame{
		Pix:     make([]float64, width*height),
		Width:   width,
		Height:  height,
		Spacing: spacing,
		Optics:  optics,
	}
}

// At returns the pixel value at (x, y). No bounds checking beyond the slice's.
func (f *Frame) At(x, y int) float64 {
	return f.Pix[y*f.Width+x]
}

// Set assigns the pixel value at (x, y).
func (f *Frame) Set(x, y int, v float64) {
	f.Pix[y*f.Width+x] = v
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Pix:     make([]float64, len(f.Pix)),
		Width:   f.Width,
		Height:  f.Height,
		Spacing: f.Spacing,
		Optics:  f.Optics,
	}
	copy(out.Pix, f.Pix)
	return out
}

// SameShape reports whether two frames have identical pixel dimensions.
func (f *Frame) SameShape(other *Frame) bool {
	return f.Width == other.Width && f.Height == other.Height
}

// Mean returns the mean pixel value.
func (f *Frame) Mean() float64 {
	return stat.Mean(f.Pix, nil)
}

// ZerosLike returns an all-zero frame with the same shape and metadata as f.
// The default preprocessing policy uses this as the implicit darkfield.
func ZerosLike(f *Frame) *Frame {
	return New(f.Width, f.Height, f.Spacing, f.Optics)
}
