package image

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	apperrors "github.com/lumenlab/holofit/internal/errors"
)

// ErrShapeMismatch is returned by elementwise operations whose operands have
// different pixel dimensions.
var ErrShapeMismatch = errors.New("image: frame shapes differ")

// Normalize returns f scaled so its mean pixel value is 1. This is the
// standard contrast standardization applied before every fit. A frame with
// zero mean is returned unchanged (as a copy) since no scale exists.
func Normalize(f *Frame) *Frame {
	out := f.Clone()
	mean := f.Mean()
	if mean == 0 {
		return out
	}
	floats.Scale(1/mean, out.Pix)
	return out
}

// Sub returns the elementwise difference a - b. Metadata is taken from a.
func Sub(a, b *Frame) (*Frame, error) {
	if !a.SameShape(b) {
		return nil, ErrShapeMismatch
	}
	out := a.Clone()
	floats.Sub(out.Pix, b.Pix)
	return out, nil
}

// Div returns the elementwise quotient a / b. Metadata is taken from a.
func Div(a, b *Frame) (*Frame, error) {
	if !a.SameShape(b) {
		return nil, ErrShapeMismatch
	}
	out := a.Clone()
	floats.Div(out.Pix, b.Pix)
	return out, nil
}

// Subimage extracts a width x height window from f centered on the pixel
// coordinates (cx, cy). The window origin is the rounded center minus half
// the window size. A window that extends past the frame bounds yields an
// apperrors.OutOfBoundsError; callers that prefer clamping should adjust the
// center first (see ClampWindow).
func Subimage(f *Frame, cx, cy float64, width, height int) (*Frame, error) {
	x0 := int(math.Round(cx)) - width/2
	y0 := int(math.Round(cy)) - height/2

	if x0 < 0 || y0 < 0 || x0+width > f.Width || y0+height > f.Height {
		return nil, apperrors.OutOfBoundsError{
			X0: x0, Y0: y0,
			Width: width, Height: height,
			FrameWidth: f.Width, FrameHeight: f.Height,
		}
	}

	out := New(width, height, f.Spacing, f.Optics)
	for y := 0; y < height; y++ {
		srcRow := (y0+y)*f.Width + x0
		copy(out.Pix[y*width:(y+1)*width], f.Pix[srcRow:srcRow+width])
	}
	return out, nil
}

// ClampWindow shifts a window center inward so that a window of the given
// size lies fully within [0, limit). Each axis is treated independently; the
// window origin moves by exactly the overshoot amount. The returned center is
// guaranteed to produce an in-bounds Subimage window for the same size.
func ClampWindow(center float64, size, limit int) float64 {
	origin := int(math.Round(center)) - size/2
	if origin < 0 {
		origin = 0
	}
	if origin+size > limit {
		origin = limit - size
	}
	return float64(origin + size/2)
}
