package image

import (
	stdimage "image"
	"image/color"
	"image/png"
	"math"
	"os"

	_ "image/gif"  // registered for image.Decode
	_ "image/jpeg" // registered for image.Decode

	apperrors "github.com/lumenlab/holofit/internal/errors"
)

// Load reads a frame from an image file on disk, converting it to a grayscale
// float64 grid and attaching the given spacing and optics metadata. Any format
// registered with the standard image package is accepted; color images are
// reduced with the usual luma weights.
func Load(path string, spacing float64, optics Optics) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.WrapError(err, "loading frame %q", path)
	}
	defer file.Close()

	src, _, err := stdimage.Decode(file)
	if err != nil {
		return nil, apperrors.WrapError(err, "decoding frame %q", path)
	}

	return FromImage(src, spacing, optics), nil
}

// FromImage converts a decoded standard library image into a Frame.
func FromImage(src stdimage.Image, spacing float64, optics Optics) *Frame {
	bounds := src.Bounds()
	out := New(bounds.Dx(), bounds.Dy(), spacing, optics)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			out.Set(x-bounds.Min.X, y-bounds.Min.Y, luma/65535.0)
		}
	}
	return out
}

// Save writes a frame to disk as a 16-bit grayscale PNG, rescaling pixel
// values to span the full output range. Intended for inspection output; the
// rescale is lossy with respect to absolute intensity.
func Save(path string, f *Frame) error {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range f.Pix {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	scale := 0.0
	if hi > lo {
		scale = 65535.0 / (hi - lo)
	}

	img := stdimage.NewGray16(stdimage.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := (f.At(x, y) - lo) * scale
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return apperrors.WrapError(err, "saving frame %q", path)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return apperrors.WrapError(err, "encoding frame %q", path)
	}
	return nil
}
