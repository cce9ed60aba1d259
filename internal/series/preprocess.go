package series

import (
	"errors"

	apperrors "github.com/lumenlab/holofit/internal/errors"
	"github.com/lumenlab/holofit/internal/fit"
	"github.com/lumenlab/holofit/internal/image"
)

// PreprocessFunc turns a raw frame plus optional calibration images into an
// image ready for fitting. It may read the model (e.g. the scatterer
// position) but must not mutate it. bg and df may be nil.
type PreprocessFunc func(frame, bg, df *image.Frame, m *fit.Model) (*image.Frame, error)

// DivNormalize is the default preprocessing policy: darkfield subtraction,
// background division, then normalization. With no darkfield an all-zero
// image of the frame's shape is assumed; with no background the frame is
// normalized directly.
func DivNormalize(frame, bg, df *image.Frame, _ *fit.Model) (*image.Frame, error) {
	if df == nil {
		df = image.ZerosLike(frame)
	}
	if bg == nil {
		return image.Normalize(frame), nil
	}

	num, err := image.Sub(frame, df)
	if err != nil {
		return nil, apperrors.WrapError(err, "subtracting darkfield from frame")
	}
	den, err := image.Sub(bg, df)
	if err != nil {
		return nil, apperrors.WrapError(err, "subtracting darkfield from background")
	}
	corrected, err := image.Div(num, den)
	if err != nil {
		return nil, apperrors.WrapError(err, "dividing frame by background")
	}
	return image.Normalize(corrected), nil
}

// ScattererCenteredSubimage returns a preprocessing policy that extracts a
// fixed-size window centered on the model's current scatterer position
// (converted from physical to pixel units via the frame spacing) after
// dividing by the background. A window that falls outside the frame bounds
// is an error unless recenterAtEdge is set, in which case the window is
// shifted inward by exactly the overshoot on each axis, independently.
func ScattererCenteredSubimage(width, height int, recenterAtEdge bool) PreprocessFunc {
	return func(frame, bg, _ *image.Frame, m *fit.Model) (*image.Frame, error) {
		base := frame
		if bg != nil {
			var err error
			base, err = image.Div(frame, bg)
			if err != nil {
				return nil, apperrors.WrapError(err, "dividing frame by background")
			}
		}

		cx := m.Scatterer.Center[0] / frame.Spacing
		cy := m.Scatterer.Center[1] / frame.Spacing

		win, err := image.Subimage(base, cx, cy, width, height)
		if err != nil {
			var oob apperrors.OutOfBoundsError
			if !recenterAtEdge || !errors.As(err, &oob) {
				return nil, err
			}
			cx = image.ClampWindow(cx, width, base.Width)
			cy = image.ClampWindow(cy, height, base.Height)
			win, err = image.Subimage(base, cx, cy, width, height)
			if err != nil {
				return nil, err
			}
		}
		return image.Normalize(win), nil
	}
}
