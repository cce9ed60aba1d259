package series

import (
	"context"

	"github.com/lumenlab/holofit/internal/fit"
	"github.com/lumenlab/holofit/internal/image"
)

// PreprocessData replicates the resolution and preprocessing a series fit
// would apply to frame 0, without fitting anything: the background is
// resolved, the first frame is loaded through the same frame source logic,
// and the preprocessing policy runs on it. Use it to inspect what the first
// fit iteration would see. Nothing is persisted and the model is not
// mutated.
func (d *Driver) PreprocessData(ctx context.Context, m *fit.Model, req Request) (*image.Frame, error) {
	src, err := Resolve(req.Data, req.Spacing, req.Optics, d.logger)
	if err != nil {
		return nil, err
	}

	// Only the background is resolved from a path here, mirroring the fit
	// path's treatment of inspection: the darkfield participates only when
	// supplied as a loaded frame.
	bg := req.BG.Frame
	if req.BG.Path != "" {
		bg, err = image.Load(req.BG.Path, req.Spacing, req.Optics)
		if err != nil {
			return nil, err
		}
	}

	frame, err := src.Frame(0)
	if err != nil {
		return nil, err
	}

	return d.preprocess(frame, bg, req.DF.Frame, m)
}

// Guess returns the hologram the model predicts for the preprocessed first
// frame, so a caller can compare the starting guess against the data before
// committing to a series run. Requires the model to carry a forward
// capability. Side-effect free.
func (d *Driver) Guess(ctx context.Context, m *fit.Model, req Request) (*image.Frame, error) {
	processed, err := d.PreprocessData(ctx, m, req)
	if err != nil {
		return nil, err
	}
	return m.GuessHolo(processed)
}
