// Package fit defines the data contracts between the series driver and the
// external fitting machinery: the mutable Model threaded from frame to frame,
// the per-frame Result, and the Fitter interface an optimizer implements.
// The numerical optimization itself lives outside this module.
package fit

import (
	"context"
	"errors"

	"github.com/lumenlab/holofit/internal/image"
)

// Well-known parameter names that are kept in sync with the scatterer guess.
// An update policy writing one of these through SetGuess moves the scatterer,
// which is what lets a centered-subimage preprocessing policy follow the
// particle across frames.
const (
	ParamCenterX = "center.x"
	ParamCenterY = "center.y"
	ParamCenterZ = "center.z"
	ParamRadius  = "radius"
	ParamIndex   = "index"
)

// Parameter is one fittable quantity: a name and its current starting value
// for the next optimization.
type Parameter struct {
	Name  string  `yaml:"name"`
	Guess float64 `yaml:"guess"`
}

// Scatterer describes the scattering object being fit, with all values
// interpreted as the current guess. Center is in physical units (the same
// length unit as the frame spacing).
type Scatterer struct {
	Center [3]float64 `yaml:"center"`
	Radius float64    `yaml:"radius"`
	Index  float64    `yaml:"index"`
}

// HoloPredictor is the optional forward-model capability: given a model and a
// reference frame (for shape, spacing and optics), it produces the hologram
// the model predicts. Implemented outside this module.
type HoloPredictor interface {
	PredictHolo(m *Model, ref *image.Frame) (*image.Frame, error)
}

// ErrNoPredictor is returned by GuessHolo when the model has no forward
// model attached.
var ErrNoPredictor = errors.New("fit: model has no hologram predictor")

// Model is the mutable state a series fit carries from one frame to the
// next. The driver owns it for the duration of a run and mutates it once per
// iteration through the update policy.
type Model struct {
	// Parameters is the ordered set of fittable quantities. Order is
	// preserved so runs are reproducible.
	Parameters []Parameter
	// Scatterer is the current guess for the scattering object.
	Scatterer Scatterer
	// Forward is the optional forward-model capability used by GuessHolo.
	Forward HoloPredictor
}

// Guess returns the current guess for the named parameter.
func (m *Model) Guess(name string) (float64, bool) {
	for i := range m.Parameters {
		if m.Parameters[i].Name == name {
			return m.Parameters[i].Guess, true
		}
	}
	return 0, false
}

// SetGuess updates the named parameter's guess, keeping the scatterer in sync
// for the well-known geometric parameters. It reports whether the parameter
// exists on the model.
func (m *Model) SetGuess(name string, value float64) bool {
	for i := range m.Parameters {
		if m.Parameters[i].Name != name {
			continue
		}
		m.Parameters[i].Guess = value
		switch name {
		case ParamCenterX:
			m.Scatterer.Center[0] = value
		case ParamCenterY:
			m.Scatterer.Center[1] = value
		case ParamCenterZ:
			m.Scatterer.Center[2] = value
		case ParamRadius:
			m.Scatterer.Radius = value
		case ParamIndex:
			m.Scatterer.Index = value
		}
		return true
	}
	return false
}

// GuessHolo asks the model's forward capability for the hologram it predicts
// for the given reference frame.
func (m *Model) GuessHolo(ref *image.Frame) (*image.Frame, error) {
	if m.Forward == nil {
		return nil, ErrNoPredictor
	}
	return m.Forward.PredictHolo(m, ref)
}

// Clone returns a deep copy of the model. The forward capability is shared,
// not copied.
func (m *Model) Clone() *Model {
	out := &Model{
		Parameters: make([]Parameter, len(m.Parameters)),
		Scatterer:  m.Scatterer,
		Forward:    m.Forward,
	}
	copy(out.Parameters, m.Parameters)
	return out
}

// Options carries the tuning knobs forwarded verbatim to the external fitter.
type Options struct {
	// MaxIterations bounds the optimizer's iteration count. Zero means the
	// fitter's own default.
	MaxIterations int
	// Tolerance is the convergence tolerance. Zero means the fitter's own
	// default.
	Tolerance float64
}

// Option mutates Options; the driver passes the caller's options through to
// every per-frame fit unchanged.
type Option func(*Options)

// WithMaxIterations bounds the optimizer's iteration count.
func WithMaxIterations(n int) Option {
	return func(o *Options) { o.MaxIterations = n }
}

// WithTolerance sets the convergence tolerance.
func WithTolerance(tol float64) Option {
	return func(o *Options) { o.Tolerance = tol }
}

// ApplyOptions folds a list of Option values into an Options struct.
func ApplyOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fitter is the external single-frame fitting routine. The driver delegates
// to it once per frame and propagates any failure unchanged.
type Fitter interface {
	// Fit optimizes the model against one preprocessed frame and returns the
	// fitted parameter values. Implementations must not mutate the model.
	Fit(ctx context.Context, m *Model, data *image.Frame, opts ...Option) (*Result, error)
}
