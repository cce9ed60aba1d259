package fit

import (
	"time"

	apperrors "github.com/lumenlab/holofit/internal/errors"
)

// Result is the output of one per-frame fit. Results are created once,
// optionally persisted as a checkpoint, and never mutated afterwards.
type Result struct {
	// RunID identifies the series run that produced this result.
	RunID string `yaml:"run_id,omitempty"`
	// Frame is the zero-based index of the frame this result belongs to.
	Frame int `yaml:"frame"`
	// Parameters maps parameter name to fitted value.
	Parameters map[string]float64 `yaml:"parameters"`
	// Chisq is the fitter-reported goodness of fit, if any.
	Chisq float64 `yaml:"chisq,omitempty"`
	// Converged reports whether the fitter declared convergence.
	Converged bool `yaml:"converged"`
	// FitTime is the wall-clock fit duration in seconds.
	FitTime float64 `yaml:"fit_time_seconds,omitempty"`
	// FittedAt is the wall-clock time the fit completed.
	FittedAt time.Time `yaml:"fitted_at,omitempty"`
}

// Parameter returns the fitted value for the named parameter, or a
// MissingParameterError if the result does not contain it.
func (r *Result) Parameter(name string) (float64, error) {
	v, ok := r.Parameters[name]
	if !ok {
		return 0, apperrors.MissingParameterError{Name: name}
	}
	return v, nil
}
