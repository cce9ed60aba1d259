package series

import (
	"github.com/lumenlab/holofit/internal/fit"
)

// UpdateFunc folds a fit result back into the model as the next frame's
// starting guesses. It is called once per frame, after the frame's result is
// known, and must leave the model usable as input to the next preprocessing
// and fit step.
type UpdateFunc func(m *fit.Model, r *fit.Result) error

// UpdateAll is the default update policy: every parameter currently on the
// model has its guess overwritten with the value of the same-named parameter
// from the fit result. A parameter missing from the result is a lookup error.
func UpdateAll(m *fit.Model, r *fit.Result) error {
	for i := range m.Parameters {
		name := m.Parameters[i].Name
		v, err := r.Parameter(name)
		if err != nil {
			return err
		}
		m.SetGuess(name, v)
	}
	return nil
}
