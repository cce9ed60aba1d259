package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"

	"github.com/lumenlab/holofit/internal/fit"
	"github.com/lumenlab/holofit/internal/series"
)

// FormatExecutionDuration formats a time.Duration for display.
// It shows microseconds for durations less than a millisecond, milliseconds for
// durations less than a second, and the default string representation otherwise.
//
// Parameters:
//   - d: The duration to format.
//
// Returns:
//   - string: A formatted string representing the duration.
func FormatExecutionDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	} else if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

const (
	// ProgressRefreshRate defines the refresh frequency of the spinner.
	ProgressRefreshRate = 200 * time.Millisecond
	// ProgressBarWidth defines the width in characters of the progress bar.
	ProgressBarWidth = 30
)

// Spinner is an interface that abstracts the behavior of a terminal spinner,
// decoupling the progress reporter from a specific spinner implementation and
// facilitating testing.
type Spinner interface {
	// Start begins the spinner animation.
	Start()
	// Stop halts the spinner animation.
	Stop()
	// UpdateSuffix sets the text that is displayed after the spinner.
	UpdateSuffix(suffix string)
}

// realSpinner wraps spinner.Spinner to implement the Spinner interface.
type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start() { rs.s.Start() }

func (rs *realSpinner) Stop() { rs.s.Stop() }

func (rs *realSpinner) UpdateSuffix(suffix string) { rs.s.Suffix = suffix }

var newSpinner = func(options ...spinner.Option) Spinner {
	s := spinner.New(spinner.CharSets[11], ProgressRefreshRate, options...)
	return &realSpinner{s}
}

// SpinnerProgress reports series fit progress on the terminal: a spinner with
// a per-frame progress bar and the latest chi-squared value. It implements
// series.ProgressReporter.
type SpinnerProgress struct {
	spinner Spinner
	started bool
}

var _ series.ProgressReporter = (*SpinnerProgress)(nil)

// NewSpinnerProgress creates a terminal progress reporter.
func NewSpinnerProgress() *SpinnerProgress {
	return &SpinnerProgress{spinner: newSpinner()}
}

// FrameStart updates the spinner for the frame about to be fitted.
func (p *SpinnerProgress) FrameStart(index, total int) {
	if !p.started {
		p.spinner.Start()
		p.started = true
	}
	progress := 0.0
	if total > 0 {
		progress = float64(index) / float64(total)
	}
	p.spinner.UpdateSuffix(fmt.Sprintf(" fitting frame %d/%d [%s]",
		index+1, total, progressBar(progress, ProgressBarWidth)))
}

// FrameDone updates the spinner with the finished frame's fit quality.
func (p *SpinnerProgress) FrameDone(index, total int, r *fit.Result) {
	progress := 0.0
	if total > 0 {
		progress = float64(index+1) / float64(total)
	}
	p.spinner.UpdateSuffix(fmt.Sprintf(" frame %d/%d done, chisq=%.4g [%s]",
		index+1, total, r.Chisq, progressBar(progress, ProgressBarWidth)))
}

// Stop halts the spinner. Safe to call when it never started.
func (p *SpinnerProgress) Stop() {
	if p.started {
		p.spinner.Stop()
		p.started = false
	}
}

// progressBar generates a string representing a textual progress bar.
//
// Parameters:
//   - progress: The normalized progress value (0.0 to 1.0).
//   - length: The total character width of the progress bar.
//
// Returns:
//   - string: A string representation of the progress bar.
func progressBar(progress float64, length int) string {
	if progress > 1.0 {
		progress = 1.0
	}
	if progress < 0.0 {
		progress = 0.0
	}
	count := int(progress * float64(length))
	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		if i < count {
			builder.WriteRune('█')
		} else {
			builder.WriteRune('░')
		}
	}
	return builder.String()
}
