package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Application exit codes define the standard exit statuses for the application.
// These codes are used to signal the outcome of the program execution to the OS.
const (
	ExitSuccess       = 0   // Indicates successful execution.
	ExitErrorGeneric  = 1   // Indicates a generic error.
	ExitErrorIO       = 2   // Indicates a frame, calibration or checkpoint I/O error.
	ExitErrorFit      = 3   // Indicates the external fitter failed on a frame.
	ExitErrorConfig   = 4   // Indicates a configuration error.
	ExitErrorCanceled = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// ConfigError represents a user configuration error, such as invalid flags or
// values. It indicates that the application cannot proceed due to incorrect user input.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// FitError encapsulates a failure of the external fit routine on a specific
// frame while preserving the original cause. The series loop never retries:
// a FitError aborts the run at the frame it names.
type FitError struct {
	// Frame is the zero-based index of the frame whose fit failed.
	Frame int
	// Cause is the underlying error reported by the fitter.
	Cause error
}

// Error returns a message identifying the frame and the underlying cause.
func (e FitError) Error() string {
	return fmt.Sprintf("fit failed on frame %d: %v", e.Frame, e.Cause)
}

// Unwrap returns the original wrapped error, allowing for error chain
// inspection (e.g., using errors.Is or errors.As).
func (e FitError) Unwrap() error { return e.Cause }

// OutOfBoundsError reports a subimage window that extends past the edge of a
// frame. It carries the requested window and the frame dimensions so callers
// can decide whether to recenter.
type OutOfBoundsError struct {
	// X0, Y0 are the requested top-left pixel of the window.
	X0, Y0 int
	// Width, Height are the requested window dimensions.
	Width, Height int
	// FrameWidth, FrameHeight are the dimensions of the source frame.
	FrameWidth, FrameHeight int
}

// Error returns a formatted message describing the out-of-bounds window.
func (e OutOfBoundsError) Error() string {
	return fmt.Sprintf("subimage window %dx%d at (%d,%d) exceeds frame bounds %dx%d",
		e.Width, e.Height, e.X0, e.Y0, e.FrameWidth, e.FrameHeight)
}

// MissingParameterError reports that a fit result lacks a parameter the model
// expects. The update policy surfaces this as a fatal lookup failure.
type MissingParameterError struct {
	// Name is the parameter name that was not found.
	Name string
}

// Error returns a formatted message naming the missing parameter.
func (e MissingParameterError) Error() string {
	return fmt.Sprintf("fit result has no parameter %q", e.Name)
}

// ValidationError represents an input validation failure. It identifies which
// field failed validation and provides a human-readable explanation.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message explains the validation failure.
	Message string
}

// Error returns a formatted message describing the validation failure.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
}

// WrapError wraps an error with additional context using fmt.Errorf and %w.
// This allows the wrapped error to be unwrapped with errors.Unwrap() and
// checked with errors.Is() and errors.As().
//
// Parameters:
//   - err: The error to wrap.
//   - format: A format string for the context message.
//   - args: Arguments for the format string.
//
// Returns:
//   - error: The wrapped error, or nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
