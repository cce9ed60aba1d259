// Package apperrors provides tests for application error types.
package apperrors

import (
	"context"
	"errors"
	"testing"
)

func TestConfigError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		err         error
		expected    string
		checkTypeAs bool
	}{
		{
			name:     "Error returns message",
			err:      ConfigError{Message: "invalid flag value"},
			expected: "invalid flag value",
		},
		{
			name:     "NewConfigError creates formatted error",
			err:      NewConfigError("invalid value %g for flag %s", 0.0, "--spacing"),
			expected: "invalid value 0 for flag --spacing",
		},
		{
			name:        "ConfigError type assertion",
			err:         NewConfigError("test error"),
			expected:    "test error",
			checkTypeAs: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.err.Error() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.err.Error())
			}
			if tt.checkTypeAs {
				var configErr ConfigError
				if !errors.As(tt.err, &configErr) {
					t.Error("expected error to be ConfigError type")
				}
			}
		})
	}
}

func TestFitError(t *testing.T) {
	t.Parallel()
	cause := errors.New("singular jacobian")
	err := FitError{Frame: 7, Cause: cause}

	t.Run("Error names the frame and cause", func(t *testing.T) {
		t.Parallel()
		want := "fit failed on frame 7: singular jacobian"
		if err.Error() != want {
			t.Errorf("expected %q, got %q", want, err.Error())
		}
	})

	t.Run("Unwrap exposes the cause", func(t *testing.T) {
		t.Parallel()
		if !errors.Is(err, cause) {
			t.Error("errors.Is should match the wrapped cause")
		}
	})

	t.Run("errors.As recovers the frame index", func(t *testing.T) {
		t.Parallel()
		wrapped := WrapError(err, "series aborted")
		var fitErr FitError
		if !errors.As(wrapped, &fitErr) {
			t.Fatal("expected error chain to contain FitError")
		}
		if fitErr.Frame != 7 {
			t.Errorf("Frame = %d, want 7", fitErr.Frame)
		}
	})
}

func TestOutOfBoundsError(t *testing.T) {
	t.Parallel()
	err := OutOfBoundsError{X0: -3, Y0: 90, Width: 32, Height: 32, FrameWidth: 100, FrameHeight: 100}
	want := "subimage window 32x32 at (-3,90) exceeds frame bounds 100x100"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestMissingParameterError(t *testing.T) {
	t.Parallel()
	err := MissingParameterError{Name: "radius"}
	want := `fit result has no parameter "radius"`
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()
	err := ValidationError{Field: "spacing", Message: "must be positive"}
	want := `validation error for "spacing": must be positive`
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	t.Run("nil error returns nil", func(t *testing.T) {
		t.Parallel()
		if WrapError(nil, "context") != nil {
			t.Error("WrapError(nil, ...) should return nil")
		}
	})

	t.Run("wrapped error preserves chain", func(t *testing.T) {
		t.Parallel()
		base := errors.New("base")
		wrapped := WrapError(base, "loading frame %d", 3)
		if !errors.Is(wrapped, base) {
			t.Error("wrapped error should match base via errors.Is")
		}
		want := "loading frame 3: base"
		if wrapped.Error() != want {
			t.Errorf("expected %q, got %q", want, wrapped.Error())
		}
	})
}

func TestIsContextError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"canceled", context.Canceled, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped canceled", WrapError(context.Canceled, "fit"), true},
		{"ordinary error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsContextError(tt.err); got != tt.want {
				t.Errorf("IsContextError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
