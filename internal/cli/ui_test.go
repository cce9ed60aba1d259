package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/briandowns/spinner"

	"github.com/lumenlab/holofit/internal/fit"
)

// TestFormatExecutionDuration tests duration formatting across magnitudes.
func TestFormatExecutionDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"microseconds", 500 * time.Microsecond, "500µs"},
		{"sub-microsecond", 900 * time.Nanosecond, "0µs"},
		{"milliseconds", 250 * time.Millisecond, "250ms"},
		{"seconds", 2 * time.Second, "2s"},
		{"minutes", 90 * time.Second, "1m30s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatExecutionDuration(tt.d); got != tt.want {
				t.Errorf("FormatExecutionDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

// TestProgressBar tests the textual progress bar rendering.
func TestProgressBar(t *testing.T) {
	tests := []struct {
		name      string
		progress  float64
		length    int
		wantFull  int
		wantEmpty int
	}{
		{"empty", 0.0, 10, 0, 10},
		{"half", 0.5, 10, 5, 5},
		{"full", 1.0, 10, 10, 0},
		{"clamped above", 1.5, 10, 10, 0},
		{"clamped below", -0.5, 10, 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := progressBar(tt.progress, tt.length)
			full := strings.Count(bar, "█")
			empty := strings.Count(bar, "░")
			if full != tt.wantFull || empty != tt.wantEmpty {
				t.Errorf("progressBar(%v, %d) = %q: %d full, %d empty; want %d/%d",
					tt.progress, tt.length, bar, full, empty, tt.wantFull, tt.wantEmpty)
			}
		})
	}
}

// fakeSpinner records calls for verification.
type fakeSpinner struct {
	started  bool
	stopped  bool
	suffixes []string
}

func (f *fakeSpinner) Start()                    { f.started = true }
func (f *fakeSpinner) Stop()                     { f.stopped = true }
func (f *fakeSpinner) UpdateSuffix(suffix string) { f.suffixes = append(f.suffixes, suffix) }

// TestSpinnerProgress tests the series progress reporter over a fake spinner.
func TestSpinnerProgress(t *testing.T) {
	fake := &fakeSpinner{}
	orig := newSpinner
	newSpinner = func(_ ...spinner.Option) Spinner { return fake }
	defer func() { newSpinner = orig }()

	p := NewSpinnerProgress()

	p.FrameStart(0, 4)
	if !fake.started {
		t.Error("spinner should start on the first frame")
	}

	p.FrameDone(0, 4, &fit.Result{Chisq: 1.25})
	p.FrameStart(1, 4)
	p.Stop()

	if !fake.stopped {
		t.Error("Stop should halt the spinner")
	}
	if len(fake.suffixes) != 3 {
		t.Fatalf("got %d suffix updates, want 3", len(fake.suffixes))
	}
	if !strings.Contains(fake.suffixes[0], "1/4") {
		t.Errorf("first suffix %q should mention frame 1/4", fake.suffixes[0])
	}
	if !strings.Contains(fake.suffixes[1], "chisq=1.25") {
		t.Errorf("done suffix %q should mention chisq", fake.suffixes[1])
	}
}

// TestSpinnerProgress_StopWithoutStart verifies Stop is safe before any frame.
func TestSpinnerProgress_StopWithoutStart(t *testing.T) {
	fake := &fakeSpinner{}
	orig := newSpinner
	newSpinner = func(_ ...spinner.Option) Spinner { return fake }
	defer func() { newSpinner = orig }()

	p := NewSpinnerProgress()
	p.Stop()

	if fake.stopped {
		t.Error("Stop before Start should be a no-op")
	}
}
