// Package config defines the runtime configuration of the holofit binary and
// its resolution order: CLI flags > environment variables > defaults.
package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	apperrors "github.com/lumenlab/holofit/internal/errors"
	"github.com/lumenlab/holofit/internal/image"
)

// EnvPrefix is prepended to every environment variable this package reads.
const EnvPrefix = "HOLOFIT_"

// Default values for optical metadata and run limits.
const (
	DefaultSpacing     = 0.1
	DefaultWavelength  = 0.66
	DefaultMediumIndex = 1.33
	DefaultTimeout     = 10 * time.Minute
)

// AppConfig holds the complete, resolved configuration of a holofit run.
type AppConfig struct {
	// Data is the positional input: frame image paths, or a single sqlite
	// archive path.
	Data []string
	// DataGlob, when set, is expanded into Data before resolution.
	DataGlob string

	// Spacing is the physical pixel spacing of the frames.
	Spacing float64
	// Wavelength is the illumination wavelength (vacuum).
	Wavelength float64
	// MediumIndex is the refractive index of the medium.
	MediumIndex float64

	// BGPath and DFPath locate the background and darkfield images.
	BGPath string
	DFPath string

	// OutputDir receives checkpoint files and preprocessed frames.
	OutputDir string
	// Restart reuses existing checkpoints in OutputDir instead of refitting.
	Restart bool

	// SubimageSize switches preprocessing to a scatterer-centered window of
	// this size; zero keeps whole-frame background division.
	SubimageSize int
	// RecenterAtEdge shifts an out-of-bounds window inward instead of
	// failing.
	RecenterAtEdge bool

	// MaxIterations and Tolerance are forwarded to the fitter; zero means the
	// fitter's defaults.
	MaxIterations int
	Tolerance     float64

	// Preprocess writes preprocessed frames to OutputDir instead of fitting.
	Preprocess bool
	// BuildArchive packs the input frames into a sqlite archive at this path.
	BuildArchive string
	// MetricsAddr serves Prometheus metrics on this address during the run.
	MetricsAddr string

	// Timeout bounds the whole run.
	Timeout time.Duration

	Quiet   bool
	Verbose bool
}

// ParseConfig parses command-line arguments into an AppConfig, applies
// environment variable overrides for flags not explicitly set, and validates
// the result. Usage and parse errors are written to errWriter.
func ParseConfig(programName string, args []string, errWriter io.Writer) (AppConfig, error) {
	cfg := AppConfig{
		Spacing:     DefaultSpacing,
		Wavelength:  DefaultWavelength,
		MediumIndex: DefaultMediumIndex,
		Timeout:     DefaultTimeout,
	}

	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errWriter)

	fs.StringVar(&cfg.DataGlob, "data", "", "glob pattern for frame image files")
	fs.Float64Var(&cfg.Spacing, "spacing", cfg.Spacing, "physical pixel spacing of the frames")
	fs.Float64Var(&cfg.Wavelength, "wavelength", cfg.Wavelength, "illumination wavelength")
	fs.Float64Var(&cfg.MediumIndex, "medium-index", cfg.MediumIndex, "refractive index of the medium")
	fs.StringVar(&cfg.BGPath, "bg", "", "background image path")
	fs.StringVar(&cfg.DFPath, "df", "", "darkfield image path")
	fs.StringVar(&cfg.OutputDir, "output", "", "directory for checkpoints and preprocessed frames")
	fs.StringVar(&cfg.OutputDir, "o", "", "alias for -output")
	fs.BoolVar(&cfg.Restart, "restart", false, "reuse existing checkpoints instead of refitting")
	fs.IntVar(&cfg.SubimageSize, "subimage", 0, "scatterer-centered window size (0 = whole frame)")
	fs.BoolVar(&cfg.RecenterAtEdge, "recenter", false, "shift an out-of-bounds window inward instead of failing")
	fs.IntVar(&cfg.MaxIterations, "max-iter", 0, "fitter iteration bound (0 = fitter default)")
	fs.Float64Var(&cfg.Tolerance, "tol", 0, "fitter convergence tolerance (0 = fitter default)")
	fs.BoolVar(&cfg.Preprocess, "preprocess", false, "write preprocessed frames instead of fitting")
	fs.StringVar(&cfg.BuildArchive, "build-archive", "", "pack input frames into a sqlite archive at this path")
	fs.StringVar(&cfg.MetricsAddr, "serve-metrics", "", "serve Prometheus metrics on this address")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "bound on the whole run")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "suppress progress output")
	fs.BoolVar(&cfg.Quiet, "q", false, "alias for -quiet")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&cfg.Verbose, "v", false, "alias for -verbose")

	fs.Usage = func() {
		fmt.Fprintf(errWriter, "Usage: %s [flags] <frames...>\n\n", programName)
		fmt.Fprintf(errWriter, "Fits a scattering model to a time series of holographic frames.\n")
		fmt.Fprintf(errWriter, "Frames are image files or a single sqlite frame archive.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}

	cfg.Data = fs.Args()
	applyEnvOverrides(&cfg, fs)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for internally inconsistent or out-of-range
// values. It does not touch the filesystem.
func (c AppConfig) Validate() error {
	if len(c.Data) == 0 && c.DataGlob == "" {
		return apperrors.NewConfigError("no input frames: pass frame paths or -data <glob>")
	}
	if c.Spacing <= 0 {
		return apperrors.NewConfigError("spacing must be positive, got %g", c.Spacing)
	}
	if c.Wavelength <= 0 {
		return apperrors.NewConfigError("wavelength must be positive, got %g", c.Wavelength)
	}
	if c.MediumIndex <= 0 {
		return apperrors.NewConfigError("medium index must be positive, got %g", c.MediumIndex)
	}
	if c.SubimageSize < 0 {
		return apperrors.NewConfigError("subimage size must not be negative, got %d", c.SubimageSize)
	}
	if c.RecenterAtEdge && c.SubimageSize == 0 {
		return apperrors.NewConfigError("-recenter requires -subimage")
	}
	if c.Restart && c.OutputDir == "" {
		return apperrors.NewConfigError("-restart requires -output")
	}
	if c.Preprocess && c.OutputDir == "" {
		return apperrors.NewConfigError("-preprocess requires -output")
	}
	if c.MaxIterations < 0 {
		return apperrors.NewConfigError("max iterations must not be negative, got %d", c.MaxIterations)
	}
	if c.Tolerance < 0 {
		return apperrors.NewConfigError("tolerance must not be negative, got %g", c.Tolerance)
	}
	if c.Timeout <= 0 {
		return apperrors.NewConfigError("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Optics returns the optical metadata attached to every loaded frame.
func (c AppConfig) Optics() image.Optics {
	return image.Optics{Wavelength: c.Wavelength, MediumIndex: c.MediumIndex}
}
