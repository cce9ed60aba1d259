package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lumenlab/holofit/internal/archive"
	"github.com/lumenlab/holofit/internal/checkpoint"
	"github.com/lumenlab/holofit/internal/cli"
	apperrors "github.com/lumenlab/holofit/internal/errors"
	"github.com/lumenlab/holofit/internal/fit"
	"github.com/lumenlab/holofit/internal/image"
	"github.com/lumenlab/holofit/internal/series"
	"github.com/lumenlab/holofit/internal/server"
)

// runInspect resolves the series and prints what a fit run would see. This is
// the default mode: it validates the configuration against the actual data
// without touching it.
func (a *Application) runInspect(_ context.Context, out io.Writer) int {
	src, err := series.Resolve(a.input(), a.Config.Spacing, a.Config.Optics(), a.logger)
	if err != nil {
		return a.fail(err)
	}
	defer closeSource(src)

	frame, err := src.Frame(0)
	if err != nil {
		return a.fail(apperrors.WrapError(err, "loading frame 0"))
	}

	cli.DisplaySeriesInfo(out, src.Len(), frame.Width, frame.Height, a.Config.Spacing)
	if a.Config.BGPath != "" {
		fmt.Fprintf(out, "Background: %s\n", a.Config.BGPath)
	}
	if a.Config.DFPath != "" {
		fmt.Fprintf(out, "Darkfield: %s\n", a.Config.DFPath)
	}
	if a.Config.OutputDir != "" {
		store := checkpoint.NewStore(a.Config.OutputDir)
		existing := 0
		for i := 0; i < src.Len(); i++ {
			if store.Exists(i) {
				existing++
			}
		}
		fmt.Fprintf(out, "Checkpoints: %d/%d in %s\n", existing, src.Len(), a.Config.OutputDir)
	}
	return apperrors.ExitSuccess
}

// runPreprocess applies the preprocessing policy to every frame and writes the
// processed images to the output directory, numbered like the input.
func (a *Application) runPreprocess(ctx context.Context, out io.Writer) int {
	src, err := series.Resolve(a.input(), a.Config.Spacing, a.Config.Optics(), a.logger)
	if err != nil {
		return a.fail(err)
	}
	defer closeSource(src)

	bg, df, err := a.loadCalibration()
	if err != nil {
		return a.fail(err)
	}

	if err := os.MkdirAll(a.Config.OutputDir, 0o755); err != nil {
		return a.fail(apperrors.WrapError(err, "creating output directory"))
	}

	for i := 0; i < src.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return a.fail(err)
		}
		frame, err := src.Frame(i)
		if err != nil {
			return a.fail(apperrors.WrapError(err, "loading frame %d", i))
		}
		processed, err := series.DivNormalize(frame, bg, df, nil)
		if err != nil {
			return a.fail(apperrors.WrapError(err, "preprocessing frame %d", i))
		}
		path := filepath.Join(a.Config.OutputDir, fmt.Sprintf("processed_%d.png", i))
		if err := image.Save(path, processed); err != nil {
			return a.fail(err)
		}
	}

	if !a.Config.Quiet {
		fmt.Fprintf(out, "Wrote %d processed frame(s) to %s\n", src.Len(), a.Config.OutputDir)
	}
	return apperrors.ExitSuccess
}

// runBuildArchive packs the input frames into a single sqlite archive, keyed
// by frame index.
func (a *Application) runBuildArchive(ctx context.Context, out io.Writer) int {
	src, err := series.Resolve(a.input(), a.Config.Spacing, a.Config.Optics(), a.logger)
	if err != nil {
		return a.fail(err)
	}
	defer closeSource(src)

	ar, err := archive.Create(a.Config.BuildArchive)
	if err != nil {
		return a.fail(err)
	}
	defer ar.Close()

	for i := 0; i < src.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return a.fail(err)
		}
		frame, err := src.Frame(i)
		if err != nil {
			return a.fail(apperrors.WrapError(err, "loading frame %d", i))
		}
		if err := ar.PutFrame(strconv.Itoa(i), frame.Width, frame.Height, frame.Pix); err != nil {
			return a.fail(err)
		}
	}

	if !a.Config.Quiet {
		fmt.Fprintf(out, "Archived %d frame(s) into %s\n", src.Len(), a.Config.BuildArchive)
	}
	return apperrors.ExitSuccess
}

// runFitSeries runs the full iterate-fit-update loop with the installed
// fitter and prints the per-frame results.
func (a *Application) runFitSeries(ctx context.Context, out io.Writer, metrics *server.Metrics) int {
	if a.Model == nil {
		return a.fail(apperrors.NewConfigError("series fit requires a starting model"))
	}

	opts := []series.DriverOption{
		series.WithLogger(a.logger),
		series.WithFitOptions(
			fit.WithMaxIterations(a.Config.MaxIterations),
			fit.WithTolerance(a.Config.Tolerance),
		),
	}
	if a.Config.OutputDir != "" {
		opts = append(opts, series.WithCheckpoints(checkpoint.NewStore(a.Config.OutputDir)))
	}
	if a.Config.Restart {
		opts = append(opts, series.WithRestart(true))
	}
	if a.Config.SubimageSize > 0 {
		opts = append(opts, series.WithPreprocess(series.ScattererCenteredSubimage(
			a.Config.SubimageSize, a.Config.SubimageSize, a.Config.RecenterAtEdge)))
	}
	if metrics != nil {
		opts = append(opts, series.WithObserver(metrics))
		metrics.SeriesStarted()
		defer metrics.SeriesDone()
	}

	var progress *cli.SpinnerProgress
	if !a.Config.Quiet {
		progress = cli.NewSpinnerProgress()
		opts = append(opts, series.WithProgress(progress))
	}

	driver := series.NewDriver(a.Fitter, opts...)

	start := time.Now()
	results, err := driver.Run(ctx, a.Model, series.Request{
		Data:    a.input(),
		Spacing: a.Config.Spacing,
		Optics:  a.Config.Optics(),
		BG:      series.CalSource{Path: a.Config.BGPath},
		DF:      series.CalSource{Path: a.Config.DFPath},
	})
	elapsed := time.Since(start)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return a.fail(err)
	}

	if a.Config.Quiet {
		cli.DisplayQuietSummary(out, len(results), elapsed)
	} else {
		cli.DisplayResults(out, results)
	}
	return apperrors.ExitSuccess
}

// input bundles the configured data paths for source resolution.
func (a *Application) input() series.Input {
	return series.Input{Paths: a.Config.Data}
}

// loadCalibration loads the configured background and darkfield images.
func (a *Application) loadCalibration() (bg, df *image.Frame, err error) {
	if a.Config.BGPath != "" {
		bg, err = image.Load(a.Config.BGPath, a.Config.Spacing, a.Config.Optics())
		if err != nil {
			return nil, nil, err
		}
	}
	if a.Config.DFPath != "" {
		df, err = image.Load(a.Config.DFPath, a.Config.Spacing, a.Config.Optics())
		if err != nil {
			return nil, nil, err
		}
	}
	return bg, df, nil
}

// closeSource releases a frame source that holds resources.
func closeSource(src series.FrameSource) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}
