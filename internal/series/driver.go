package series

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lumenlab/holofit/internal/checkpoint"
	apperrors "github.com/lumenlab/holofit/internal/errors"
	"github.com/lumenlab/holofit/internal/fit"
	"github.com/lumenlab/holofit/internal/image"
	"github.com/lumenlab/holofit/internal/logging"
)

// tracerName identifies this package's otel tracer.
const tracerName = "github.com/lumenlab/holofit/internal/series"

// ProgressReporter receives per-frame progress notifications. This interface
// decouples the driver from the presentation layer; the CLI installs a
// spinner-backed implementation, tests and library users the null one.
type ProgressReporter interface {
	// FrameStart is called before a frame is fitted (or checkpoint-loaded).
	FrameStart(index, total int)
	// FrameDone is called with the result that advanced the model.
	FrameDone(index, total int, r *fit.Result)
}

// NullProgressReporter is a no-op ProgressReporter.
type NullProgressReporter struct{}

// FrameStart does nothing.
func (NullProgressReporter) FrameStart(int, int) {}

// FrameDone does nothing.
func (NullProgressReporter) FrameDone(int, int, *fit.Result) {}

// Observer receives measurement events from the loop. The metrics endpoint
// implements it; the null implementation keeps the driver dependency-free.
type Observer interface {
	// FrameFitted is called after a successful fresh fit with its duration.
	FrameFitted(index int, d time.Duration)
	// CheckpointHit is called when a restart run loads a persisted result
	// instead of fitting.
	CheckpointHit(index int)
}

// NullObserver is a no-op Observer.
type NullObserver struct{}

// FrameFitted does nothing.
func (NullObserver) FrameFitted(int, time.Duration) {}

// CheckpointHit does nothing.
func (NullObserver) CheckpointHit(int) {}

// CalSource designates a calibration image (background or darkfield) as
// either a file path or an already-loaded frame. A zero CalSource means the
// image is absent.
type CalSource struct {
	Path  string
	Frame *image.Frame
}

// Request bundles everything Run needs to resolve a series: the frame input,
// the metadata to attach to loaded frames, and the optional calibration
// images.
type Request struct {
	Data    Input
	Spacing float64
	Optics  image.Optics
	BG      CalSource
	DF      CalSource
}

// Driver runs the sequential iterate-fit-update loop over a frame series.
// Construct it with NewDriver; the zero value is not usable.
type Driver struct {
	fitter     fit.Fitter
	preprocess PreprocessFunc
	update     UpdateFunc
	store      *checkpoint.Store
	restart    bool
	fitOptions []fit.Option
	logger     logging.Logger
	progress   ProgressReporter
	observer   Observer
	tracer     trace.Tracer
}

// DriverOption configures a Driver during construction.
type DriverOption func(*Driver)

// WithPreprocess replaces the default DivNormalize preprocessing policy.
func WithPreprocess(f PreprocessFunc) DriverOption {
	return func(d *Driver) { d.preprocess = f }
}

// WithUpdate replaces the default UpdateAll update policy.
func WithUpdate(f UpdateFunc) DriverOption {
	return func(d *Driver) { d.update = f }
}

// WithCheckpoints enables per-frame result persistence to the given store.
func WithCheckpoints(s *checkpoint.Store) DriverOption {
	return func(d *Driver) { d.store = s }
}

// WithRestart makes the loop load an existing checkpoint for a frame instead
// of fitting it. Only meaningful together with WithCheckpoints.
func WithRestart(restart bool) DriverOption {
	return func(d *Driver) { d.restart = restart }
}

// WithFitOptions sets extra options passed through to every per-frame fit.
func WithFitOptions(opts ...fit.Option) DriverOption {
	return func(d *Driver) { d.fitOptions = opts }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) DriverOption {
	return func(d *Driver) { d.progress = p }
}

// WithObserver sets the measurement observer.
func WithObserver(o Observer) DriverOption {
	return func(d *Driver) { d.observer = o }
}

// NewDriver creates a Driver around the external fitter with the default
// policies: DivNormalize preprocessing, UpdateAll updates, no persistence,
// no logging.
func NewDriver(fitter fit.Fitter, opts ...DriverOption) *Driver {
	d := &Driver{
		fitter:     fitter,
		preprocess: DivNormalize,
		update:     UpdateAll,
		logger:     logging.NopLogger{},
		progress:   NullProgressReporter{},
		observer:   NullObserver{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run resolves a Request into a frame source and calibration images, then
// runs FitSeries. The background and darkfield are loaded concurrently; the
// fit loop itself is strictly sequential.
func (d *Driver) Run(ctx context.Context, m *fit.Model, req Request) ([]*fit.Result, error) {
	src, err := Resolve(req.Data, req.Spacing, req.Optics, d.logger)
	if err != nil {
		return nil, err
	}

	bg, df, err := d.resolveCalibration(ctx, req)
	if err != nil {
		return nil, err
	}

	return d.FitSeries(ctx, m, src, bg, df)
}

// resolveCalibration turns the bg/df path-or-frame designations into loaded
// frames. Both loads run concurrently; either failure aborts.
func (d *Driver) resolveCalibration(ctx context.Context, req Request) (bg, df *image.Frame, err error) {
	bg, df = req.BG.Frame, req.DF.Frame

	g, _ := errgroup.WithContext(ctx)
	if req.BG.Path != "" {
		g.Go(func() error {
			var err error
			bg, err = image.Load(req.BG.Path, req.Spacing, req.Optics)
			return err
		})
	}
	if req.DF.Path != "" {
		g.Go(func() error {
			var err error
			df, err = image.Load(req.DF.Path, req.Spacing, req.Optics)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return bg, df, nil
}

// FitSeries fits the model to every frame of the series in strict index
// order, carrying each frame's fitted parameters forward as the next frame's
// guesses. With restart enabled, frames whose checkpoint file exists are
// loaded instead of fitted; such results advance the model but are not
// included in the returned slice, which holds only freshly computed results.
//
// Any error from loading, preprocessing, fitting, persistence or updating
// halts the series at the current frame. The results accumulated up to that
// point are returned alongside the error; checkpoints already written remain
// on disk for a later restart run.
func (d *Driver) FitSeries(ctx context.Context, m *fit.Model, src FrameSource, bg, df *image.Frame) ([]*fit.Result, error) {
	runID := uuid.NewString()
	total := src.Len()

	if d.store != nil {
		if err := d.store.EnsureDir(); err != nil {
			return nil, err
		}
	}

	d.logger.Info("series fit started",
		logging.String("run_id", runID),
		logging.Int("frames", total),
		logging.Bool("restart", d.restart),
	)

	var results []*fit.Result
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		d.progress.FrameStart(i, total)

		result, fresh, err := d.stepFrame(ctx, m, src, bg, df, i, runID)
		if err != nil {
			d.logger.Error("series fit aborted", err, logging.Int("frame", i))
			return results, err
		}
		if fresh {
			results = append(results, result)
			if d.store != nil {
				if err := d.store.Save(i, result); err != nil {
					return results, err
				}
			}
		}

		if err := d.update(m, result); err != nil {
			return results, apperrors.WrapError(err, "updating model after frame %d", i)
		}

		d.progress.FrameDone(i, total, result)
	}

	d.logger.Info("series fit finished",
		logging.String("run_id", runID),
		logging.Int("fitted", len(results)),
		logging.Int("frames", total),
	)
	return results, nil
}

// stepFrame produces the result that advances the model for frame i: either
// a checkpoint load (restart) or a fresh preprocess+fit. fresh reports which
// branch ran.
func (d *Driver) stepFrame(ctx context.Context, m *fit.Model, src FrameSource, bg, df *image.Frame, i int, runID string) (result *fit.Result, fresh bool, err error) {
	ctx, span := d.tracer.Start(ctx, "series.fit_frame",
		trace.WithAttributes(
			attribute.Int("frame.index", i),
			attribute.String("run.id", runID),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if d.restart && d.store != nil && d.store.Exists(i) {
		span.SetAttributes(attribute.Bool("frame.checkpoint", true))
		result, err = d.store.Load(i)
		if err != nil {
			return nil, false, err
		}
		d.observer.CheckpointHit(i)
		d.logger.Debug("loaded checkpoint", logging.Int("frame", i))
		return result, false, nil
	}

	frame, err := src.Frame(i)
	if err != nil {
		return nil, false, apperrors.WrapError(err, "loading frame %d", i)
	}

	processed, err := d.preprocess(frame, bg, df, m)
	if err != nil {
		return nil, false, apperrors.WrapError(err, "preprocessing frame %d", i)
	}

	start := time.Now()
	result, err = d.fitter.Fit(ctx, m, processed, d.fitOptions...)
	if err != nil {
		return nil, false, apperrors.FitError{Frame: i, Cause: err}
	}
	elapsed := time.Since(start)

	result.RunID = runID
	result.Frame = i
	if result.FitTime == 0 {
		result.FitTime = elapsed.Seconds()
	}
	if result.FittedAt.IsZero() {
		result.FittedAt = time.Now()
	}

	d.observer.FrameFitted(i, elapsed)
	d.logger.Debug("frame fitted",
		logging.Int("frame", i),
		logging.Float64("chisq", result.Chisq),
		logging.Float64("seconds", elapsed.Seconds()),
	)
	return result, true, nil
}
