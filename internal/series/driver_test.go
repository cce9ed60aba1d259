package series

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlab/holofit/internal/checkpoint"
	apperrors "github.com/lumenlab/holofit/internal/errors"
	"github.com/lumenlab/holofit/internal/fit"
	"github.com/lumenlab/holofit/internal/fsutil"
	"github.com/lumenlab/holofit/internal/image"
)

// scriptedFitter returns canned results per invocation and records how often
// it was called.
type scriptedFitter struct {
	calls   int
	perCall func(call int, m *fit.Model) (*fit.Result, error)
}

func (f *scriptedFitter) Fit(_ context.Context, m *fit.Model, _ *image.Frame, _ ...fit.Option) (*fit.Result, error) {
	call := f.calls
	f.calls++
	return f.perCall(call, m)
}

// walkingFitter simulates a particle drifting in x: each call reports
// center.x one unit further along, everything else held.
func walkingFitter() *scriptedFitter {
	return &scriptedFitter{perCall: func(call int, m *fit.Model) (*fit.Result, error) {
		return &fit.Result{
			Parameters: map[string]float64{
				fit.ParamCenterX: 10 + float64(call),
				fit.ParamCenterY: 5,
				fit.ParamCenterZ: 10,
				fit.ParamRadius:  0.5,
				fit.ParamIndex:   1.59,
			},
			Chisq:     1.0,
			Converged: true,
		}, nil
	}}
}

func seriesModel() *fit.Model {
	return &fit.Model{
		Parameters: []fit.Parameter{
			{Name: fit.ParamCenterX, Guess: 10},
			{Name: fit.ParamCenterY, Guess: 5},
			{Name: fit.ParamCenterZ, Guess: 10},
			{Name: fit.ParamRadius, Guess: 0.5},
			{Name: fit.ParamIndex, Guess: 1.59},
		},
		Scatterer: fit.Scatterer{Center: [3]float64{10, 5, 10}, Radius: 0.5, Index: 1.59},
	}
}

// flatFrames builds n identical frames suitable for DivNormalize.
func flatFrames(n int) []*image.Frame {
	frames := make([]*image.Frame, n)
	for i := range frames {
		f := image.New(8, 8, 0.1, image.Optics{Wavelength: 0.66, MediumIndex: 1.33})
		for j := range f.Pix {
			f.Pix[j] = 1.0
		}
		frames[i] = f
	}
	return frames
}

func TestFitSeries(t *testing.T) {
	ctx := context.Background()

	t.Run("one result per frame in order", func(t *testing.T) {
		fitter := walkingFitter()
		d := NewDriver(fitter)
		m := seriesModel()

		results, err := d.FitSeries(ctx, m, NewMemSource(flatFrames(4)), nil, nil)
		require.NoError(t, err)
		require.Len(t, results, 4)

		for i, r := range results {
			assert.Equal(t, i, r.Frame, "results must be in frame order")
			assert.Equal(t, 10+float64(i), r.Parameters[fit.ParamCenterX])
		}
		assert.Equal(t, 4, fitter.calls)
	})

	t.Run("model carries the last frame's fitted values", func(t *testing.T) {
		d := NewDriver(walkingFitter())
		m := seriesModel()

		_, err := d.FitSeries(ctx, m, NewMemSource(flatFrames(4)), nil, nil)
		require.NoError(t, err)

		got, _ := m.Guess(fit.ParamCenterX)
		assert.Equal(t, 13.0, got, "guess should reflect frame 3's fit")
		assert.Equal(t, 13.0, m.Scatterer.Center[0], "scatterer should follow the update")
	})

	t.Run("results carry a shared run id", func(t *testing.T) {
		d := NewDriver(walkingFitter())

		results, err := d.FitSeries(ctx, seriesModel(), NewMemSource(flatFrames(3)), nil, nil)
		require.NoError(t, err)
		require.NotEmpty(t, results[0].RunID)
		for _, r := range results {
			assert.Equal(t, results[0].RunID, r.RunID)
		}
	})

	t.Run("fitter error halts the series at the failing frame", func(t *testing.T) {
		boom := errors.New("no convergence")
		fitter := &scriptedFitter{perCall: func(call int, m *fit.Model) (*fit.Result, error) {
			if call == 2 {
				return nil, boom
			}
			return walkingFitter().perCall(call, m)
		}}
		d := NewDriver(fitter)

		results, err := d.FitSeries(ctx, seriesModel(), NewMemSource(flatFrames(5)), nil, nil)
		require.Error(t, err)

		var fitErr apperrors.FitError
		require.ErrorAs(t, err, &fitErr)
		assert.Equal(t, 2, fitErr.Frame)
		assert.ErrorIs(t, err, boom)

		assert.Len(t, results, 2, "frames before the failure are returned")
		assert.Equal(t, 3, fitter.calls, "no frame after the failure is attempted")
	})

	t.Run("missing parameter in result aborts via update policy", func(t *testing.T) {
		fitter := &scriptedFitter{perCall: func(call int, m *fit.Model) (*fit.Result, error) {
			return &fit.Result{Parameters: map[string]float64{fit.ParamCenterX: 1}}, nil
		}}
		d := NewDriver(fitter)

		_, err := d.FitSeries(ctx, seriesModel(), NewMemSource(flatFrames(2)), nil, nil)
		var missing apperrors.MissingParameterError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, 1, fitter.calls, "series must halt on the first update failure")
	})

	t.Run("canceled context stops between frames", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		d := NewDriver(walkingFitter())

		_, err := d.FitSeries(cctx, seriesModel(), NewMemSource(flatFrames(3)), nil, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFitSeriesCheckpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("every fitted frame is persisted", func(t *testing.T) {
		mem := fsutil.NewMemoryFileSystem()
		store := checkpoint.NewStoreFS(mem, "out")
		d := NewDriver(walkingFitter(), WithCheckpoints(store))

		_, err := d.FitSeries(ctx, seriesModel(), NewMemSource(flatFrames(3)), nil, nil)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			assert.True(t, store.Exists(i), "checkpoint %d should exist", i)
		}
	})

	t.Run("restart skips checkpointed frames and reproduces model state", func(t *testing.T) {
		mem := fsutil.NewMemoryFileSystem()
		store := checkpoint.NewStoreFS(mem, "out")

		// Reference: an uninterrupted run over all 5 frames.
		reference := seriesModel()
		_, err := NewDriver(walkingFitter()).
			FitSeries(ctx, reference, NewMemSource(flatFrames(5)), nil, nil)
		require.NoError(t, err)

		// Interrupted run: the fitter dies on frame 3, leaving checkpoints
		// for frames 0-2.
		interrupted := &scriptedFitter{perCall: func(call int, m *fit.Model) (*fit.Result, error) {
			if call == 3 {
				return nil, errors.New("power cut")
			}
			return walkingFitter().perCall(call, m)
		}}
		_, err = NewDriver(interrupted, WithCheckpoints(store)).
			FitSeries(ctx, seriesModel(), NewMemSource(flatFrames(5)), nil, nil)
		require.Error(t, err)
		require.True(t, store.Exists(2))
		require.False(t, store.Exists(3))

		// Restart run: frames 0-2 come from checkpoints, so the fitter must
		// only see frames 3 and 4. The walking fitter is re-scripted to
		// continue the drift from where the interruption happened.
		resumed := &scriptedFitter{perCall: func(call int, m *fit.Model) (*fit.Result, error) {
			return walkingFitter().perCall(call+3, m)
		}}
		m := seriesModel()
		results, err := NewDriver(resumed, WithCheckpoints(store), WithRestart(true)).
			FitSeries(ctx, m, NewMemSource(flatFrames(5)), nil, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, resumed.calls, "checkpointed frames must not be re-fit")

		// Checkpoint-loaded results advance the model but are not returned.
		assert.Len(t, results, 2)
		assert.Equal(t, 3, results[0].Frame)
		assert.Equal(t, 4, results[1].Frame)

		gotX, _ := m.Guess(fit.ParamCenterX)
		wantX, _ := reference.Guess(fit.ParamCenterX)
		assert.Equal(t, wantX, gotX, "restart must reproduce the uninterrupted final state")
	})

	t.Run("without restart existing checkpoints are overwritten by fresh fits", func(t *testing.T) {
		mem := fsutil.NewMemoryFileSystem()
		store := checkpoint.NewStoreFS(mem, "out")
		fitter := walkingFitter()

		_, err := NewDriver(fitter, WithCheckpoints(store)).
			FitSeries(ctx, seriesModel(), NewMemSource(flatFrames(2)), nil, nil)
		require.NoError(t, err)

		again := walkingFitter()
		results, err := NewDriver(again, WithCheckpoints(store)).
			FitSeries(ctx, seriesModel(), NewMemSource(flatFrames(2)), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, again.calls, "restart disabled: every frame is re-fit")
		assert.Len(t, results, 2)
	})
}

// observerSpy records driver measurement events.
type observerSpy struct {
	fitted      []int
	checkpoints []int
}

func (o *observerSpy) FrameFitted(i int, _ time.Duration) { o.fitted = append(o.fitted, i) }
func (o *observerSpy) CheckpointHit(i int)                { o.checkpoints = append(o.checkpoints, i) }

func TestFitSeriesObserver(t *testing.T) {
	ctx := context.Background()
	mem := fsutil.NewMemoryFileSystem()
	store := checkpoint.NewStoreFS(mem, "out")

	// Seed checkpoints for frames 0 and 1.
	_, err := NewDriver(walkingFitter(), WithCheckpoints(store)).
		FitSeries(ctx, seriesModel(), NewMemSource(flatFrames(2)), nil, nil)
	require.NoError(t, err)

	spy := &observerSpy{}
	resumed := &scriptedFitter{perCall: func(call int, m *fit.Model) (*fit.Result, error) {
		return walkingFitter().perCall(call+2, m)
	}}
	_, err = NewDriver(resumed, WithCheckpoints(store), WithRestart(true), WithObserver(spy)).
		FitSeries(ctx, seriesModel(), NewMemSource(flatFrames(4)), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, spy.checkpoints)
	assert.Equal(t, []int{2, 3}, spy.fitted)
}

func TestRunResolvesCalibrationFromPaths(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// A flat background on disk; frames in memory.
	bgFrame := flatFrames(1)[0]
	bgPath := filepath.Join(dir, "bg.png")
	require.NoError(t, image.Save(bgPath, bgFrame))

	var sawBG bool
	pre := func(frame, bg, df *image.Frame, m *fit.Model) (*image.Frame, error) {
		sawBG = bg != nil
		return DivNormalize(frame, nil, df, m)
	}

	d := NewDriver(walkingFitter(), WithPreprocess(pre))
	results, err := d.Run(ctx, seriesModel(), Request{
		Data:    Input{Frames: flatFrames(2)},
		Spacing: 0.1,
		BG:      CalSource{Path: bgPath},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.True(t, sawBG, "background path should be resolved into a frame")
}
