package app

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/lumenlab/holofit/internal/config"
	apperrors "github.com/lumenlab/holofit/internal/errors"
	"github.com/lumenlab/holofit/internal/fit"
	"github.com/lumenlab/holofit/internal/logging"
	"github.com/lumenlab/holofit/internal/server"
)

// Application represents the holofit application instance.
type Application struct {
	Config config.AppConfig
	// Fitter is the external single-frame optimizer. When nil only the
	// inspection, preprocessing and archive modes are available.
	Fitter fit.Fitter
	// Model is the starting model for a series fit. Required with Fitter.
	Model     *fit.Model
	ErrWriter io.Writer

	logger logging.Logger
}

// AppOption configures an Application during construction.
type AppOption func(*Application)

// WithFitter installs an external fitter, enabling the series fit mode.
func WithFitter(f fit.Fitter) AppOption {
	return func(a *Application) { a.Fitter = f }
}

// WithModel sets the starting model for a series fit.
func WithModel(m *fit.Model) AppOption {
	return func(a *Application) { a.Model = m }
}

// New creates a new Application instance by parsing command-line arguments.
func New(args []string, errWriter io.Writer, opts ...AppOption) (*Application, error) {
	app := &Application{ErrWriter: errWriter}
	for _, opt := range opts {
		opt(app)
	}

	programName := "holofit"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter)
	if err != nil {
		return nil, err
	}

	app.Config = cfg
	app.logger = logging.NewLogger(errWriter, "app")
	return app, nil
}

// Run executes the application based on the configured mode and returns the
// process exit code.
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	switch {
	case a.Config.Verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case a.Config.Quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, a.Config.Timeout)
	defer cancelTimeout()
	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	if err := a.expandDataGlob(); err != nil {
		return a.fail(err)
	}

	metrics := a.startMetricsServer(ctx)

	switch {
	case a.Config.BuildArchive != "":
		return a.runBuildArchive(ctx, out)
	case a.Config.Preprocess:
		return a.runPreprocess(ctx, out)
	case a.Fitter != nil:
		return a.runFitSeries(ctx, out, metrics)
	default:
		return a.runInspect(ctx, out)
	}
}

// expandDataGlob resolves the -data glob pattern into concrete frame paths,
// sorted so the frame order is deterministic.
func (a *Application) expandDataGlob() error {
	if a.Config.DataGlob == "" {
		return nil
	}
	matches, err := filepath.Glob(a.Config.DataGlob)
	if err != nil {
		return apperrors.NewConfigError("bad -data pattern %q: %v", a.Config.DataGlob, err)
	}
	if len(matches) == 0 && len(a.Config.Data) == 0 {
		return apperrors.NewConfigError("-data pattern %q matched no files", a.Config.DataGlob)
	}
	sort.Strings(matches)
	a.Config.Data = append(a.Config.Data, matches...)
	return nil
}

// startMetricsServer starts the Prometheus endpoint when configured and
// returns its instrument set, or nil when metrics are disabled.
func (a *Application) startMetricsServer(ctx context.Context) *server.Metrics {
	if a.Config.MetricsAddr == "" {
		return nil
	}
	metrics := server.NewMetrics()
	srv := server.New(a.Config.MetricsAddr, metrics, a.logger)
	go func() {
		if err := srv.ListenAndServe(ctx); err != nil {
			a.logger.Error("metrics server failed", err)
		}
	}()
	return metrics
}

// fail logs the error and converts it to a process exit code.
func (a *Application) fail(err error) int {
	a.logger.Error("run failed", err)
	return exitCode(err)
}

// exitCode maps an error to the process exit code contract.
func exitCode(err error) int {
	var (
		configErr apperrors.ConfigError
		fitErr    apperrors.FitError
		pathErr   *fs.PathError
	)
	switch {
	case err == nil:
		return apperrors.ExitSuccess
	case apperrors.IsContextError(err):
		return apperrors.ExitErrorCanceled
	case errors.As(err, &configErr):
		return apperrors.ExitErrorConfig
	case errors.As(err, &fitErr):
		return apperrors.ExitErrorFit
	case errors.As(err, &pathErr):
		return apperrors.ExitErrorIO
	default:
		return apperrors.ExitErrorGeneric
	}
}

// IsHelpError checks if the error is a help flag error (--help was used).
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
