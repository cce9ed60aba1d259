package server

import (
	"context"
	"net/http"
	"time"

	"github.com/lumenlab/holofit/internal/logging"
)

// shutdownTimeout bounds graceful shutdown once the run context is canceled.
const shutdownTimeout = 5 * time.Second

// Server is the metrics HTTP server that accompanies a long series run. It
// serves /metrics and /healthz and nothing else.
type Server struct {
	addr     string
	metrics  *Metrics
	logger   logging.Logger
	security SecurityConfig
}

// Option configures a Server during construction.
type Option func(*Server)

// WithSecurity replaces the default security configuration.
func WithSecurity(config SecurityConfig) Option {
	return func(s *Server) { s.security = config }
}

// New creates a metrics server listening on addr.
func New(addr string, metrics *Metrics, logger logging.Logger, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		metrics:  metrics,
		logger:   logger,
		security: DefaultSecurityConfig(),
	}
	if s.logger == nil {
		s.logger = logging.NopLogger{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metrics returns the server's instrument set, for wiring into the fit loop.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler builds the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.metricsMiddleware(SecurityMiddleware(s.security, s.handleMetrics)))
	mux.HandleFunc("/healthz", s.metricsMiddleware(SecurityMiddleware(s.security, s.handleHealth)))
	return mux
}

// ListenAndServe runs the server until the context is canceled, then shuts it
// down gracefully. The error from a clean shutdown is nil.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server listening", logging.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("metrics server shutdown failed", err)
		return err
	}
	s.logger.Info("metrics server stopped")
	return nil
}

// metricsMiddleware tracks in-flight and total request counts around the next
// handler.
func (s *Server) metricsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.metrics.IncrementActiveRequests()
		defer s.metrics.DecrementActiveRequests()
		next(w, r)
	}
}

// handleMetrics serves the Prometheus exposition endpoint. Read-only.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.logger.Debug("rejected metrics request",
			logging.String("method", r.Method),
			logging.String("remote", r.RemoteAddr),
		)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.metrics.WritePrometheus(w, r)
}

// handleHealth is a liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
