package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	hr "github.com/julienschmidt/httprouter"
	"igloader/pkg/config"
	"igloader/pkg/logger"
	"igloader/pkg/metrics"
	"igloader/pkg/retrieval"
)

const (
	// DownloadPostRoute retrieves a single post
	DownloadPostRoute = "/api/v1/download/post"
	// HealthRoute is the liveness probe
	HealthRoute = "/health"
	// MetricsRoute exposes Prometheus metrics when enabled
	MetricsRoute = "/metrics"
)

const (
	defaultMaxBodyBytes    = 64 << 10
	defaultShutdownTimeout = 15 * time.Second
)

// metricsExporter is implemented by recorders that can serve their registry
type metricsExporter interface {
	Handler() http.Handler
}

// Server serves the download API
type Server struct {
	cfg       config.ServerConfig
	baseDir   string
	retriever retrieval.Retriever
	logger    logger.Logger
	metrics   metrics.Recorder
	router    *hr.Router
}

// NewServer wires the routes around retriever. Files are written below
// cfg.Output.BaseDirectory. rec may be nil.
func NewServer(cfg *config.Config, retriever retrieval.Retriever, log logger.Logger, rec metrics.Recorder) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	if rec == nil {
		rec = metrics.Noop{}
	}

	serverCfg := cfg.Server
	if serverCfg.MaxBodyBytes <= 0 {
		serverCfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if serverCfg.ShutdownTimeout <= 0 {
		serverCfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		cfg:       serverCfg,
		baseDir:   cfg.Output.BaseDirectory,
		retriever: retriever,
		logger:    log.WithField("component", "api"),
		metrics:   rec,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := hr.New()
	r.HandleMethodNotAllowed = true
	r.RedirectTrailingSlash = false

	r.POST(DownloadPostRoute, s.wrap(DownloadPostRoute, s.handleDownloadPost))
	r.GET(HealthRoute, s.wrap(HealthRoute, s.handleHealth))

	if exporter, ok := s.metrics.(metricsExporter); ok && s.cfg.MetricsEnabled {
		h := exporter.Handler()
		r.GET(MetricsRoute, s.wrap(MetricsRoute, func(w http.ResponseWriter, req *http.Request, _ hr.Params) {
			h.ServeHTTP(w, req)
		}))
	}

	r.NotFound = s.fallback("unmatched", http.StatusNotFound, "Not Found")
	r.MethodNotAllowed = s.fallback("unmatched", http.StatusMethodNotAllowed, "Method Not Allowed")

	s.router = r
}

// wrap applies the common middleware to a route handle
func (s *Server) wrap(route string, h hr.Handle) hr.Handle {
	return Chain(h,
		PanicRecoverer(s.logger),
		Instrument(route, s.logger, s.metrics),
		RequestID(),
	)
}

func (s *Server) fallback(route string, status int, detail string) http.Handler {
	h := s.wrap(route, func(w http.ResponseWriter, _ *http.Request, _ hr.Params) {
		writeJSON(w, status, ErrorResponse{Detail: detail})
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, r, nil)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is done,
// then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	logger.LogComponentStart(s.logger, "http_server", map[string]interface{}{
		"addr":     ln.Addr().String(),
		"base_dir": s.baseDir,
		"metrics":  s.cfg.MetricsEnabled,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	logger.LogComponentStop(s.logger, "http_server", "shutdown requested")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
