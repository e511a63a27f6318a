// Package server exposes the concretizer over HTTP.
//
// Routes:
//
//	POST /v1/concretize        solve a request, returns the lock and artifacts
//	GET  /v1/packages          list known packages
//	GET  /v1/packages/{name}   show the facts of one package
//	GET  /healthz              build information
//	GET  /metrics              Prometheus metrics
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/stacksolve/pkg/pipeline"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 1 << 20

// Server serves a shared pipeline runner.
type Server struct {
	runner *pipeline.Runner
	base   pipeline.Options
	logger *log.Logger

	router     chi.Router
	httpServer *http.Server
}

// New creates a server. Requests start from base, so configured policy
// applies to every field a request leaves out. gatherer backs /metrics; nil
// means the default registry.
func New(runner *pipeline.Runner, base pipeline.Options, gatherer prometheus.Gatherer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{runner: runner, base: base, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Post("/concretize", s.handleConcretize)
		r.Get("/packages", s.handlePackages)
		r.Get("/packages/{name}", s.handlePackage)
	})
	s.router = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting API server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
