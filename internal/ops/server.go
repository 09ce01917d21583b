// Package ops serves the operational HTTP endpoints: health and Prometheus metrics.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/lifeweeks/core/buildinfo"
	"github.com/m3rciful/lifeweeks/core/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is a named dependency probed by /healthz.
type Check struct {
	Name   string
	Pinger Pinger
}

// Options configures the ops server.
type Options struct {
	Listen   string
	Gatherer prometheus.Gatherer
	Checks   []Check
	// CheckTimeout bounds each health probe; 0 means 2s.
	CheckTimeout time.Duration
}

// Server exposes /healthz and /metrics.
type Server struct {
	opts Options
	srv  *http.Server
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Build  buildinfo.Info    `json:"build"`
}

// New builds the server; nothing listens until Start.
func New(opts Options) *Server {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 2 * time.Second
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{opts: opts}
	s.srv = &http.Server{
		Addr:              opts.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router returns the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Build: buildinfo.Current()}
	code := http.StatusOK
	if len(s.opts.Checks) > 0 {
		resp.Checks = make(map[string]string, len(s.opts.Checks))
	}
	for _, c := range s.opts.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.CheckTimeout)
		err := c.Pinger.Ping(ctx)
		cancel()
		if err != nil {
			resp.Status = "degraded"
			resp.Checks[c.Name] = "fail"
			code = http.StatusServiceUnavailable
			logger.LogEvent(r.Context(), logger.OPS, slog.LevelWarn, "health.check_failed",
				slog.String("check", c.Name),
				slog.String("status", logger.Status(err)),
				slog.String("err", err.Error()),
			)
			continue
		}
		resp.Checks[c.Name] = "ok"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Start listens in the background. An empty Listen address disables the server.
func (s *Server) Start() error {
	if s.opts.Listen == "" {
		return nil
	}
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	logger.OPS.Info("ops server listening", slog.String("event", "ops.listen"), slog.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.OPS.Error("ops server stopped", slog.String("event", "ops.serve_failed"), slog.String("err", err.Error()))
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.opts.Listen == "" {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
