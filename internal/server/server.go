// Package server exposes dashboards over HTTP as JSON.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/dashloom/internal/dashboard"
)

// Config wires a Server.
type Config struct {
	Datasets  []*dashboard.Dataset
	AssetsDir string
	// RowLimit caps /rows responses; requests may ask for less.
	RowLimit int
	Logger   logrus.FieldLogger
	Metrics  *Metrics
}

// Server serves the loaded datasets. It holds no per-request state.
type Server struct {
	datasets  map[string]*dashboard.Dataset
	names     []string
	assetsDir string
	rowLimit  int
	log       logrus.FieldLogger
	metrics   *Metrics
	router    chi.Router
}

// New builds a Server and its routes. Datasets must have been opened with
// Metrics as their Recorder for refresh metrics to appear.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = 1000
	}
	s := &Server{
		datasets:  make(map[string]*dashboard.Dataset, len(cfg.Datasets)),
		assetsDir: cfg.AssetsDir,
		rowLimit:  cfg.RowLimit,
		log:       cfg.Logger.WithField("component", "server"),
		metrics:   cfg.Metrics,
	}
	for _, d := range cfg.Datasets {
		name := d.Definition().Name
		if _, dup := s.datasets[name]; dup {
			return nil, fmt.Errorf("dataset %s loaded twice", name)
		}
		s.datasets[name] = d
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/datasets", s.handleDatasets)
		r.Route("/datasets/{name}", func(r chi.Router) {
			r.Get("/options", s.handleOptions)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/rows", s.handleRows)
		})
		r.Get("/assets/{name}", s.handleAsset)
	})
	return r
}

// observe logs each request and records HTTP metrics by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.observeHTTP(route, r.Method, status, elapsed)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"bytes":      ww.BytesWritten(),
			"duration":   elapsed.String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
