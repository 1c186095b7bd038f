// Package server exposes the graph pipeline over HTTP.
//
// The API builds graph snapshots on request and serves previously built
// ones by ID:
//
//	POST   /api/v1/graphs        build a graph and store a snapshot
//	GET    /api/v1/graphs        list recent snapshots
//	GET    /api/v1/graphs/{id}   fetch a snapshot
//	GET    /api/v1/graphs/{id}/dot  fetch a snapshot as DOT
//	DELETE /api/v1/graphs/{id}   delete a snapshot
//	GET    /healthz              liveness check
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/depwalk/pkg/pipeline"
	"github.com/matzehuels/depwalk/pkg/store"
)

const shutdownTimeout = 10 * time.Second

// Executor runs the graph pipeline. *pipeline.Runner implements it.
type Executor interface {
	Execute(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// Server handles API requests.
type Server struct {
	exec   Executor
	store  store.Store
	logger *log.Logger
}

// New creates a Server. If st is nil, snapshots are kept in memory.
func New(exec Executor, st store.Store, logger *log.Logger) *Server {
	if st == nil {
		st = store.NewMemoryStore()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{exec: exec, store: st, logger: logger}
}

// Router builds the HTTP route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/graphs", func(r chi.Router) {
			r.Post("/", s.handleBuild)
			r.Get("/", s.handleList)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Get("/dot", s.handleGetDOT)
				r.Delete("/", s.handleDelete)
			})
		})
	})
	return r
}

// ListenAndServe serves the API until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	s.logger.Info("api listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}
