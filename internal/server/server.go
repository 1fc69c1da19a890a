// Package server exposes the HTTP API: chunked uploads, job submission and
// polling, word-level transcript queries, boundary edits and clip renders.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/forPelevin/podclip/internal/clips"
	"github.com/forPelevin/podclip/internal/config"
	"github.com/forPelevin/podclip/internal/domain/words"
	"github.com/forPelevin/podclip/internal/pipeline"
	"github.com/forPelevin/podclip/internal/store"
	"github.com/forPelevin/podclip/internal/upload"
)

type Server struct {
	cfg       config.Config
	jobs      *store.JobStore
	uploads   *upload.Manager
	pool      *pipeline.Pool
	renderer  *clips.Renderer
	wordCache *words.Cache
	log       *slog.Logger

	httpSrv *http.Server
}

func New(cfg config.Config, jobs *store.JobStore, uploads *upload.Manager, pool *pipeline.Pool, renderer *clips.Renderer, wordCache *words.Cache, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		jobs:      jobs,
		uploads:   uploads,
		pool:      pool,
		renderer:  renderer,
		wordCache: wordCache,
		log:       log,
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/chunked/initiate", s.handleInitiate).Methods(http.MethodPost)
	api.HandleFunc("/chunked/upload", s.handleUploadChunk).Methods(http.MethodPost)
	api.HandleFunc("/chunked/status/{id}", s.handleUploadStatus).Methods(http.MethodGet)
	api.HandleFunc("/chunked/complete", s.handleUploadComplete).Methods(http.MethodPost)
	api.HandleFunc("/chunked/abort", s.handleUploadAbort).Methods(http.MethodPost)

	api.HandleFunc("/jobs", s.handleCreateJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/words", s.handleJobWords).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/clips/{idx}/words", s.handleEditClip).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}/clips/{idx}/render", s.handleRenderClip).Methods(http.MethodPost)

	r.Use(s.logRequests)
	return r
}

func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", "addr", s.cfg.ListenAddr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}
