package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videoDigest/config"
	"videoDigest/core"
	"videoDigest/processors"
	"videoDigest/storage"
)

// Server exposes the pipeline and the search index over HTTP.
type Server struct {
	cfg      *config.Config
	pipeline *processors.Pipeline
	store    storage.VectorStore

	mu        sync.RWMutex
	artifacts map[string]*core.SummaryArtifact
}

func New(cfg *config.Config, pipeline *processors.Pipeline, store storage.VectorStore) *Server {
	return &Server{
		cfg:       cfg,
		pipeline:  pipeline,
		store:     store,
		artifacts: make(map[string]*core.SummaryArtifact),
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/process-video", s.logged(s.handleProcessVideo))
	mux.HandleFunc("/artifact", s.logged(s.handleArtifact))
	mux.HandleFunc("/query", s.logged(s.handleQuery))
	mux.HandleFunc("/health", s.logged(s.handleHealth))
	return mux
}

// logged tags each request with a correlation id and logs its completion.
func (s *Server) logged(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()
		w.Header().Set("X-Request-ID", requestID)
		next(w, r)
		config.Log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"elapsed":    time.Since(start).Round(time.Millisecond).String(),
		}).Info("request handled")
	}
}

// Run serves until the listener fails or ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.routes(),
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	config.Log.WithField("addr", srv.Addr).Info("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) remember(artifact *core.SummaryArtifact) {
	s.mu.Lock()
	s.artifacts[artifact.VideoID] = artifact
	s.mu.Unlock()
}

func (s *Server) lookup(videoID string) *core.SummaryArtifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifacts[videoID]
}
