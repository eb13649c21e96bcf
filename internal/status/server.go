// Package status serves the progress of a bootstrap run over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leafsii/reserve-bootstrap/internal/pipeline"
	"go.uber.org/zap"
)

// Source reports the snapshot of the current run, if any.
type Source interface {
	Progress() (pipeline.Snapshot, bool)
}

type Server struct {
	source  Source
	metrics http.Handler
	logger  *zap.SugaredLogger
}

// New builds a status server. metrics may be nil.
func New(source Source, metrics http.Handler, logger *zap.SugaredLogger) *Server {
	return &Server{source: source, metrics: metrics, logger: logger}
}

func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.healthz)
	r.Route("/status", func(r chi.Router) {
		r.Get("/", s.status)
		r.Get("/failed", s.failed)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.logger.Debugw("status request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.source.Progress()
	if !ok {
		s.writeError(w, http.StatusNotFound, "NO_RUN", "no bootstrap run has started")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) failed(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.source.Progress()
	if !ok {
		s.writeError(w, http.StatusNotFound, "NO_RUN", "no bootstrap run has started")
		return
	}
	failed := make([]pipeline.StepResult, 0)
	for _, step := range snap.Steps {
		if step.Outcome == pipeline.OutcomeFailed {
			failed = append(failed, step)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run_id": snap.RunID, "failed": failed})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warnw("failed to encode status response", "error", err)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
