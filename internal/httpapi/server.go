// Package httpapi exposes a small local control surface over the running
// session: inspect the active video's bookmarks, dump the whole store,
// and trigger exports without touching the page UI.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/vidmark/internal/export"
	"github.com/hazyhaar/vidmark/internal/store"
)

// Source is the session surface the API reads from. Implemented by
// *vidmark.Session.
type Source interface {
	ActiveID() string
	ActiveTitle() string
	ActiveBookmarks() []store.Bookmark
	Mapping(ctx context.Context) (map[string][]store.Bookmark, error)
	ExportActive(ctx context.Context) (export.Result, error)
	ExportStore(ctx context.Context) (export.Result, error)
}

// Server serves the control API.
type Server struct {
	src    Source
	logger *slog.Logger
	srv    *http.Server
}

// New creates a Server listening on addr.
func New(addr string, src Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{src: src, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/bookmarks", s.handleBookmarks)
		r.Get("/store", s.handleStore)
		r.Post("/export", s.handleExport)
		r.Post("/export/store", s.handleExportStore)
	})

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.srv.Shutdown(context.Background())
	}
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	id := s.src.ActiveID()
	if id == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active video"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"title":     s.src.ActiveTitle(),
		"bookmarks": s.src.ActiveBookmarks(),
	})
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	mapping, err := s.src.Mapping(r.Context())
	if err != nil {
		s.logger.Error("httpapi: read store", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read store failed"})
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.src.ExportActive(r.Context())
	switch {
	case errors.Is(err, export.ErrNoBookmarks):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no bookmarks to export"})
	case err != nil:
		s.logger.Error("httpapi: export", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleExportStore(w http.ResponseWriter, r *http.Request) {
	res, err := s.src.ExportStore(r.Context())
	if err != nil {
		s.logger.Error("httpapi: export store", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
