package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/courier/internal/processor"
	"github.com/MikeSquared-Agency/courier/internal/store"
)

// Handler answers one conversation turn.
type Handler interface {
	Handle(ctx context.Context, req processor.Request) (*processor.Reply, error)
}

// UploadLister reads back the upload ledger.
type UploadLister interface {
	ListUploadRecords(ctx context.Context, requestID uuid.UUID) ([]store.UploadRow, error)
}

// FileDeleter removes files from the remote store.
type FileDeleter interface {
	Delete(ctx context.Context, id string) error
}

type Server struct {
	router  *chi.Mux
	port    int
	model   string
	handler Handler
	uploads UploadLister
	files   FileDeleter
	http    *http.Server
}

// NewServer builds the HTTP API. uploads may be nil when no ledger is
// configured.
func NewServer(port int, apiToken, model string, h Handler, uploads UploadLister, files FileDeleter) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		model:   model,
		handler: h,
		uploads: uploads,
		files:   files,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/courier/status", s.status)
	router.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/api/v1/courier/generate", s.generate)
		r.Get("/api/v1/courier/uploads/{requestID}", s.listUploads)
		r.Delete("/api/v1/courier/uploads/{requestID}", s.deleteUploads)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":  "courier",
		"model":  s.model,
		"ledger": s.uploads != nil,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
