package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/simp-lee/epubsplit"
	"github.com/simp-lee/epubsplit/internal/config"
)

// Server is the HTTP API for epubsplit.
type Server struct {
	router chi.Router
	conv   *epubsplit.Converter
	log    *zap.Logger
	cfg    config.ServerConfig
}

// New creates and configures the HTTP server.
func New(conv *epubsplit.Converter, log *zap.Logger, cfg config.ServerConfig) *Server {
	s := &Server{
		conv: conv,
		log:  log,
		cfg:  cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/convert", s.handleConvert)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
