package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Pougar/upreview/internal/dashboard"
	"github.com/Pougar/upreview/internal/events"
	"github.com/Pougar/upreview/internal/excerpt"
	"github.com/Pougar/upreview/internal/phrase"
	"github.com/Pougar/upreview/internal/store"
)

type Server struct {
	router    *chi.Mux
	port      int
	extractor *phrase.Extractor
	generator *excerpt.Generator
	dashboard *dashboard.Service
	store     *store.Store
	events    *events.Client // nil when NATS is not configured
	logger    *slog.Logger
}

func NewServer(port int, apiToken string, ext *phrase.Extractor, gen *excerpt.Generator, dash *dashboard.Service, st *store.Store, ev *events.Client, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		port:      port,
		extractor: ext,
		generator: gen,
		dashboard: dash,
		store:     st,
		events:    ev,
		logger:    logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/upreview/status", s.status)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1/pipeline", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/extract-phrases", s.extractPhrases)
		r.Post("/generate-excerpts", s.generateExcerpts)
		r.Post("/suggest-phrases", s.suggestPhrases)
		r.Post("/phrases", s.listPhrases)
		r.Post("/phrases/add", s.addPhrase)
		r.Post("/phrases/delete", s.deletePhrase)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"service": "upreview",
		"status":  "ready",
	})
}
