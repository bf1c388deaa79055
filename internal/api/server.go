package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/pagewise/internal/config"
	"github.com/dgallion1/pagewise/internal/llm"
	"github.com/dgallion1/pagewise/internal/pipeline"
	"github.com/dgallion1/pagewise/internal/session"
)

// Server is the HTTP API server for pagewise.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	sessions     *session.Manager
	stats        *llm.Stats
	gatherer     prometheus.Gatherer
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats and gatherer may
// be nil, which disables their endpoints.
func NewServer(orch *pipeline.Orchestrator, sessions *session.Manager, stats *llm.Stats, gatherer prometheus.Gatherer, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		sessions:     sessions,
		stats:        stats,
		gatherer:     gatherer,
		log:          log,
		cfg:          cfg,
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
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/guide", s.handleGuide)
		r.Get("/stats/llm", s.handleLLMStats)

		r.Post("/document", s.handleUpload)
		r.Get("/ingest/{jobID}/status", s.handleIngestStatus)

		r.Get("/document", s.handleDocument)
		r.Get("/document/pages/{page}", s.handlePageText)
		r.Get("/document/pages/{page}/image", s.handlePageImage)

		r.Get("/session", s.handleSession)
		r.Post("/session/page", s.handleGoToPage)
		r.Put("/session/selection", s.handleSelect)

		r.Post("/ask", s.handleAsk)
		r.Post("/answer/save", s.handleSaveAnswer)
		r.Post("/answer/dismiss", s.handleDismissAnswer)

		r.Get("/notes", s.handleListNotes)
		r.Post("/notes/highlight", s.handleHighlight)
		r.Delete("/notes/{position}", s.handleDeleteNote)
		r.Get("/notes/export", s.handleExportNotes)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
