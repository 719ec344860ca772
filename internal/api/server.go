package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/doctriage/internal/config"
	"github.com/dgallion1/doctriage/internal/nlp"
	"github.com/dgallion1/doctriage/internal/pipeline"
)

// BackendStats names a model-backed capability whose call latencies are
// reported by /api/stats/llm.
type BackendStats struct {
	Name  string
	Model string
	Stats *nlp.LatencyStats
}

// Server is the HTTP API server for doctriage.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	backends     []BackendStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, backends []BackendStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		backends:     backends,
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
	r.Use(accessLog(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey(s.cfg.APIKey, s.log))

		r.Post("/api/triage", s.handleTriage)
		r.Get("/api/triage/{jobID}", s.handleTriageStatus)
		r.Get("/api/triage/{jobID}/output", s.handleTriageOutput)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
