package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/creditx-oss/creditx/internal/batch"
	"github.com/creditx-oss/creditx/internal/domain"
	"github.com/creditx-oss/creditx/internal/weights"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, store *weights.Store, aggregator *batch.Aggregator, source weights.Source, version string) *Server {
	handler := NewHandler(repo, cache, bus, store, aggregator, source, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// System endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Get("/version", handler.Version)
	router.Get("/config/current", handler.ConfigCurrent)

	// Underwriting triage
	router.Route("/triage", func(r chi.Router) {
		r.Post("/underwriting", handler.TriageUnderwriting)
		r.Post("/underwriting/csv", handler.TriageUnderwritingCSV)
	})

	// Renewal prioritization
	router.Route("/renewals", func(r chi.Router) {
		r.Post("/priority", handler.RenewalsPriority)
		r.Post("/priority/csv", handler.RenewalsPriorityCSV)
	})

	// Pricing
	router.Post("/pricing/suggest", handler.PricingSuggest)

	// Policy coverage validation
	router.Post("/policy/check", handler.PolicyCheck)

	// Admin
	router.Route("/admin", func(r chi.Router) {
		r.Post("/reload-weights", handler.ReloadWeights)
		r.Get("/weights", handler.ListWeightsVersions)
		r.Get("/audits", handler.ListBatchAudits)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
