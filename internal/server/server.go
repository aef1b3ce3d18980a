package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/audit"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/config"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/engine"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/events"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/logger"
)

// Server exposes the anonymization engine over HTTP.
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	engine  *engine.Engine
	hub     *events.Hub
	audit   *audit.Store
	router  *mux.Router
	server  *http.Server
	limiter *clientLimiter
}

// New creates the HTTP server. auditStore may be nil when auditing is
// disabled.
func New(cfg *config.Config, log *logger.Logger, eng *engine.Engine, hub *events.Hub, auditStore *audit.Store) *Server {
	router := mux.NewRouter()

	s := &Server{
		config:  cfg,
		logger:  log.WithComponent("server"),
		engine:  eng,
		hub:     hub,
		audit:   auditStore,
		router:  router,
		limiter: newClientLimiter(cfg.Server.RateLimit.RequestsPerMin, cfg.Server.RateLimit.Burst),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health and info endpoints stay outside the rate limit so orchestrators
	// are never throttled.
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// WebSocket endpoint for the event stream.
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.requestIDMiddleware)
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/deanonymize", s.handleDeanonymize).Methods("POST")
	api.HandleFunc("/mappings/{id}", s.handleDeleteMapping).Methods("DELETE")
	api.HandleFunc("/detect/stats", s.handleDetectStats).Methods("POST")
}

// Router returns the configured router. Used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and the event hub.
func (s *Server) Start() error {
	s.logger.Info("Starting anonymization proxy server",
		zap.Int("port", s.config.Server.Port),
		zap.String("strategy", s.config.Engine.Strategy),
		zap.String("storage", s.config.Engine.Storage),
		zap.Bool("rate_limit", s.config.Server.RateLimit.Enabled),
	)

	go s.hub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping anonymization proxy server")
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// handleWebSocket hands the connection to the event hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}
