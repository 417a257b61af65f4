// Package server is the HTTP boundary: request validation, the single-shot
// and streaming chat endpoints, health and metrics. Each chat request gets a
// fresh agent bound to the request's session key, user id and persona id, so
// per-conversation state never outlives the request.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ezralim/compere/internal/config"
	"github.com/ezralim/compere/internal/observability"
	"github.com/ezralim/compere/pkg/agent"
	"github.com/ezralim/compere/pkg/store"
)

// Config holds everything the server needs to accept chat traffic.
type Config struct {
	HTTP  config.ServerConfig
	Agent config.AgentConfig
	Model config.ModelConfig

	Store    *store.Store
	Provider agent.Provider
	// Rules is optional; agents fall back to the built-in defaults.
	Rules  agent.RuleSource
	Logger zerolog.Logger
}

// Server is the HTTP front of the service.
type Server struct {
	cfg      Config
	logger   zerolog.Logger
	server   *http.Server
	upgrader websocket.Upgrader

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer validates the configuration and builds the server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.HTTP.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.HTTP.Port)
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("provider is required")
	}

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}, nil
}

// Router assembles the HTTP routes. Exposed so tests can drive the handlers
// without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", observability.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
		r.Get("/chat/ws", s.handleChatWS)
	})

	return r
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.HTTP.Host, s.cfg.HTTP.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
