package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nahidhasan98/whatsapp-bridge/internal/config"
	"github.com/nahidhasan98/whatsapp-bridge/internal/handlers"
	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
	"github.com/nahidhasan98/whatsapp-bridge/internal/middleware"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	middleware *middleware.Middleware
	log        *logger.Logger
}

// New creates a new HTTP server
func New(cfg *config.Config, handler *handlers.Handler, log *logger.Logger) *Server {
	mw := middleware.New(log, cfg.Server.RateLimit)
	mw.SetAPIKeys(cfg.Security.APIKeys)
	mw.SetAllowedOrigins(cfg.WebSocket.AllowedOrigins)

	return &Server{
		handler:    handler,
		middleware: mw,
		log:        log,
	}
}

// Routes builds the router with the middleware chain applied
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.middleware.Recovery)
	r.Use(s.middleware.Logging)
	r.Use(s.middleware.Security)
	r.Use(s.middleware.CORS)
	r.Use(s.middleware.RateLimit)

	r.Get("/health", s.handler.HealthCheck)
	r.Get("/status", s.handler.Status)
	r.Get("/ws", s.handler.WebSocket)

	// Operator routes only exist when API keys are configured
	if s.middleware.HasAPIKeys() {
		r.Route("/session", func(r chi.Router) {
			r.Use(s.middleware.APIKeyAuth)
			r.Post("/start", s.handler.StartSession)
			r.Post("/stop", s.handler.StopSession)
		})
	} else {
		s.log.Info("No API keys configured; operator session routes are disabled")
	}

	return r
}

// Start starts the HTTP server. Listen errors are reported on errChan.
func (s *Server) Start(cfg *config.Config, errChan chan<- error) {
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	s.log.Infof("HTTP server listening on %s", cfg.Server.Address())

	// Start server in a goroutine
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.log.Info("HTTP server shutdown complete")
	return nil
}
