package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nahidhasan98/whatsapp-bridge/internal/app"
	"github.com/nahidhasan98/whatsapp-bridge/internal/broadcast"
	"github.com/nahidhasan98/whatsapp-bridge/internal/config"
	"github.com/nahidhasan98/whatsapp-bridge/internal/handlers"
	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
	"github.com/nahidhasan98/whatsapp-bridge/internal/router"
	"github.com/nahidhasan98/whatsapp-bridge/internal/server"
	"github.com/nahidhasan98/whatsapp-bridge/internal/session"
	"github.com/nahidhasan98/whatsapp-bridge/internal/validation"
)

// Global variables for configuration and services
var (
	cfg     *config.Config
	log     *logger.Logger
	factory *app.Factory
	hub     *broadcast.Broadcaster
	manager *session.Manager
	errChan = make(chan error, 2)
)

func main() {
	// Create a context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create a wait group for graceful shutdown
	var wg sync.WaitGroup

	// Initialize configuration and services
	if err := initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Initialization error: %v\n", err)
		os.Exit(1)
	}

	// Start the session manager
	startSessionManager(ctx, &wg)

	// Start the web server
	startWebServer(ctx, &wg)

	// Handle shutdown signals
	waitForShutdown(cancel, &wg)
}

func initialize(ctx context.Context) error {
	var err error

	// Load configuration
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Starting WhatsApp Bridge")

	// Open the device store
	factory, err = app.NewFactory(ctx, cfg.Database, cfg.WhatsApp, log)
	if err != nil {
		return fmt.Errorf("failed to create WhatsApp factory: %w", err)
	}

	hub = broadcast.New(log, cfg.WebSocket.WriteTimeout)
	manager = session.NewManager(factory.New, hub, log, session.Options{
		SettleDelay:    cfg.Session.SettleDelay,
		RestartBackoff: cfg.Session.RestartBackoff,
		MaxRestarts:    cfg.Session.MaxRestarts,
		DrainTimeout:   cfg.Session.DrainTimeout,
		MessageLimit:   cfg.Session.MessageLimit,
		MediaWorkers:   cfg.Media.DownloadWorkers,
		MediaTimeout:   cfg.Media.DownloadTimeout,
	})

	return nil
}

func startSessionManager(ctx context.Context, wg *sync.WaitGroup) {
	wg.Go(func() {
		defer func() {
			if err := factory.Close(); err != nil {
				log.Error("Failed to close device store", err)
			}
			log.Info("Session manager shutdown complete")
		}()

		if err := manager.Run(ctx); err != nil && ctx.Err() == nil {
			errChan <- fmt.Errorf("session manager stopped: %w", err)
		}
	})

	if !cfg.WhatsApp.AutoStart {
		log.Info("Auto start disabled; waiting for a connect command")
		return
	}

	wg.Go(func() {
		log.Info("Starting WhatsApp session...")
		if err := manager.Connect(ctx); err != nil && ctx.Err() == nil {
			log.Error("Failed to start WhatsApp session", err)
		}
	})
}

func startWebServer(ctx context.Context, wg *sync.WaitGroup) {
	wg.Go(func() {
		log.Info("Starting HTTP server...")

		// Initialize HTTP handlers
		commands := router.New(manager, hub, validation.New(cfg.Media.MaxBytes), log)
		httpHandler := handlers.New(manager, hub, commands, cfg.WebSocket, log)

		// Initialize and start HTTP server
		httpServer := server.New(cfg, httpHandler, log)
		httpServer.Start(cfg, errChan)

		// Keep the server running until shutdown
		<-ctx.Done()
		log.Info("HTTP server shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during HTTP server shutdown", err)
		}
	})
}

func waitForShutdown(cancel context.CancelFunc, wg *sync.WaitGroup) {
	// Wait for either service to fail or for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Error("Service failed", err)
	case <-sigChan:
		log.Info("Received shutdown signal")
	}

	// Cancel context to signal goroutines to shutdown
	cancel()

	// Wait for all goroutines to finish
	wg.Wait()

	log.Info("Application stopped")
}
