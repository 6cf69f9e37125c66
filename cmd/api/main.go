// Package main is the entry point for the messaging API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/deskfront/messaging-core/internal/composer"
	"github.com/deskfront/messaging-core/internal/config"
	"github.com/deskfront/messaging-core/internal/directory"
	"github.com/deskfront/messaging-core/internal/handler"
	"github.com/deskfront/messaging-core/internal/live"
	"github.com/deskfront/messaging-core/internal/middleware"
	"github.com/deskfront/messaging-core/internal/remote"
	"github.com/deskfront/messaging-core/internal/service"
	"github.com/deskfront/messaging-core/pkg/logger"
	"github.com/deskfront/messaging-core/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting messaging API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "messaging-core", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Backend resource clients
	backend := remote.NewClient(remote.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Token:   func() string { return cfg.BackendToken },
	}, log)
	threadAPI := remote.NewThreadClient(backend)
	dir := directory.New(remote.NewDirectoryClient(backend), log)

	// Transcription client (optional)
	var transcriber *composer.Transcriber
	if cfg.OpenAIAPIKey != "" {
		transcriber, err = composer.NewTranscriber(cfg.OpenAIAPIKey, cfg.TranscriptionModel, log)
		if err != nil {
			log.Warn("failed to create transcriber, audio disabled", zap.Error(err))
		}
	}

	// Session manager owns per-user stores and push channels
	sessions := service.NewSessionManager(threadAPI, dir, live.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, transcriber, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler()
	threadHandler := handler.NewThreadHandler(sessions, log)
	messageHandler := handler.NewMessageHandler(sessions, log)
	participantHandler := handler.NewParticipantHandler(sessions, log)
	audioHandler := handler.NewAudioHandler(transcriber, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/threads", func(r chi.Router) {
			r.Get("/", threadHandler.List)
			r.Get("/current", threadHandler.Current)

			r.Route("/{key}", func(r chi.Router) {
				r.Post("/open", threadHandler.Open)
				r.Post("/select", threadHandler.Select)
				r.Post("/seen", threadHandler.MarkSeen)
			})
		})

		r.Post("/messages", messageHandler.Send)
		r.Get("/participants/search", participantHandler.Search)
		r.Post("/audio/transcribe", audioHandler.Transcribe)
		r.Post("/session/signout", threadHandler.SignOut)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
