// Anchor - realtime mental health companion server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/anchor-live/internal/agent"
	"github.com/ashureev/anchor-live/internal/api"
	"github.com/ashureev/anchor-live/internal/config"
	"github.com/ashureev/anchor-live/internal/llm"
	"github.com/ashureev/anchor-live/internal/middleware"
	"github.com/ashureev/anchor-live/internal/store"
	"github.com/ashureev/anchor-live/internal/stream"
	"github.com/ashureev/anchor-live/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session ledger connected")

	agentClient := agent.NewClient(agent.Settings{
		BaseURL:      cfg.RTC.BaseURL,
		AppID:        cfg.RTC.AppID,
		RESTKey:      cfg.RTC.RESTKey,
		RESTSecret:   cfg.RTC.RESTSecret,
		IdleTimeout:  cfg.RTC.IdleTimeout,
		ASRLanguage:  "en-US",
		LLMURL:       cfg.LLM.URL,
		LLMKey:       cfg.LLM.APIKey,
		LLMModel:     cfg.LLM.Model,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Greeting:     cfg.LLM.Greeting,
		TTSURL:       cfg.TTS.URL,
		TTSGroupID:   cfg.TTS.GroupID,
		TTSKey:       cfg.TTS.APIKey,
		TTSModel:     cfg.TTS.Model,
		TTSVoiceID:   cfg.TTS.VoiceID,
		AvatarKey:    cfg.Avatar.APIKey,
		AvatarID:     cfg.Avatar.AvatarID,
	}, logger)

	llmClient := llm.NewClient(cfg.LLM.URL, cfg.LLM.APIKey, cfg.LLM.Model,
		llm.WithSystemPrompt(llm.DefaultSystemPrompt))

	// Initialize handlers.
	relayHandler := api.NewRelayHandler(cfg, agentClient, llmClient)
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := stream.NewHandler(cfg, agentClient, llmClient, repo, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS([]string{"*"}))

	// Public routes.
	healthHandler.RegisterHealth(r)
	relayHandler.RegisterRoutes(r)

	// WebSocket session endpoint.
	r.Get("/ws/live", wsHandler.ServeHTTP)

	// Serve embedded frontend.
	r.Handle("/*", web.Handler())

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// WebSocket sessions are long-lived; no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
