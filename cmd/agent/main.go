package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/miss-electronics/proctor-agent/internal/config"
	"github.com/miss-electronics/proctor-agent/internal/gateway"
	"github.com/miss-electronics/proctor-agent/internal/handler"
	"github.com/miss-electronics/proctor-agent/internal/logger"
	"github.com/miss-electronics/proctor-agent/internal/router"
	"github.com/miss-electronics/proctor-agent/internal/session"
	"github.com/miss-electronics/proctor-agent/internal/store"
	"github.com/miss-electronics/proctor-agent/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("gateway", cfg.GatewayBaseURL).
		Str("log_level", cfg.LogLevel).
		Msg("Starting proctor agent")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Open Local Progress Store ─────────────────────────────────────
	progress, err := store.Open(cfg.StorePath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StorePath).Msg("Failed to open progress store")
	}

	// ─── Gateway Client ────────────────────────────────────────────────
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayTimeout, log)

	// ─── Session Machine ───────────────────────────────────────────────
	ctrl := session.New(cfg, gw, progress, log)
	monitor := session.NewMonitor(ctrl, cfg.ViolationDebounce, log)

	// ─── Handlers & Router ─────────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(ctrl, log),
		Events:  handler.NewEventsHandler(ctrl, monitor, log, cfg.AllowedOrigins),
	}
	r := router.SetupRouter(handlers, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Agent listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// An active session keeps its local mirror; the next start resumes it.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
