package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepnest/exam-engine/internal/auth"
	"github.com/prepnest/exam-engine/internal/codexec"
	"github.com/prepnest/exam-engine/internal/config"
	"github.com/prepnest/exam-engine/internal/database"
	"github.com/prepnest/exam-engine/internal/handler"
	"github.com/prepnest/exam-engine/internal/logger"
	"github.com/prepnest/exam-engine/internal/router"
	"github.com/prepnest/exam-engine/internal/session"
	"github.com/prepnest/exam-engine/internal/upstream"
	"github.com/prepnest/exam-engine/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Exam Session Engine")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis (optional exam cache) ────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// ─── Initialize Upstream Clients ───────────────────────────────────
	upstreamHTTP := &http.Client{Timeout: cfg.UpstreamTimeout}
	runnerHTTP := &http.Client{Timeout: cfg.RunTimeout}

	examSource := upstream.NewExamSource(cfg.ExamSourceURL, upstreamHTTP, rdb, cfg.ExamCacheTTL, log)
	timeAuthority := upstream.NewTimeAuthority(cfg.TimeAuthorityURL, upstreamHTTP)
	runner := codexec.NewClient(cfg.CodeRunnerURL, runnerHTTP, log)
	sink := upstream.NewSubmissionClient(cfg.SubmissionURL, upstreamHTTP, log)

	// ─── Initialize Session Registry ───────────────────────────────────
	registry := session.NewRegistry(session.Deps{
		ExamSource: examSource,
		TimeSource: timeAuthority,
		Runner:     runner,
		Sink:       sink,
	}, log)

	// ─── Prewarm Exam Cache ────────────────────────────────────────────
	// Load configured exams into Redis before accepting traffic.
	if len(cfg.PrewarmExamIDs) > 0 {
		examSource.Prewarm(ctx, cfg.PrewarmExamIDs, cfg.ExamCollection)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	verifier := auth.NewVerifier(cfg.JWTSecret)
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(registry, cfg),
		WS:      handler.NewWSHandler(registry, log, cfg.AllowedOrigins),
	}
	r := router.SetupRouter(verifier, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Int("live_sessions", registry.Len()).Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
