package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/config"
	"github.com/arstate/FAFA-BIMBEL/internal/database"
	"github.com/arstate/FAFA-BIMBEL/internal/feedback"
	"github.com/arstate/FAFA-BIMBEL/internal/handler"
	"github.com/arstate/FAFA-BIMBEL/internal/logger"
	"github.com/arstate/FAFA-BIMBEL/internal/presence"
	"github.com/arstate/FAFA-BIMBEL/internal/router"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"github.com/arstate/FAFA-BIMBEL/internal/validator"
	ws "github.com/arstate/FAFA-BIMBEL/internal/websocket"
	"github.com/arstate/FAFA-BIMBEL/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreBackend).
		Str("log_level", cfg.LogLevel).
		Msg("Starting FAFA Bimbel backend")

	if err := presence.CheckTTL(cfg.PresenceTTL, ws.PingPeriod); err != nil {
		log.Fatal().Err(err).Msg("Invalid PRESENCE_TTL_SECONDS")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerCtx, workerCancel := context.WithCancel(context.Background())

	// ─── Content Store + Presence Registry ─────────────────────────────
	var (
		contentStore store.Store
		registry     presence.Registry
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		contentStore = store.NewMemoryStore(log)
		registry = presence.NewMemoryRegistry(cfg.PresenceTTL)

	default:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		pgStore := store.NewPostgresStore(pool, rdb, log)
		go func() {
			if err := pgStore.Listen(workerCtx); err != nil && workerCtx.Err() == nil {
				log.Error().Err(err).Msg("Store change feed stopped")
			}
		}()
		contentStore = pgStore
		registry = presence.NewRedisRegistry(rdb, cfg.PresenceTTL)
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	settingService := service.NewSettingService(contentStore, log)
	contentService := service.NewContentService(contentStore, log)
	userService := service.NewUserService(contentStore, authService, log)
	commentService := service.NewCommentService(contentStore, contentService, log)

	assessor := feedback.NewGeminiAssessor(
		settingService,
		feedback.NewGenaiGenerator(cfg.AIModel),
		cfg.AITimeout,
		log,
	)
	quizService := service.NewQuizSessionService(contentStore, contentService, assessor, cfg.QuizDefaultDuration, log)

	tracker := presence.NewTracker(contentStore, registry, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, userService, log),
		StudentPortal: handler.NewStudentPortalHandler(userService, contentService, quizService, log),
		StudentMgmt:   handler.NewStudentManagementHandler(userService, log),
		Class:         handler.NewClassHandler(contentService, log),
		Comment:       handler.NewCommentHandler(commentService, log),
		Setting:       handler.NewSettingHandler(settingService, log),
		Monitor:       handler.NewMonitorHandler(contentStore, contentService, quizService, log),
		WS:            handler.NewWSHandler(quizService, commentService, tracker, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	sweeper := worker.NewPresenceSweeper(tracker, cfg.PresenceSweepInterval, log)
	go sweeper.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, userService, handlers, cfg)

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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop quiz countdowns. Running attempts are not submitted.
	quizService.StopAll()

	// 3. Stop background workers and the change feed.
	workerCancel()

	log.Info().Msg("Shutdown complete")
}
