package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/archprep/mockportal-backend/internal/config"
	"github.com/archprep/mockportal-backend/internal/database"
	"github.com/archprep/mockportal-backend/internal/handler"
	"github.com/archprep/mockportal-backend/internal/logger"
	"github.com/archprep/mockportal-backend/internal/repository"
	"github.com/archprep/mockportal-backend/internal/router"
	"github.com/archprep/mockportal-backend/internal/service"
	"github.com/archprep/mockportal-backend/internal/store"
	"github.com/archprep/mockportal-backend/internal/validator"
	"github.com/archprep/mockportal-backend/internal/worker"
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
		Msg("Starting MockPortal Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	deviceRepo := repository.NewDeviceSessionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	queue := worker.NewQueue(rdb)
	snapshots := store.NewRedisSnapshotStore(rdb)

	authService := service.NewAuthService(cfg, userRepo, deviceRepo, queue, log)
	testService := service.NewTestService(testRepo, rdb, log)
	attemptService := service.NewAttemptService(cfg, testService, snapshots, queue, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, authService, log),
		Portal:  handler.NewPortalHandler(testService, attemptService, attemptRepo, log),
		Admin:   handler.NewAdminHandler(authService, testService, userRepo, testRepo, attemptRepo, deviceRepo, log),
		Monitor: handler.NewMonitorHandler(rdb, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	attemptWorker := worker.NewAttemptWorker(attemptRepo, rdb, log)
	violationWorker := worker.NewViolationWorker(deviceRepo, rdb, log)

	go attemptWorker.Start(workerCtx)
	go violationWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every test payload into Redis BEFORE accepting traffic so the
	// first wave of test starts never races lazy loading.
	if err := testService.Prewarm(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

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

	// 2. Force-complete live attempts so their results reach the queue.
	attemptService.TerminateAll()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
