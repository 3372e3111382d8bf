package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-ledger/config"
	httpHandler "marketplace-ledger/internal/adapter/http/handler"
	pgStorage "marketplace-ledger/internal/adapter/storage/postgres"
	redisStorage "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/scheduler"
	"marketplace-ledger/internal/service"
	"marketplace-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Marketplace Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	jobLock := redisStorage.NewJobLock(rdb)

	// Initialize business services
	auditSvc := service.NewAuditService(auditRepo, log)
	ledgerSvc := service.NewLedgerService(
		walletRepo,
		ledgerRepo,
		idempotencyCache,
		transactor,
		auditSvc,
		log,
		cfg.Ledger.Currency,
		cfg.Ledger.HoldingPeriod,
	)
	settlementSvc := service.NewSettlementService(walletRepo, ledgerRepo, transactor, log, cfg.Ledger.SweepBatchSize)
	reconciliationSvc := service.NewReconciliationService(walletRepo, ledgerRepo, auditSvc, log, cfg.Ledger.DriftTolerance)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Background jobs: pending-funds sweep and reconciliation, single-flight
	// across instances via the Redis lock.
	schedCtx, stopScheduler := context.WithCancel(ctx)
	sched := scheduler.New(
		settlementSvc,
		reconciliationSvc,
		jobLock,
		log,
		cfg.Ledger.SweepInterval,
		cfg.Ledger.ReconcileInterval,
		cfg.Ledger.JobLockTTL,
	)
	schedDone := make(chan struct{})
	go func() {
		sched.Run(schedCtx)
		close(schedDone)
	}()

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:         ledgerSvc,
		SettlementSvc:     settlementSvc,
		ReconciliationSvc: reconciliationSvc,
		WalletRepo:        walletRepo,
		LedgerRepo:        ledgerRepo,
		HealthCheckers:    []ports.HealthChecker{pgHealth, redisHealth},
		Logger:            log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopScheduler()
	<-schedDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
