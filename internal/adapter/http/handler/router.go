package handler

import (
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc         ports.LedgerService
	SettlementSvc     ports.SettlementService
	ReconciliationSvc ports.ReconciliationService
	WalletRepo        ports.WalletRepository
	LedgerRepo        ports.LedgerRepository
	HealthCheckers    []ports.HealthChecker
	Logger            zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
// Every route except /health lives under /internal/v1; this service is only
// reachable from inside the platform network.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	ledgerHandler := NewLedgerHandler(deps.LedgerSvc, deps.LedgerRepo)
	walletHandler := NewWalletHandler(deps.WalletRepo, deps.LedgerRepo, deps.ReconciliationSvc)
	jobsHandler := NewJobsHandler(deps.SettlementSvc, deps.ReconciliationSvc)

	v1 := r.Group("/internal/v1")

	v1.POST("/sales", ledgerHandler.RecordSale)
	v1.POST("/refunds", ledgerHandler.RecordRefund)

	payouts := v1.Group("/payouts")
	{
		payouts.POST("", ledgerHandler.RequestPayout)
		payouts.GET("/:payoutID", ledgerHandler.GetPayout)
		payouts.POST("/:payoutID/complete", ledgerHandler.CompletePayout)
		payouts.POST("/:payoutID/reject", ledgerHandler.RejectPayout)
	}

	wallets := v1.Group("/wallets")
	{
		wallets.GET("/:ownerID/balance", walletHandler.GetBalance)
		wallets.GET("/:ownerID/entries", walletHandler.ListEntries)
		wallets.POST("/:ownerID/freeze", ledgerHandler.FreezeWallet)
		wallets.POST("/:ownerID/unfreeze", ledgerHandler.UnfreezeWallet)
	}

	jobs := v1.Group("/jobs")
	{
		jobs.POST("/sweep", jobsHandler.RunSweep)
		jobs.POST("/reconcile", jobsHandler.RunReconcile)
	}
	v1.GET("/integrity", jobsHandler.CheckIntegrity)

	return r
}
