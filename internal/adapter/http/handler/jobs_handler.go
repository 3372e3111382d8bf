package handler

import (
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// JobsHandler exposes the scheduled jobs for manual operator runs.
type JobsHandler struct {
	settlement     ports.SettlementService
	reconciliation ports.ReconciliationService
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(settlement ports.SettlementService, reconciliation ports.ReconciliationService) *JobsHandler {
	return &JobsHandler{settlement: settlement, reconciliation: reconciliation}
}

// RunSweep handles POST /internal/v1/jobs/sweep.
func (h *JobsHandler) RunSweep(c *gin.Context) {
	report, err := h.settlement.ClearPendingFunds(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// RunReconcile handles POST /internal/v1/jobs/reconcile.
func (h *JobsHandler) RunReconcile(c *gin.Context) {
	report, err := h.reconciliation.ReconcileAllWallets(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// CheckIntegrity handles GET /internal/v1/integrity.
func (h *JobsHandler) CheckIntegrity(c *gin.Context) {
	report, err := h.reconciliation.CheckSystemIntegrity(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
