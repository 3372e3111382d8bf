package handler

import (
	"context"

	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// LedgerHandler handles the money-moving endpoints plus the payout status
// lookup.
type LedgerHandler struct {
	ledgerSvc  ports.LedgerService
	ledgerRepo ports.LedgerRepository
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService, ledgerRepo ports.LedgerRepository) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc, ledgerRepo: ledgerRepo}
}

// RecordSale handles POST /internal/v1/sales.
func (h *LedgerHandler) RecordSale(c *gin.Context) {
	var req dto.RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	items := make([]ports.SaleItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ports.SaleItem{
			OwnerID:        item.OwnerID,
			VendorEarnings: item.VendorEarnings,
			Commission:     item.Commission,
		})
	}

	result, err := h.ledgerSvc.RecordSale(c.Request.Context(), req.OrderID, items)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Duplicate {
		response.OK(c, result)
		return
	}
	response.Created(c, result)
}

// RequestPayout handles POST /internal/v1/payouts.
func (h *LedgerHandler) RequestPayout(c *gin.Context) {
	var req dto.RequestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.ledgerSvc.RequestPayout(c.Request.Context(), req.OwnerID, req.Amount, req.PayoutID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Duplicate {
		response.OK(c, result)
		return
	}
	response.Created(c, result)
}

// CompletePayout handles POST /internal/v1/payouts/:payoutID/complete.
func (h *LedgerHandler) CompletePayout(c *gin.Context) {
	var req dto.CompletePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.ledgerSvc.CompletePayout(c.Request.Context(), c.Param("payoutID"), req.TransactionRef); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"payout_id": c.Param("payoutID"), "status": "CLEARED"})
}

// RejectPayout handles POST /internal/v1/payouts/:payoutID/reject.
func (h *LedgerHandler) RejectPayout(c *gin.Context) {
	var req dto.RejectPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.ledgerSvc.RejectPayout(c.Request.Context(), c.Param("payoutID"), req.OwnerID, req.Amount, req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"payout_id": c.Param("payoutID"), "status": "REVERSED"})
}

// RecordRefund handles POST /internal/v1/refunds.
func (h *LedgerHandler) RecordRefund(c *gin.Context) {
	var req dto.RecordRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	items := make([]ports.RefundItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ports.RefundItem{
			OwnerID:            item.OwnerID,
			RefundAmount:       item.RefundAmount,
			CommissionReversal: item.CommissionReversal,
		})
	}

	if err := h.ledgerSvc.RecordRefund(c.Request.Context(), req.OrderID, req.RefundID, items); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"refund_id": req.RefundID})
}

// GetPayout handles GET /internal/v1/payouts/:payoutID. The lifecycle state
// is read straight off the original debit entry: PENDING while the transfer
// is in flight, CLEARED once confirmed, VOIDED once rejected.
func (h *LedgerHandler) GetPayout(c *gin.Context) {
	payoutID := c.Param("payoutID")
	ref := domain.Reference{Kind: domain.ReferenceKindPayout, ID: payoutID}

	entry, err := h.ledgerRepo.GetByReference(c.Request.Context(), ref, domain.EntryTypePayout)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entry == nil {
		response.Error(c, apperror.ErrNotFound("Payout"))
		return
	}

	state := string(entry.Status)
	if entry.Status == domain.EntryStatusVoided {
		state = "REVERSED"
	}

	response.OK(c, gin.H{
		"payout_id": payoutID,
		"owner_id":  entry.OwnerID,
		"amount":    -entry.Amount,
		"state":     state,
		"entry":     entry,
	})
}

// FreezeWallet handles POST /internal/v1/wallets/:ownerID/freeze.
func (h *LedgerHandler) FreezeWallet(c *gin.Context) {
	h.setWalletStatus(c, h.ledgerSvc.FreezeWallet, "FROZEN")
}

// UnfreezeWallet handles POST /internal/v1/wallets/:ownerID/unfreeze.
func (h *LedgerHandler) UnfreezeWallet(c *gin.Context) {
	h.setWalletStatus(c, h.ledgerSvc.UnfreezeWallet, "ACTIVE")
}

func (h *LedgerHandler) setWalletStatus(c *gin.Context, op func(ctx context.Context, ownerID, performedBy, reason string) error, status string) {
	var req dto.WalletStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	ownerID := c.Param("ownerID")
	if err := op(c.Request.Context(), ownerID, req.PerformedBy, req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"owner_id": ownerID, "status": status})
}
