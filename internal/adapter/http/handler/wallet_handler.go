package handler

import (
	"strconv"

	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler exposes the read-only wallet diagnostics.
type WalletHandler struct {
	walletRepo     ports.WalletRepository
	ledgerRepo     ports.LedgerRepository
	reconciliation ports.ReconciliationService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletRepo ports.WalletRepository, ledgerRepo ports.LedgerRepository, reconciliation ports.ReconciliationService) *WalletHandler {
	return &WalletHandler{walletRepo: walletRepo, ledgerRepo: ledgerRepo, reconciliation: reconciliation}
}

// GetBalance handles GET /internal/v1/wallets/:ownerID/balance. It reports the
// cached balances next to the ledger-derived values so operators can see
// drift without mutating anything.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	ownerID := c.Param("ownerID")

	wallet, err := h.walletRepo.GetByOwnerAndType(c.Request.Context(), ownerID, domain.WalletTypeVendor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if wallet == nil {
		response.Error(c, apperror.ErrNotFound("Wallet"))
		return
	}

	diag, err := h.reconciliation.ComputeBalanceFromLedger(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		OwnerID:            wallet.OwnerID,
		Currency:           wallet.Currency,
		Status:             string(wallet.Status),
		PendingBalance:     wallet.PendingBalance,
		Withdrawable:       wallet.WithdrawableBalance,
		FrozenBalance:      wallet.FrozenBalance,
		Version:            wallet.Version,
		LedgerPending:      diag.LedgerPending,
		LedgerWithdrawable: diag.LedgerWithdrawable,
		IsDrifted:          diag.IsDrifted,
	})
}

// ListEntries handles GET /internal/v1/wallets/:ownerID/entries. It returns a
// wallet's journal, newest first, optionally filtered by status.
func (h *WalletHandler) ListEntries(c *gin.Context) {
	ownerID := c.Param("ownerID")

	wallet, err := h.walletRepo.GetByOwnerAndType(c.Request.Context(), ownerID, domain.WalletTypeVendor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if wallet == nil {
		response.Error(c, apperror.ErrNotFound("Wallet"))
		return
	}

	var status *domain.EntryStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.EntryStatus(raw)
		switch s {
		case domain.EntryStatusPending, domain.EntryStatusCleared, domain.EntryStatusVoided:
			status = &s
		default:
			response.Error(c, apperror.Validation("unknown entry status"))
			return
		}
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		response.Error(c, apperror.Validation("limit must be between 1 and 500"))
		return
	}

	entries, err := h.ledgerRepo.ListByAccount(c.Request.Context(), wallet.ID, status, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"owner_id": ownerID, "entries": entries})
}
