package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletType distinguishes the accounts the ledger tracks money for.
type WalletType string

const (
	WalletTypeVendor          WalletType = "VENDOR"
	WalletTypeReserve         WalletType = "RESERVE"
	WalletTypePlatformRevenue WalletType = "PLATFORM_REVENUE"
	WalletTypeSystemAsset     WalletType = "SYSTEM_ASSET"
)

// WalletStatus represents the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "ACTIVE"
	WalletStatusFrozen WalletStatus = "FROZEN"
	WalletStatusClosed WalletStatus = "CLOSED"
)

// PlatformOwnerID is the owner id of the platform revenue wallet.
const PlatformOwnerID = "platform"

// Wallet is the cached balance aggregate for one (owner, type) account.
// Balances are a cache; the ground truth is the sum of the account's ledger
// entries. Every balance or status mutation is gated on Version.
type Wallet struct {
	ID                  uuid.UUID    `json:"id"`
	OwnerID             string       `json:"owner_id"`
	Type                WalletType   `json:"type"`
	Currency            string       `json:"currency"`
	PendingBalance      float64      `json:"pending_balance"`
	WithdrawableBalance float64      `json:"withdrawable_balance"`
	FrozenBalance       float64      `json:"frozen_balance"`
	MinimumThreshold    float64      `json:"minimum_threshold"`
	Status              WalletStatus `json:"status"`
	Version             int64        `json:"version"`
	LastReconciledAt    *time.Time   `json:"last_reconciled_at,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// NewWallet builds an empty ACTIVE wallet for lazy creation on first use.
func NewWallet(ownerID string, wt WalletType, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Type:      wt,
		Currency:  currency,
		Status:    WalletStatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanTransact reports whether the wallet accepts owner-initiated debits such
// as payouts. Frozen and closed wallets refuse them; sale credits, refund
// debits and maturity sweeps still apply.
func (w *Wallet) CanTransact() bool {
	return w.Status == WalletStatusActive
}

// CanWithdraw reports whether amount can be paid out while keeping the
// balance at or above the wallet's minimum threshold.
func (w *Wallet) CanWithdraw(amount float64) bool {
	return w.WithdrawableBalance-amount >= w.MinimumThreshold
}
