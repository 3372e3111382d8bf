package ports

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// SaleItem is one vendor's share of a confirmed order.
type SaleItem struct {
	OwnerID        string
	VendorEarnings float64
	Commission     float64
}

// RefundItem is one vendor's share of an issued refund.
type RefundItem struct {
	OwnerID            string
	RefundAmount       float64
	CommissionReversal float64
}

// SaleResult reports the outcome of RecordSale. Duplicate means the order was
// already journaled and nothing was reapplied.
type SaleResult struct {
	OrderID   string `json:"order_id"`
	Entries   int    `json:"entries"`
	Duplicate bool   `json:"duplicate"`
}

// PayoutResult reports the outcome of RequestPayout.
type PayoutResult struct {
	Entry     *domain.LedgerEntry `json:"entry"`
	Duplicate bool                `json:"duplicate"`
}

// LedgerService orchestrates every money-moving operation. It is the only
// writer of the wallet, ledger and audit stores. Each operation is one atomic
// transaction over the wallet and ledger stores; the audit append happens
// after commit, best-effort.
type LedgerService interface {
	RecordSale(ctx context.Context, orderID string, items []SaleItem) (*SaleResult, error)
	RequestPayout(ctx context.Context, ownerID string, amount float64, payoutID string) (*PayoutResult, error)
	CompletePayout(ctx context.Context, payoutID, transactionRef string) error
	RejectPayout(ctx context.Context, payoutID, ownerID string, amount float64, reason string) error
	RecordRefund(ctx context.Context, orderID, refundID string, items []RefundItem) error
	FreezeWallet(ctx context.Context, ownerID, performedBy, reason string) error
	UnfreezeWallet(ctx context.Context, ownerID, performedBy, reason string) error
}

// SweepReport counts the outcome of one pending-funds sweep. Failed entries
// remain PENDING and are retried on the next run.
type SweepReport struct {
	Cleared int `json:"cleared"`
	Failed  int `json:"failed"`
}

// SettlementService matures held funds into withdrawable funds.
type SettlementService interface {
	ClearPendingFunds(ctx context.Context) (*SweepReport, error)
}

// WalletDrift records one wallet whose cached balances disagreed with the
// ledger beyond tolerance.
type WalletDrift struct {
	WalletID            uuid.UUID         `json:"wallet_id"`
	OwnerID             string            `json:"owner_id"`
	Type                domain.WalletType `json:"type"`
	CachedPending       float64           `json:"cached_pending"`
	CachedWithdrawable  float64           `json:"cached_withdrawable"`
	LedgerPending       float64           `json:"ledger_pending"`
	LedgerWithdrawable  float64           `json:"ledger_withdrawable"`
}

// ReconcileReport is the outcome of a full reconciliation pass.
type ReconcileReport struct {
	Checked    int           `json:"checked"`
	Drifted    int           `json:"drifted"`
	Healed     int           `json:"healed"`
	Drifts     []WalletDrift `json:"drifts,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

// IntegrityReport compares total vendor liabilities against platform revenue.
type IntegrityReport struct {
	VendorPendingTotal      float64   `json:"vendor_pending_total"`
	VendorWithdrawableTotal float64   `json:"vendor_withdrawable_total"`
	VendorLiability         float64   `json:"vendor_liability"`
	PlatformWithdrawable    float64   `json:"platform_withdrawable"`
	PlatformShortfall       bool      `json:"platform_shortfall"`
	CheckedAt               time.Time `json:"checked_at"`
}

// BalanceDiagnosis compares one wallet's cached balances with the
// ledger-derived values.
type BalanceDiagnosis struct {
	OwnerID            string  `json:"owner_id"`
	CachedPending      float64 `json:"cached_pending"`
	CachedWithdrawable float64 `json:"cached_withdrawable"`
	LedgerPending      float64 `json:"ledger_pending"`
	LedgerWithdrawable float64 `json:"ledger_withdrawable"`
	IsDrifted          bool    `json:"is_drifted"`
}

// ReconciliationService recomputes balances from the journal of record,
// healing drift instead of raising it.
type ReconciliationService interface {
	ReconcileAllWallets(ctx context.Context) (*ReconcileReport, error)
	CheckSystemIntegrity(ctx context.Context) (*IntegrityReport, error)
	ComputeBalanceFromLedger(ctx context.Context, ownerID string) (*BalanceDiagnosis, error)
}

// AuditService records audit entries after financial commits, best-effort.
type AuditService interface {
	Record(ctx context.Context, entry *domain.AuditLog)
}

// IdempotencyCache is the Redis-layer idempotency check (fast path in front
// of the journal lookup).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// JobLock keeps scheduled jobs single-flight across instances.
type JobLock interface {
	// Acquire returns true if the named lock was taken. The TTL bounds how
	// long a crashed holder can block the next run.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// HealthChecker checks external dependency health.
type HealthChecker interface {
	// Ping verifies connectivity. Returns nil if healthy.
	Ping(ctx context.Context) error
	// Name returns the dependency name (e.g., "postgresql", "redis").
	Name() string
}
