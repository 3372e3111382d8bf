package ports

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceDelta is a signed adjustment applied atomically to a wallet's
// balance fields by a version-gated update.
type BalanceDelta struct {
	Pending      float64
	Withdrawable float64
	Frozen       float64
}

// WalletRepository defines persistence for the per-account balance cache.
// Methods accepting pgx.Tx run inside the caller's transaction so every write
// of a business operation commits or rolls back as one unit. Balance and
// status writes are compare-and-swap on the wallet version; a stale version
// yields domain.ErrVersionConflict.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	GetByOwnerAndType(ctx context.Context, ownerID string, wt domain.WalletType) (*domain.Wallet, error)
	GetByOwnerAndTypeTx(ctx context.Context, tx pgx.Tx, ownerID string, wt domain.WalletType) (*domain.Wallet, error)
	// GetOrCreate lazily creates the wallet on first use; safe under
	// concurrent creation via the unique (owner_id, type) constraint.
	GetOrCreate(ctx context.Context, tx pgx.Tx, ownerID string, wt domain.WalletType, currency string) (*domain.Wallet, error)
	ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, expectedVersion int64, delta BalanceDelta) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, expectedVersion int64, status domain.WalletStatus) error
	// List returns every wallet, for the reconciliation scan.
	List(ctx context.Context) ([]domain.Wallet, error)
	// SumBalancesByType aggregates cached balances across all wallets of a
	// type, for the solvency check.
	SumBalancesByType(ctx context.Context, wt domain.WalletType) (pending float64, withdrawable float64, err error)
	// OverwriteBalances replaces the cached balances with ledger-derived
	// values and stamps last_reconciled_at, gated on the version the sums
	// were derived against so a business write landing in between is not
	// clobbered with stale sums. The ledger always wins, but only for the
	// state it was actually compared to.
	OverwriteBalances(ctx context.Context, walletID uuid.UUID, expectedVersion int64, pending, withdrawable float64, reconciledAt time.Time) error
}

// LedgerRepository defines persistence for the append-only journal.
// Entry content is immutable; UpdateStatus is the only mutation and it only
// moves status out of PENDING.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	// GetByTransactionID is the idempotency lookup: any entry under the key
	// means the operation was already applied.
	GetByTransactionID(ctx context.Context, transactionID string, et domain.EntryType) (*domain.LedgerEntry, error)
	GetByReference(ctx context.Context, ref domain.Reference, et domain.EntryType) (*domain.LedgerEntry, error)
	// UpdateStatus transitions from->to and reports whether a row moved.
	// Zero rows means the entry was not in the expected state.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.EntryStatus) (bool, error)
	// ListMatured returns PENDING SALE entries with clear_at <= before,
	// bounded to limit, oldest first.
	ListMatured(ctx context.Context, before time.Time, limit int) ([]domain.LedgerEntry, error)
	// SumByAccount returns the ledger-derived ground truth for one wallet:
	// the sum of PENDING SALE amounts, and the sum of everything else
	// (in-flight payout debits reserve withdrawable funds before they
	// clear; a voided debit nets to zero against its reversal adjustment).
	SumByAccount(ctx context.Context, accountID uuid.UUID) (pending float64, withdrawable float64, err error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, status *domain.EntryStatus, limit int) ([]domain.LedgerEntry, error)
}

// AuditRepository defines persistence for the append-only audit trail.
// There is deliberately no update or delete; the storage layer additionally
// rejects them with a trigger.
type AuditRepository interface {
	Create(ctx context.Context, record *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
