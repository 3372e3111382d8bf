package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_id, type, currency, pending_balance, withdrawable_balance,
		frozen_balance, minimum_threshold, status, version, last_reconciled_at, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet within a database transaction.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.OwnerID, w.Type, w.Currency, w.PendingBalance, w.WithdrawableBalance,
		w.FrozenBalance, w.MinimumThreshold, w.Status, w.Version,
		w.LastReconciledAt, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, id))
}

// GetByIDTx fetches a wallet by UUID inside the caller's transaction.
func (r *WalletRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(tx.QueryRow(ctx, query, id))
}

// GetByOwnerAndType fetches a wallet by its unique (owner, type) pair.
func (r *WalletRepo) GetByOwnerAndType(ctx context.Context, ownerID string, wt domain.WalletType) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 AND type = $2`
	return scanWallet(r.pool.QueryRow(ctx, query, ownerID, wt))
}

// GetByOwnerAndTypeTx fetches a wallet by (owner, type) inside the caller's transaction.
func (r *WalletRepo) GetByOwnerAndTypeTx(ctx context.Context, tx pgx.Tx, ownerID string, wt domain.WalletType) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 AND type = $2`
	return scanWallet(tx.QueryRow(ctx, query, ownerID, wt))
}

// GetOrCreate returns the (owner, type) wallet, lazily creating it on first
// use. The insert tolerates a concurrent creation racing on the unique
// (owner_id, type) constraint and re-reads the winner's row.
func (r *WalletRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, ownerID string, wt domain.WalletType, currency string) (*domain.Wallet, error) {
	w, err := r.GetByOwnerAndTypeTx(ctx, tx, ownerID, wt)
	if err != nil {
		return nil, err
	}
	if w != nil {
		return w, nil
	}

	w = domain.NewWallet(ownerID, wt, currency)
	query := `INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (owner_id, type) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		w.ID, w.OwnerID, w.Type, w.Currency, w.PendingBalance, w.WithdrawableBalance,
		w.FrozenBalance, w.MinimumThreshold, w.Status, w.Version,
		w.LastReconciledAt, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.GetByOwnerAndTypeTx(ctx, tx, ownerID, wt)
	}
	return w, nil
}

// ApplyDelta applies a signed balance adjustment and increments the version,
// only if the stored version still equals expectedVersion. Returns
// domain.ErrVersionConflict on a stale version. This is the system's sole
// concurrency primitive.
func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, expectedVersion int64, delta ports.BalanceDelta) error {
	query := `UPDATE wallets
		SET pending_balance = pending_balance + $1,
			withdrawable_balance = withdrawable_balance + $2,
			frozen_balance = frozen_balance + $3,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $4 AND version = $5`

	tag, err := tx.Exec(ctx, query, delta.Pending, delta.Withdrawable, delta.Frozen, walletID, expectedVersion)
	if err != nil {
		return fmt.Errorf("apply wallet delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// UpdateStatus toggles the wallet status, gated on the version like any other
// wallet write.
func (r *WalletRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, expectedVersion int64, status domain.WalletStatus) error {
	query := `UPDATE wallets
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`

	tag, err := tx.Exec(ctx, query, status, walletID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update wallet status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// List returns every wallet, ordered by creation, for the reconciliation scan.
func (r *WalletRepo) List(ctx context.Context) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w := domain.Wallet{}
		if err := rows.Scan(
			&w.ID, &w.OwnerID, &w.Type, &w.Currency, &w.PendingBalance, &w.WithdrawableBalance,
			&w.FrozenBalance, &w.MinimumThreshold, &w.Status, &w.Version,
			&w.LastReconciledAt, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// SumBalancesByType aggregates cached balances across all wallets of a type.
func (r *WalletRepo) SumBalancesByType(ctx context.Context, wt domain.WalletType) (float64, float64, error) {
	query := `SELECT COALESCE(SUM(pending_balance), 0), COALESCE(SUM(withdrawable_balance), 0)
		FROM wallets WHERE type = $1`

	var pending, withdrawable float64
	if err := r.pool.QueryRow(ctx, query, wt).Scan(&pending, &withdrawable); err != nil {
		return 0, 0, fmt.Errorf("sum balances by type: %w", err)
	}
	return pending, withdrawable, nil
}

// OverwriteBalances replaces the cached balances with ledger-derived values
// and stamps last_reconciled_at. Used only by reconciliation, and gated on
// the version like every other wallet write: a business operation committing
// after the sums were derived bumps the version, the heal fails with
// domain.ErrVersionConflict, and the next pass re-derives.
func (r *WalletRepo) OverwriteBalances(ctx context.Context, walletID uuid.UUID, expectedVersion int64, pending, withdrawable float64, reconciledAt time.Time) error {
	query := `UPDATE wallets
		SET pending_balance = $1, withdrawable_balance = $2,
			last_reconciled_at = $3, version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5`

	tag, err := r.pool.Exec(ctx, query, pending, withdrawable, reconciledAt, walletID, expectedVersion)
	if err != nil {
		return fmt.Errorf("overwrite wallet balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Type, &w.Currency, &w.PendingBalance, &w.WithdrawableBalance,
		&w.FrozenBalance, &w.MinimumThreshold, &w.Status, &w.Version,
		&w.LastReconciledAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
