package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, transaction_id, account_id, owner_id, amount, type, status,
		description, reference_kind, reference_id, clear_at, metadata, created_at`

// LedgerRepo implements ports.LedgerRepository over the append-only journal.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create appends one immutable entry within a database transaction.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.TransactionID, e.AccountID, e.OwnerID, e.Amount, e.Type, e.Status,
		e.Description, e.Reference.Kind, e.Reference.ID, e.ClearAt, e.Metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByID fetches an entry by UUID.
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`
	return scanEntry(r.pool.QueryRow(ctx, query, id))
}

// GetByTransactionID fetches one entry under an idempotency key. Entries of a
// multi-item batch share the key; any hit means the operation was applied.
func (r *LedgerRepo) GetByTransactionID(ctx context.Context, transactionID string, et domain.EntryType) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE transaction_id = $1 AND type = $2 LIMIT 1`
	return scanEntry(r.pool.QueryRow(ctx, query, transactionID, et))
}

// GetByReference fetches one entry by its collaborator reference.
func (r *LedgerRepo) GetByReference(ctx context.Context, ref domain.Reference, et domain.EntryType) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE reference_kind = $1 AND reference_id = $2 AND type = $3 LIMIT 1`
	return scanEntry(r.pool.QueryRow(ctx, query, ref.Kind, ref.ID, et))
}

// UpdateStatus transitions an entry from one status to another. The WHERE
// clause guards the state machine: zero rows means the entry was not in the
// expected state, and the caller decides whether that is a no-op or an error.
func (r *LedgerRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.EntryStatus) (bool, error) {
	query := `UPDATE ledger_entries SET status = $1 WHERE id = $2 AND status = $3`

	tag, err := tx.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("update ledger entry status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListMatured returns PENDING SALE entries whose maturity timestamp has
// passed, oldest first, bounded to limit.
func (r *LedgerRepo) ListMatured(ctx context.Context, before time.Time, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE status = $1 AND type = $2 AND clear_at <= $3
		ORDER BY clear_at LIMIT $4`

	rows, err := r.pool.Query(ctx, query, domain.EntryStatusPending, domain.EntryTypeSale, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list matured entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// SumByAccount returns the ledger-derived ground truth for one wallet.
// Pending funds are the PENDING SALE amounts; everything else sums into
// withdrawable. An in-flight payout debit reserves withdrawable funds the
// moment it is journaled, so it counts before it clears; a voided debit is
// always paired with its reversal adjustment in one transaction, so the two
// net to zero.
func (r *LedgerRepo) SumByAccount(ctx context.Context, accountID uuid.UUID) (float64, float64, error) {
	query := `SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'PENDING' AND type = 'SALE'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status <> 'PENDING' OR type <> 'SALE'), 0)
		FROM ledger_entries WHERE account_id = $1`

	var pending, withdrawable float64
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&pending, &withdrawable); err != nil {
		return 0, 0, fmt.Errorf("sum entries by account: %w", err)
	}
	return pending, withdrawable, nil
}

// ListByAccount returns an account's entries, newest first, optionally
// filtered by status.
func (r *LedgerRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, status *domain.EntryStatus, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, accountID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries by account: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		if err := rows.Scan(
			&e.ID, &e.TransactionID, &e.AccountID, &e.OwnerID, &e.Amount, &e.Type, &e.Status,
			&e.Description, &e.Reference.Kind, &e.Reference.ID, &e.ClearAt, &e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.TransactionID, &e.AccountID, &e.OwnerID, &e.Amount, &e.Type, &e.Status,
		&e.Description, &e.Reference.Kind, &e.Reference.ID, &e.ClearAt, &e.Metadata, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return e, nil
}
