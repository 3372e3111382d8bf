package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Wallet Repo ---

// inMemoryWalletRepo keeps the real compare-and-swap semantics: every
// version-gated write fails with domain.ErrVersionConflict on a stale
// version, exactly like the SQL implementation.
type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.wallets[w.ID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) GetByOwnerAndType(ctx context.Context, ownerID string, wt domain.WalletType) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLocked(ownerID, wt), nil
}

func (r *inMemoryWalletRepo) GetByOwnerAndTypeTx(ctx context.Context, tx pgx.Tx, ownerID string, wt domain.WalletType) (*domain.Wallet, error) {
	return r.GetByOwnerAndType(ctx, ownerID, wt)
}

func (r *inMemoryWalletRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, ownerID string, wt domain.WalletType, currency string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w := r.findLocked(ownerID, wt); w != nil {
		return w, nil
	}
	w := domain.NewWallet(ownerID, wt, currency)
	r.wallets[w.ID] = w
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, expectedVersion int64, delta ports.BalanceDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok || w.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	w.PendingBalance += delta.Pending
	w.WithdrawableBalance += delta.Withdrawable
	w.FrozenBalance += delta.Frozen
	w.Version++
	return nil
}

func (r *inMemoryWalletRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, expectedVersion int64, status domain.WalletStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok || w.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	w.Status = status
	w.Version++
	return nil
}

func (r *inMemoryWalletRepo) List(ctx context.Context) ([]domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallets := make([]domain.Wallet, 0, len(r.wallets))
	for _, w := range r.wallets {
		wallets = append(wallets, *w)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].CreatedAt.Before(wallets[j].CreatedAt) })
	return wallets, nil
}

func (r *inMemoryWalletRepo) SumBalancesByType(ctx context.Context, wt domain.WalletType) (float64, float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var pending, withdrawable float64
	for _, w := range r.wallets {
		if w.Type == wt {
			pending += w.PendingBalance
			withdrawable += w.WithdrawableBalance
		}
	}
	return pending, withdrawable, nil
}

func (r *inMemoryWalletRepo) OverwriteBalances(ctx context.Context, walletID uuid.UUID, expectedVersion int64, pending, withdrawable float64, reconciledAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok || w.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	w.PendingBalance = pending
	w.WithdrawableBalance = withdrawable
	w.LastReconciledAt = &reconciledAt
	w.Version++
	return nil
}

// corrupt overwrites cached balances without touching the journal, to
// simulate drift for reconciliation tests.
func (r *inMemoryWalletRepo) corrupt(walletID uuid.UUID, pending, withdrawable float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.wallets[walletID]; ok {
		w.PendingBalance = pending
		w.WithdrawableBalance = withdrawable
	}
}

func (r *inMemoryWalletRepo) findLocked(ownerID string, wt domain.WalletType) *domain.Wallet {
	for _, w := range r.wallets {
		if w.OwnerID == ownerID && w.Type == wt {
			cp := *w
			return &cp
		}
	}
	return nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []*domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *inMemoryLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryLedgerRepo) GetByTransactionID(ctx context.Context, transactionID string, et domain.EntryType) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.TransactionID == transactionID && e.Type == et {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryLedgerRepo) GetByReference(ctx context.Context, ref domain.Reference, et domain.EntryType) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Reference == ref && e.Type == et {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryLedgerRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.EntryStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id && e.Status == from {
			e.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryLedgerRepo) ListMatured(ctx context.Context, before time.Time, limit int) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matured []domain.LedgerEntry
	for _, e := range r.entries {
		if e.Status == domain.EntryStatusPending && e.Type == domain.EntryTypeSale &&
			e.ClearAt != nil && !e.ClearAt.After(before) {
			matured = append(matured, *e)
		}
	}
	sort.Slice(matured, func(i, j int) bool { return matured[i].ClearAt.Before(*matured[j].ClearAt) })
	if len(matured) > limit {
		matured = matured[:limit]
	}
	return matured, nil
}

func (r *inMemoryLedgerRepo) SumByAccount(ctx context.Context, accountID uuid.UUID) (float64, float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var pending, withdrawable float64
	for _, e := range r.entries {
		if e.AccountID != accountID {
			continue
		}
		if e.Status == domain.EntryStatusPending && e.Type == domain.EntryTypeSale {
			pending += e.Amount
		} else {
			withdrawable += e.Amount
		}
	}
	return pending, withdrawable, nil
}

func (r *inMemoryLedgerRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, status *domain.EntryStatus, limit int) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.AccountID != accountID {
			continue
		}
		if status != nil && e.Status != *status {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryLedgerRepo) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu   sync.RWMutex
	logs []*domain.AuditLog
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *inMemoryAuditRepo) countByAction(action domain.AuditAction) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.logs {
		if a.Action == action {
			n++
		}
	}
	return n
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
