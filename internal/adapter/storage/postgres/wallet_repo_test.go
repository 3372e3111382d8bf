package postgres

import (
	"context"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(ownerID string) *domain.Wallet {
	w := domain.NewWallet(ownerID, domain.WalletTypeVendor, "USD")
	w.CreatedAt = w.CreatedAt.Truncate(time.Microsecond)
	w.UpdatedAt = w.UpdatedAt.Truncate(time.Microsecond)
	return w
}

func walletRowColumns() []string {
	return []string{
		"id", "owner_id", "type", "currency", "pending_balance", "withdrawable_balance",
		"frozen_balance", "minimum_threshold", "status", "version", "last_reconciled_at",
		"created_at", "updated_at",
	}
}

func walletRow(w *domain.Wallet) *pgxmock.Rows {
	return pgxmock.NewRows(walletRowColumns()).AddRow(
		w.ID, w.OwnerID, w.Type, w.Currency, w.PendingBalance, w.WithdrawableBalance,
		w.FrozenBalance, w.MinimumThreshold, w.Status, w.Version, w.LastReconciledAt,
		w.CreatedAt, w.UpdatedAt,
	)
}

func TestWalletRepo_GetByOwnerAndType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet("vendor-1")

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs("vendor-1", domain.WalletTypeVendor).
		WillReturnRows(walletRow(w))

	result, err := repo.GetByOwnerAndType(context.Background(), "vendor-1", domain.WalletTypeVendor)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.Equal(t, domain.WalletStatusActive, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByOwnerAndType_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs("ghost", domain.WalletTypeVendor).
		WillReturnRows(pgxmock.NewRows(walletRowColumns()))

	result, err := repo.GetByOwnerAndType(context.Background(), "ghost", domain.WalletTypeVendor)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetOrCreate_Existing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet("vendor-1")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs("vendor-1", domain.WalletTypeVendor).
		WillReturnRows(walletRow(w))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetOrCreate(context.Background(), tx, "vendor-1", domain.WalletTypeVendor, "USD")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetOrCreate_CreatesOnMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs("vendor-2", domain.WalletTypeVendor).
		WillReturnRows(pgxmock.NewRows(walletRowColumns()))
	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(pgxmock.AnyArg(), "vendor-2", domain.WalletTypeVendor, "USD",
			float64(0), float64(0), float64(0), float64(0),
			domain.WalletStatusActive, int64(1), (*time.Time)(nil), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetOrCreate(context.Background(), tx, "vendor-2", domain.WalletTypeVendor, "USD")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "vendor-2", result.OwnerID)
	assert.Equal(t, int64(1), result.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_ApplyDelta(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").
		WithArgs(float64(800), float64(0), float64(0), walletID, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.ApplyDelta(context.Background(), tx, walletID, 5, ports.BalanceDelta{Pending: 800})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_ApplyDelta_StaleVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").
		WithArgs(float64(0), float64(-500), float64(0), walletID, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.ApplyDelta(context.Background(), tx, walletID, 5, ports.BalanceDelta{Withdrawable: -500})
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateStatus_StaleVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").
		WithArgs(domain.WalletStatusFrozen, walletID, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, walletID, 3, domain.WalletStatusFrozen)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_SumBalancesByType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(domain.WalletTypeVendor).
		WillReturnRows(pgxmock.NewRows([]string{"pending", "withdrawable"}).AddRow(float64(1200), float64(3400)))

	pending, withdrawable, err := repo.SumBalancesByType(context.Background(), domain.WalletTypeVendor)
	require.NoError(t, err)
	assert.InDelta(t, 1200, pending, 0.001)
	assert.InDelta(t, 3400, withdrawable, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_OverwriteBalances(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE wallets").
		WithArgs(float64(100), float64(250), at, walletID, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.OverwriteBalances(context.Background(), walletID, 3, 100, 250, at)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_OverwriteBalances_StaleVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE wallets").
		WithArgs(float64(100), float64(250), at, walletID, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.OverwriteBalances(context.Background(), walletID, 3, 100, 250, at)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
