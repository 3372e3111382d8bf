package postgres

import (
	"context"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry() *domain.LedgerEntry {
	clearAt := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Microsecond)
	return &domain.LedgerEntry{
		ID:            uuid.New(),
		TransactionID: domain.BuildTransactionID(domain.OpSale, "O1"),
		AccountID:     uuid.New(),
		OwnerID:       "vendor-1",
		Amount:        800,
		Type:          domain.EntryTypeSale,
		Status:        domain.EntryStatusPending,
		Description:   "sale earnings",
		Reference:     domain.Reference{Kind: domain.ReferenceKindOrder, ID: "O1"},
		ClearAt:       &clearAt,
		Metadata:      map[string]string{"order_id": "O1"},
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func entryRowColumns() []string {
	return []string{
		"id", "transaction_id", "account_id", "owner_id", "amount", "type", "status",
		"description", "reference_kind", "reference_id", "clear_at", "metadata", "created_at",
	}
}

func entryRow(e *domain.LedgerEntry) *pgxmock.Rows {
	return pgxmock.NewRows(entryRowColumns()).AddRow(
		e.ID, e.TransactionID, e.AccountID, e.OwnerID, e.Amount, e.Type, e.Status,
		e.Description, e.Reference.Kind, e.Reference.ID, e.ClearAt, e.Metadata, e.CreatedAt,
	)
}

func TestLedgerRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.TransactionID, e.AccountID, e.OwnerID, e.Amount, e.Type, e.Status,
			e.Description, e.Reference.Kind, e.Reference.ID, e.ClearAt, e.Metadata, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, e)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByTransactionID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry()

	mock.ExpectQuery("SELECT .+ FROM ledger_entries").
		WithArgs(e.TransactionID, domain.EntryTypeSale).
		WillReturnRows(entryRow(e))

	result, err := repo.GetByTransactionID(context.Background(), e.TransactionID, domain.EntryTypeSale)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, e.ID, result.ID)
	assert.Equal(t, e.Reference, result.Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByTransactionID_Miss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries").
		WithArgs("unknown-key", domain.EntryTypePayout).
		WillReturnRows(pgxmock.NewRows(entryRowColumns()))

	result, err := repo.GetByTransactionID(context.Background(), "unknown-key", domain.EntryTypePayout)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry()
	e.Type = domain.EntryTypePayout
	e.Reference = domain.Reference{Kind: domain.ReferenceKindPayout, ID: "P1"}

	mock.ExpectQuery("SELECT .+ FROM ledger_entries").
		WithArgs(domain.ReferenceKindPayout, "P1", domain.EntryTypePayout).
		WillReturnRows(entryRow(e))

	result, err := repo.GetByReference(context.Background(),
		domain.Reference{Kind: domain.ReferenceKindPayout, ID: "P1"}, domain.EntryTypePayout)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "P1", result.Reference.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_UpdateStatus_Transitioned(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE ledger_entries SET status").
		WithArgs(domain.EntryStatusCleared, id, domain.EntryStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	moved, err := repo.UpdateStatus(context.Background(), tx, id, domain.EntryStatusPending, domain.EntryStatusCleared)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_UpdateStatus_AlreadyTerminal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE ledger_entries SET status").
		WithArgs(domain.EntryStatusCleared, id, domain.EntryStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	moved, err := repo.UpdateStatus(context.Background(), tx, id, domain.EntryStatusPending, domain.EntryStatusCleared)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListMatured(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM ledger_entries").
		WithArgs(domain.EntryStatusPending, domain.EntryTypeSale, now, 50).
		WillReturnRows(entryRow(e))

	entries, err := repo.ListMatured(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e.ID, entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SumByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	accountID := uuid.New()

	mock.ExpectQuery("SELECT").
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"pending", "withdrawable"}).AddRow(float64(800), float64(200)))

	pending, withdrawable, err := repo.SumByAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.InDelta(t, 800, pending, 0.001)
	assert.InDelta(t, 200, withdrawable, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
