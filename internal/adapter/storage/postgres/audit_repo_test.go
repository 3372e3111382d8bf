package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	before, _ := json.Marshal(map[string]string{"status": "ACTIVE"})
	after, _ := json.Marshal(map[string]string{"status": "FROZEN"})

	a := &domain.AuditLog{
		ID:           uuid.New(),
		Action:       domain.AuditActionWalletFrozen,
		PerformedBy:  "admin-7",
		TargetEntity: "wallet",
		TargetID:     uuid.New().String(),
		OwnerID:      "vendor-1",
		Before:       before,
		After:        after,
		Reason:       "chargeback investigation",
		Metadata:     map[string]string{"ticket": "T-42"},
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(a.ID, a.Action, a.PerformedBy, a.TargetEntity, a.TargetID,
			a.OwnerID, a.Before, a.After, a.Reason, a.Metadata, a.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), a)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	a := &domain.AuditLog{
		ID:           uuid.New(),
		Action:       domain.AuditActionSaleRecorded,
		PerformedBy:  domain.SystemActor,
		TargetEntity: "ledger_entry",
		TargetID:     uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(a.ID, a.Action, a.PerformedBy, a.TargetEntity, a.TargetID,
			a.OwnerID, a.Before, a.After, a.Reason, a.Metadata, a.CreatedAt).
		WillReturnError(assert.AnError)

	err = repo.Create(context.Background(), a)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
