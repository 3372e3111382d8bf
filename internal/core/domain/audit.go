package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionSaleRecorded      AuditAction = "SALE_RECORDED"
	AuditActionPayoutRequested   AuditAction = "PAYOUT_REQUESTED"
	AuditActionPayoutCompleted   AuditAction = "PAYOUT_COMPLETED"
	AuditActionPayoutRejected    AuditAction = "PAYOUT_REJECTED"
	AuditActionRefundRecorded    AuditAction = "REFUND_RECORDED"
	AuditActionWalletFrozen      AuditAction = "WALLET_FROZEN"
	AuditActionWalletUnfrozen    AuditAction = "WALLET_UNFROZEN"
	AuditActionWalletAutoFrozen  AuditAction = "WALLET_AUTO_FROZEN"
	AuditActionBalanceReconciled AuditAction = "BALANCE_RECONCILED"
)

// SystemActor is the PerformedBy sentinel for actions taken by the system
// itself (sweeper, reconciliation, auto-freeze).
const SystemActor = "SYSTEM"

// AuditLog records one state-changing action. Records are append-only; the
// storage layer rejects updates and deletes.
type AuditLog struct {
	ID           uuid.UUID         `json:"id"`
	Action       AuditAction       `json:"action"`
	PerformedBy  string            `json:"performed_by"`
	TargetEntity string            `json:"target_entity"`
	TargetID     string            `json:"target_id"`
	OwnerID      string            `json:"owner_id,omitempty"`
	Before       json.RawMessage   `json:"before,omitempty"`
	After        json.RawMessage   `json:"after,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}
