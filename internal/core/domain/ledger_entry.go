package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// EntryType represents the business event behind a fund movement.
type EntryType string

const (
	EntryTypeSale       EntryType = "SALE"
	EntryTypePayout     EntryType = "PAYOUT"
	EntryTypeRefund     EntryType = "REFUND"
	EntryTypeCommission EntryType = "COMMISSION"
	EntryTypeAdjustment EntryType = "ADJUSTMENT"
	EntryTypeReserve    EntryType = "RESERVE"
)

// EntryStatus represents the lifecycle state of a ledger entry.
// PENDING may transition to CLEARED or VOIDED; both are terminal.
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "PENDING"
	EntryStatusCleared EntryStatus = "CLEARED"
	EntryStatusVoided  EntryStatus = "VOIDED"
)

// ReferenceKind tags which collaborator system a ledger entry points into.
type ReferenceKind string

const (
	ReferenceKindOrder  ReferenceKind = "ORDER"
	ReferenceKindPayout ReferenceKind = "PAYOUT"
	ReferenceKindRefund ReferenceKind = "REFUND"
)

// Reference is a tagged pointer into a collaborator system, so order, payout
// and refund ids cannot collide in audit or reconciliation queries.
type Reference struct {
	Kind ReferenceKind `json:"kind"`
	ID   string        `json:"id"`
}

// LedgerEntry is one immutable signed movement of funds. Amount, type and
// account never change after creation; only Status advances. Corrections are
// made by appending offsetting entries.
type LedgerEntry struct {
	ID            uuid.UUID         `json:"id"`
	TransactionID string            `json:"transaction_id"` // idempotency/grouping key
	AccountID     uuid.UUID         `json:"account_id"`
	OwnerID       string            `json:"owner_id"`
	Amount        float64           `json:"amount"` // signed, nonzero
	Type          EntryType         `json:"type"`
	Status        EntryStatus       `json:"status"`
	Description   string            `json:"description,omitempty"`
	Reference     Reference         `json:"reference"`
	ClearAt       *time.Time        `json:"clear_at,omitempty"` // SALE maturity only
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// IsTerminal returns true once the entry can no longer change status.
func (e *LedgerEntry) IsTerminal() bool {
	return e.Status == EntryStatusCleared || e.Status == EntryStatusVoided
}

// Operation kinds used to derive idempotency keys.
const (
	OpSale           = "SALE"
	OpPayout         = "PAYOUT"
	OpPayoutReversal = "PAYOUT_REVERSAL"
	OpRefund         = "REFUND"
)

// BuildTransactionID derives the deterministic idempotency key for a business
// event, so retries of the same event always map to the same journal rows.
func BuildTransactionID(kind, id string) string {
	sum := sha256.Sum256([]byte(kind + ":" + id))
	return hex.EncodeToString(sum[:])
}
