package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWallet_CanTransact(t *testing.T) {
	w := NewWallet("vendor-1", WalletTypeVendor, "USD")
	assert.True(t, w.CanTransact())

	w.Status = WalletStatusFrozen
	assert.False(t, w.CanTransact())

	w.Status = WalletStatusClosed
	assert.False(t, w.CanTransact())
}

func TestWallet_CanWithdraw(t *testing.T) {
	w := NewWallet("vendor-1", WalletTypeVendor, "USD")
	w.WithdrawableBalance = 1000

	assert.True(t, w.CanWithdraw(1000))
	assert.False(t, w.CanWithdraw(1000.01))

	w.MinimumThreshold = 100
	assert.True(t, w.CanWithdraw(900))
	assert.False(t, w.CanWithdraw(901))
}

func TestNewWallet_Defaults(t *testing.T) {
	w := NewWallet("vendor-1", WalletTypeVendor, "USD")
	assert.Equal(t, WalletStatusActive, w.Status)
	assert.Equal(t, int64(1), w.Version)
	assert.Zero(t, w.PendingBalance)
	assert.Zero(t, w.WithdrawableBalance)
}

func TestLedgerEntry_IsTerminal(t *testing.T) {
	e := &LedgerEntry{Status: EntryStatusPending}
	assert.False(t, e.IsTerminal())

	e.Status = EntryStatusCleared
	assert.True(t, e.IsTerminal())

	e.Status = EntryStatusVoided
	assert.True(t, e.IsTerminal())
}

func TestBuildTransactionID_Deterministic(t *testing.T) {
	a := BuildTransactionID(OpSale, "O1")
	b := BuildTransactionID(OpSale, "O1")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Distinct kinds never collide even with the same business id.
	assert.NotEqual(t, BuildTransactionID(OpPayout, "P1"), BuildTransactionID(OpPayoutReversal, "P1"))
}
