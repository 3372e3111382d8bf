package dto

// SaleItem is one vendor's share inside a sale request.
type SaleItem struct {
	OwnerID        string  `json:"owner_id" binding:"required,max=100"`
	VendorEarnings float64 `json:"vendor_earnings" binding:"required,gt=0"`
	Commission     float64 `json:"commission" binding:"gte=0"`
}

// RecordSaleRequest is the request body for journaling a confirmed order.
type RecordSaleRequest struct {
	OrderID string     `json:"order_id" binding:"required,max=100"`
	Items   []SaleItem `json:"items" binding:"required,min=1,dive"`
}

// RequestPayoutRequest is the request body for reserving a payout.
type RequestPayoutRequest struct {
	OwnerID  string  `json:"owner_id" binding:"required,max=100"`
	Amount   float64 `json:"amount" binding:"required,gt=0"`
	PayoutID string  `json:"payout_id" binding:"required,max=100"`
}

// CompletePayoutRequest is the request body for confirming a bank transfer.
type CompletePayoutRequest struct {
	TransactionRef string `json:"transaction_ref" binding:"required,max=200"`
}

// RejectPayoutRequest is the request body for reversing a failed payout.
type RejectPayoutRequest struct {
	OwnerID string  `json:"owner_id" binding:"required,max=100"`
	Amount  float64 `json:"amount" binding:"required,gt=0"`
	Reason  string  `json:"reason" binding:"required,max=500"`
}

// RefundItem is one vendor's share inside a refund request.
type RefundItem struct {
	OwnerID            string  `json:"owner_id" binding:"required,max=100"`
	RefundAmount       float64 `json:"refund_amount" binding:"required,gt=0"`
	CommissionReversal float64 `json:"commission_reversal" binding:"gte=0"`
}

// RecordRefundRequest is the request body for journaling an issued refund.
type RecordRefundRequest struct {
	OrderID  string       `json:"order_id" binding:"required,max=100"`
	RefundID string       `json:"refund_id" binding:"required,max=100"`
	Items    []RefundItem `json:"items" binding:"required,min=1,dive"`
}

// WalletStatusRequest is the request body for freeze/unfreeze.
type WalletStatusRequest struct {
	PerformedBy string `json:"performed_by" binding:"required,max=100"`
	Reason      string `json:"reason" binding:"required,max=500"`
}

// BalanceResponse reports a wallet's cached balances alongside the
// ledger-derived ground truth.
type BalanceResponse struct {
	OwnerID            string  `json:"owner_id"`
	Currency           string  `json:"currency"`
	Status             string  `json:"status"`
	PendingBalance     float64 `json:"pending_balance"`
	Withdrawable       float64 `json:"withdrawable_balance"`
	FrozenBalance      float64 `json:"frozen_balance"`
	Version            int64   `json:"version"`
	LedgerPending      float64 `json:"ledger_pending"`
	LedgerWithdrawable float64 `json:"ledger_withdrawable"`
	IsDrifted          bool    `json:"is_drifted"`
}
