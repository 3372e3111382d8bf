package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// LedgerServiceImpl implements ports.LedgerService. Every operation is one
// atomic database transaction over the wallet and ledger stores, gated on the
// wallet version. On ConcurrentModification the caller re-reads and retries
// the whole operation; the service never retries internally.
type LedgerServiceImpl struct {
	walletRepo    ports.WalletRepository
	ledgerRepo    ports.LedgerRepository
	idempCache    ports.IdempotencyCache
	transactor    ports.DBTransactor
	audit         ports.AuditService
	log           zerolog.Logger
	currency      string
	holdingPeriod time.Duration
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	audit ports.AuditService,
	log zerolog.Logger,
	currency string,
	holdingPeriod time.Duration,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo:    walletRepo,
		ledgerRepo:    ledgerRepo,
		idempCache:    idempCache,
		transactor:    transactor,
		audit:         audit,
		log:           log,
		currency:      currency,
		holdingPeriod: holdingPeriod,
	}
}

// walletDelta accumulates one wallet's share of a batch operation so the
// balance update runs once per wallet.
type walletDelta struct {
	wallet *domain.Wallet
	delta  ports.BalanceDelta
	amount float64
}

// RecordSale journals a confirmed order: one PENDING SALE entry per vendor
// share, one CLEARED COMMISSION entry per nonzero commission. Vendor earnings
// mature over the holding period; commission is immediately withdrawable by
// the platform. The whole batch commits or rolls back as one unit.
func (s *LedgerServiceImpl) RecordSale(ctx context.Context, orderID string, items []ports.SaleItem) (*ports.SaleResult, error) {
	if orderID == "" {
		return nil, apperror.Validation("order id is required")
	}
	if len(items) == 0 {
		return nil, apperror.Validation("sale must contain at least one item")
	}
	for _, item := range items {
		if item.VendorEarnings <= 0 {
			return nil, apperror.ErrInvalidAmount()
		}
		if item.Commission < 0 {
			return nil, apperror.ErrInvalidAmount()
		}
	}

	txnID := domain.BuildTransactionID(domain.OpSale, orderID)

	// Layer 1: Redis idempotency check
	if res := s.cachedSaleResult(ctx, txnID); res != nil {
		return res, nil
	}

	// Layer 2: journal idempotency check
	existing, err := s.ledgerRepo.GetByTransactionID(ctx, txnID, domain.EntryTypeSale)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("journal idempotency check: %w", err))
	}
	if existing != nil {
		return &ports.SaleResult{OrderID: orderID, Duplicate: true}, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	clearAt := now.Add(s.holdingPeriod)
	ref := domain.Reference{Kind: domain.ReferenceKindOrder, ID: orderID}
	entryCount := 0
	totalCommission := 0.0

	// One balance delta per wallet, applied once, so an order with several
	// items for the same vendor does not trip its own version gate.
	vendorDeltas := make(map[uuid.UUID]*walletDelta)

	for _, item := range items {
		wallet, err := s.walletRepo.GetOrCreate(ctx, dbTx, item.OwnerID, domain.WalletTypeVendor, s.currency)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get or create vendor wallet: %w", err))
		}

		saleEntry := &domain.LedgerEntry{
			ID:            uuid.New(),
			TransactionID: txnID,
			AccountID:     wallet.ID,
			OwnerID:       item.OwnerID,
			Amount:        item.VendorEarnings,
			Type:          domain.EntryTypeSale,
			Status:        domain.EntryStatusPending,
			Description:   "vendor earnings for order " + orderID,
			Reference:     ref,
			ClearAt:       &clearAt,
			CreatedAt:     now,
		}
		if err := s.ledgerRepo.Create(ctx, dbTx, saleEntry); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create sale entry: %w", err))
		}
		entryCount++

		wd, ok := vendorDeltas[wallet.ID]
		if !ok {
			wd = &walletDelta{wallet: wallet}
			vendorDeltas[wallet.ID] = wd
		}
		wd.delta.Pending += item.VendorEarnings

		totalCommission += item.Commission
	}

	// Sale credits apply even to frozen wallets; freezing only blocks
	// owner-initiated debits.
	for _, wd := range vendorDeltas {
		if err := s.applyDelta(ctx, dbTx, wd.wallet.ID, wd.wallet.Version, wd.delta); err != nil {
			return nil, err
		}
	}

	if totalCommission > 0 {
		platform, err := s.walletRepo.GetOrCreate(ctx, dbTx, domain.PlatformOwnerID, domain.WalletTypePlatformRevenue, s.currency)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get or create platform wallet: %w", err))
		}

		for _, item := range items {
			if item.Commission == 0 {
				continue
			}
			commissionEntry := &domain.LedgerEntry{
				ID:            uuid.New(),
				TransactionID: txnID,
				AccountID:     platform.ID,
				OwnerID:       domain.PlatformOwnerID,
				Amount:        item.Commission,
				Type:          domain.EntryTypeCommission,
				Status:        domain.EntryStatusCleared,
				Description:   "commission for order " + orderID,
				Reference:     ref,
				Metadata:      map[string]string{"vendor_id": item.OwnerID},
				CreatedAt:     now,
			}
			if err := s.ledgerRepo.Create(ctx, dbTx, commissionEntry); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("create commission entry: %w", err))
			}
			entryCount++
		}

		delta := ports.BalanceDelta{Withdrawable: totalCommission}
		if err := s.applyDelta(ctx, dbTx, platform.ID, platform.Version, delta); err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	result := &ports.SaleResult{OrderID: orderID, Entries: entryCount}

	s.audit.Record(ctx, &domain.AuditLog{
		Action:       domain.AuditActionSaleRecorded,
		PerformedBy:  domain.SystemActor,
		TargetEntity: "order",
		TargetID:     orderID,
		Metadata: map[string]string{
			"transaction_id": txnID,
			"entries":        strconv.Itoa(entryCount),
		},
	})
	s.cacheResult(ctx, txnID, result)

	s.log.Info().
		Str("order_id", orderID).
		Int("entries", entryCount).
		Float64("commission", totalCommission).
		Msg("sale recorded")

	return result, nil
}

// RequestPayout reserves withdrawable funds for a payout: a PENDING PAYOUT
// entry of -amount plus an immediate withdrawable decrement, so the same funds
// cannot be requested twice while the bank transfer is in flight.
func (s *LedgerServiceImpl) RequestPayout(ctx context.Context, ownerID string, amount float64, payoutID string) (*ports.PayoutResult, error) {
	if payoutID == "" {
		return nil, apperror.Validation("payout id is required")
	}
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	txnID := domain.BuildTransactionID(domain.OpPayout, payoutID)

	// Layer 1: Redis idempotency check
	if res := s.cachedPayoutResult(ctx, txnID); res != nil {
		return res, nil
	}

	// Layer 2: journal idempotency check
	existing, err := s.ledgerRepo.GetByTransactionID(ctx, txnID, domain.EntryTypePayout)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("journal idempotency check: %w", err))
	}
	if existing != nil {
		return &ports.PayoutResult{Entry: existing, Duplicate: true}, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByOwnerAndTypeTx(ctx, dbTx, ownerID, domain.WalletTypeVendor)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !wallet.CanTransact() {
		return nil, apperror.ErrWalletNotActive()
	}
	if !wallet.CanWithdraw(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		TransactionID: txnID,
		AccountID:     wallet.ID,
		OwnerID:       ownerID,
		Amount:        -amount,
		Type:          domain.EntryTypePayout,
		Status:        domain.EntryStatusPending,
		Description:   "payout request " + payoutID,
		Reference:     domain.Reference{Kind: domain.ReferenceKindPayout, ID: payoutID},
		CreatedAt:     now,
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payout entry: %w", err))
	}

	delta := ports.BalanceDelta{Withdrawable: -amount}
	if err := s.applyDelta(ctx, dbTx, wallet.ID, wallet.Version, delta); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	result := &ports.PayoutResult{Entry: entry}

	s.audit.Record(ctx, &domain.AuditLog{
		Action:       domain.AuditActionPayoutRequested,
		PerformedBy:  ownerID,
		TargetEntity: "payout",
		TargetID:     payoutID,
		OwnerID:      ownerID,
		Metadata:     map[string]string{"amount": formatAmount(amount)},
	})
	s.cacheResult(ctx, txnID, result)

	s.log.Info().
		Str("payout_id", payoutID).
		Str("owner_id", ownerID).
		Float64("amount", amount).
		Msg("payout requested")

	return result, nil
}

// CompletePayout confirms a bank transfer by flipping the PAYOUT entry
// PENDING to CLEARED. No balance change; the funds were reserved at request
// time. The bank reference lands in the audit trail, never on the entry, whose
// content is immutable.
func (s *LedgerServiceImpl) CompletePayout(ctx context.Context, payoutID, transactionRef string) error {
	if payoutID == "" {
		return apperror.Validation("payout id is required")
	}

	txnID := domain.BuildTransactionID(domain.OpPayout, payoutID)
	entry, err := s.ledgerRepo.GetByTransactionID(ctx, txnID, domain.EntryTypePayout)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get payout entry: %w", err))
	}
	if entry == nil {
		return apperror.ErrNotFound("payout")
	}
	if entry.Status == domain.EntryStatusCleared {
		return nil // already completed, idempotent no-op
	}

	// A rejected payout has already been reversed; confirming it afterwards
	// would leak the reserved funds twice.
	reversalID := domain.BuildTransactionID(domain.OpPayoutReversal, payoutID)
	reversal, err := s.ledgerRepo.GetByTransactionID(ctx, reversalID, domain.EntryTypeAdjustment)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("check payout reversal: %w", err))
	}
	if reversal != nil {
		return apperror.ErrImmutableRecord("rejected payout")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The guarded flip is the arbitration point: completion and rejection
	// both contend on the entry row, so exactly one of them moves it out of
	// PENDING no matter how their reads interleave.
	moved, err := s.ledgerRepo.UpdateStatus(ctx, dbTx, entry.ID, domain.EntryStatusPending, domain.EntryStatusCleared)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("clear payout entry: %w", err))
	}
	if !moved {
		current, err := s.ledgerRepo.GetByTransactionID(ctx, txnID, domain.EntryTypePayout)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("re-read payout entry: %w", err))
		}
		if current != nil && current.Status == domain.EntryStatusCleared {
			return nil // concurrent completion won; duplicate
		}
		return apperror.ErrImmutableRecord("rejected payout")
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.audit.Record(ctx, &domain.AuditLog{
		Action:       domain.AuditActionPayoutCompleted,
		PerformedBy:  domain.SystemActor,
		TargetEntity: "payout",
		TargetID:     payoutID,
		OwnerID:      entry.OwnerID,
		Metadata:     map[string]string{"transaction_ref": transactionRef},
	})

	s.log.Info().
		Str("payout_id", payoutID).
		Str("transaction_ref", transactionRef).
		Msg("payout completed")

	return nil
}

// RejectPayout reverses a failed payout: the original debit entry moves
// PENDING to VOIDED and a CLEARED ADJUSTMENT of +amount restores the reserved
// withdrawable funds, both in one transaction. The debit's content is never
// edited; the journal keeps both sides of the story.
func (s *LedgerServiceImpl) RejectPayout(ctx context.Context, payoutID, ownerID string, amount float64, reason string) error {
	if payoutID == "" {
		return apperror.Validation("payout id is required")
	}
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}

	origTxnID := domain.BuildTransactionID(domain.OpPayout, payoutID)
	orig, err := s.ledgerRepo.GetByTransactionID(ctx, origTxnID, domain.EntryTypePayout)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get payout entry: %w", err))
	}
	if orig == nil {
		return apperror.ErrNotFound("payout")
	}
	if orig.Status == domain.EntryStatusCleared {
		return apperror.ErrImmutableRecord("completed payout")
	}

	reversalID := domain.BuildTransactionID(domain.OpPayoutReversal, payoutID)
	reversal, err := s.ledgerRepo.GetByTransactionID(ctx, reversalID, domain.EntryTypeAdjustment)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("journal idempotency check: %w", err))
	}
	if reversal != nil {
		return nil // already reversed, idempotent no-op
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Void the original debit under the same guard CompletePayout clears it
	// with. The two flips contend on the entry row, so a completion that
	// lands after the status read above cannot slip past this transaction
	// and pay out funds the adjustment below is about to restore.
	voided, err := s.ledgerRepo.UpdateStatus(ctx, dbTx, orig.ID, domain.EntryStatusPending, domain.EntryStatusVoided)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("void payout entry: %w", err))
	}
	if !voided {
		current, err := s.ledgerRepo.GetByTransactionID(ctx, origTxnID, domain.EntryTypePayout)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("re-read payout entry: %w", err))
		}
		if current != nil && current.Status == domain.EntryStatusVoided {
			return nil // concurrent rejection won; duplicate
		}
		return apperror.ErrImmutableRecord("completed payout")
	}

	wallet, err := s.walletRepo.GetByIDTx(ctx, dbTx, orig.AccountID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return apperror.ErrNotFound("wallet")
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		TransactionID: reversalID,
		AccountID:     wallet.ID,
		OwnerID:       ownerID,
		Amount:        amount,
		Type:          domain.EntryTypeAdjustment,
		Status:        domain.EntryStatusCleared,
		Description:   "payout reversal: " + reason,
		Reference:     domain.Reference{Kind: domain.ReferenceKindPayout, ID: payoutID},
		CreatedAt:     now,
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("create reversal entry: %w", err))
	}

	delta := ports.BalanceDelta{Withdrawable: amount}
	if err := s.applyDelta(ctx, dbTx, wallet.ID, wallet.Version, delta); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.audit.Record(ctx, &domain.AuditLog{
		Action:       domain.AuditActionPayoutRejected,
		PerformedBy:  domain.SystemActor,
		TargetEntity: "payout",
		TargetID:     payoutID,
		OwnerID:      ownerID,
		Reason:       reason,
		Metadata:     map[string]string{"amount": formatAmount(amount)},
	})

	s.log.Info().
		Str("payout_id", payoutID).
		Str("owner_id", ownerID).
		Float64("amount", amount).
		Str("reason", reason).
		Msg("payout rejected")

	return nil
}

// RecordRefund journals an issued refund: a CLEARED REFUND debit per vendor
// share, deducted from withdrawable funds first and held funds second, plus a
// CLEARED COMMISSION debit against the platform for each commission reversal.
// A refund larger than the vendor's funds drives the balance negative and
// freezes the wallet, capping further vendor debt.
func (s *LedgerServiceImpl) RecordRefund(ctx context.Context, orderID, refundID string, items []ports.RefundItem) error {
	if refundID == "" {
		return apperror.Validation("refund id is required")
	}
	if len(items) == 0 {
		return apperror.Validation("refund must contain at least one item")
	}
	for _, item := range items {
		if item.RefundAmount <= 0 {
			return apperror.ErrInvalidAmount()
		}
		if item.CommissionReversal < 0 {
			return apperror.ErrInvalidAmount()
		}
	}

	txnID := domain.BuildTransactionID(domain.OpRefund, refundID)

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, txnID)
	if err != nil {
		s.log.Warn().Err(err).Str("key", txnID).Msg("redis idempotency check failed, falling through to journal")
	}
	if cached != nil {
		return nil
	}

	// Layer 2: journal idempotency check
	existing, err := s.ledgerRepo.GetByTransactionID(ctx, txnID, domain.EntryTypeRefund)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("journal idempotency check: %w", err))
	}
	if existing != nil {
		return nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	ref := domain.Reference{Kind: domain.ReferenceKindRefund, ID: refundID}
	totalReversal := 0.0
	var frozen []*domain.Wallet

	// One refund total per wallet, settled once against its balances.
	refundTotals := make(map[uuid.UUID]*walletDelta)

	for _, item := range items {
		wallet, err := s.walletRepo.GetOrCreate(ctx, dbTx, item.OwnerID, domain.WalletTypeVendor, s.currency)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get or create vendor wallet: %w", err))
		}

		entry := &domain.LedgerEntry{
			ID:            uuid.New(),
			TransactionID: txnID,
			AccountID:     wallet.ID,
			OwnerID:       item.OwnerID,
			Amount:        -item.RefundAmount,
			Type:          domain.EntryTypeRefund,
			Status:        domain.EntryStatusCleared,
			Description:   "refund for order " + orderID,
			Reference:     ref,
			Metadata:      map[string]string{"order_id": orderID},
			CreatedAt:     now,
		}
		if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
			return apperror.InternalError(fmt.Errorf("create refund entry: %w", err))
		}

		wd, ok := refundTotals[wallet.ID]
		if !ok {
			wd = &walletDelta{wallet: wallet}
			refundTotals[wallet.ID] = wd
		}
		wd.amount += item.RefundAmount

		totalReversal += item.CommissionReversal
	}

	for _, wd := range refundTotals {
		wallet := wd.wallet

		// Deduct withdrawable funds first, held funds second. Whatever
		// neither side covers stays on withdrawable and drives it negative.
		fromWithdrawable := math.Min(wd.amount, math.Max(wallet.WithdrawableBalance, 0))
		remaining := wd.amount - fromWithdrawable
		fromPending := math.Min(remaining, math.Max(wallet.PendingBalance, 0))
		fromWithdrawable += remaining - fromPending

		delta := ports.BalanceDelta{Pending: -fromPending, Withdrawable: -fromWithdrawable}
		if err := s.applyDelta(ctx, dbTx, wallet.ID, wallet.Version, delta); err != nil {
			return err
		}

		if wallet.WithdrawableBalance-fromWithdrawable < 0 && wallet.Status == domain.WalletStatusActive {
			// Circuit breaker: a negative balance freezes the wallet until
			// an operator reviews it. ApplyDelta bumped the version.
			if err := s.walletRepo.UpdateStatus(ctx, dbTx, wallet.ID, wallet.Version+1, domain.WalletStatusFrozen); err != nil {
				if errors.Is(err, domain.ErrVersionConflict) {
					return apperror.ErrConcurrentModification()
				}
				return apperror.InternalError(fmt.Errorf("freeze wallet: %w", err))
			}
			frozen = append(frozen, wallet)
		}
	}

	if totalReversal > 0 {
		platform, err := s.walletRepo.GetOrCreate(ctx, dbTx, domain.PlatformOwnerID, domain.WalletTypePlatformRevenue, s.currency)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get or create platform wallet: %w", err))
		}

		for _, item := range items {
			if item.CommissionReversal == 0 {
				continue
			}
			entry := &domain.LedgerEntry{
				ID:            uuid.New(),
				TransactionID: txnID,
				AccountID:     platform.ID,
				OwnerID:       domain.PlatformOwnerID,
				Amount:        -item.CommissionReversal,
				Type:          domain.EntryTypeCommission,
				Status:        domain.EntryStatusCleared,
				Description:   "commission reversal for order " + orderID,
				Reference:     ref,
				Metadata:      map[string]string{"vendor_id": item.OwnerID},
				CreatedAt:     now,
			}
			if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
				return apperror.InternalError(fmt.Errorf("create commission reversal entry: %w", err))
			}
		}

		// The platform wallet may go negative here; solvency is surfaced by
		// the integrity check, not enforced per operation.
		delta := ports.BalanceDelta{Withdrawable: -totalReversal}
		if err := s.applyDelta(ctx, dbTx, platform.ID, platform.Version, delta); err != nil {
			return err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.audit.Record(ctx, &domain.AuditLog{
		Action:       domain.AuditActionRefundRecorded,
		PerformedBy:  domain.SystemActor,
		TargetEntity: "refund",
		TargetID:     refundID,
		Metadata:     map[string]string{"order_id": orderID, "transaction_id": txnID},
	})
	for _, w := range frozen {
		s.audit.Record(ctx, &domain.AuditLog{
			Action:       domain.AuditActionWalletAutoFrozen,
			PerformedBy:  domain.SystemActor,
			TargetEntity: "wallet",
			TargetID:     w.ID.String(),
			OwnerID:      w.OwnerID,
			Reason:       "refund drove withdrawable balance negative",
			Metadata:     map[string]string{"refund_id": refundID},
		})
	}
	s.cacheResult(ctx, txnID, map[string]string{"refund_id": refundID})

	s.log.Info().
		Str("refund_id", refundID).
		Str("order_id", orderID).
		Int("items", len(items)).
		Int("auto_frozen", len(frozen)).
		Msg("refund recorded")

	return nil
}

// FreezeWallet suspends owner-initiated debits on a vendor wallet.
func (s *LedgerServiceImpl) FreezeWallet(ctx context.Context, ownerID, performedBy, reason string) error {
	return s.setWalletStatus(ctx, ownerID, performedBy, reason,
		domain.WalletStatusFrozen, domain.AuditActionWalletFrozen)
}

// UnfreezeWallet reactivates a frozen vendor wallet. Automatic freezes are
// lifted the same way, by an operator, after review.
func (s *LedgerServiceImpl) UnfreezeWallet(ctx context.Context, ownerID, performedBy, reason string) error {
	return s.setWalletStatus(ctx, ownerID, performedBy, reason,
		domain.WalletStatusActive, domain.AuditActionWalletUnfrozen)
}

func (s *LedgerServiceImpl) setWalletStatus(ctx context.Context, ownerID, performedBy, reason string, status domain.WalletStatus, action domain.AuditAction) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByOwnerAndTypeTx(ctx, dbTx, ownerID, domain.WalletTypeVendor)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return apperror.ErrNotFound("wallet")
	}
	if wallet.Status == domain.WalletStatusClosed {
		return apperror.ErrWalletNotActive()
	}
	if wallet.Status == status {
		return nil // already in the target state
	}

	if err := s.walletRepo.UpdateStatus(ctx, dbTx, wallet.ID, wallet.Version, status); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return apperror.ErrConcurrentModification()
		}
		return apperror.InternalError(fmt.Errorf("update wallet status: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	before, _ := json.Marshal(map[string]string{"status": string(wallet.Status)})
	after, _ := json.Marshal(map[string]string{"status": string(status)})
	s.audit.Record(ctx, &domain.AuditLog{
		Action:       action,
		PerformedBy:  performedBy,
		TargetEntity: "wallet",
		TargetID:     wallet.ID.String(),
		OwnerID:      ownerID,
		Before:       before,
		After:        after,
		Reason:       reason,
	})

	s.log.Info().
		Str("owner_id", ownerID).
		Str("status", string(status)).
		Str("performed_by", performedBy).
		Msg("wallet status changed")

	return nil
}

// applyDelta performs the version-gated balance update, translating a stale
// version into the retryable ConcurrentModification error.
func (s *LedgerServiceImpl) applyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, version int64, delta ports.BalanceDelta) error {
	if err := s.walletRepo.ApplyDelta(ctx, tx, walletID, version, delta); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return apperror.ErrConcurrentModification()
		}
		return apperror.InternalError(fmt.Errorf("apply balance delta: %w", err))
	}
	return nil
}

func (s *LedgerServiceImpl) cachedSaleResult(ctx context.Context, key string) *ports.SaleResult {
	data := s.cacheGet(ctx, key)
	if data == nil {
		return nil
	}
	res := &ports.SaleResult{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil
	}
	res.Duplicate = true
	return res
}

func (s *LedgerServiceImpl) cachedPayoutResult(ctx context.Context, key string) *ports.PayoutResult {
	data := s.cacheGet(ctx, key)
	if data == nil {
		return nil
	}
	res := &ports.PayoutResult{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil
	}
	res.Duplicate = true
	return res
}

func (s *LedgerServiceImpl) cacheGet(ctx context.Context, key string) []byte {
	data, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to journal")
		return nil
	}
	return data
}

// cacheResult stores the committed operation result in Redis, best-effort.
func (s *LedgerServiceImpl) cacheResult(ctx context.Context, key string, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, key, data, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency result in redis")
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
