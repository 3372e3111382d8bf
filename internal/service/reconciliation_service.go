package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// ReconciliationServiceImpl implements ports.ReconciliationService. Cached
// balances are only a cache; when they disagree with the journal beyond
// tolerance, the journal wins and the cache is overwritten.
type ReconciliationServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	audit      ports.AuditService
	log        zerolog.Logger
	tolerance  float64
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	audit ports.AuditService,
	log zerolog.Logger,
	tolerance float64,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		audit:      audit,
		log:        log,
		tolerance:  tolerance,
	}
}

// ReconcileAllWallets recomputes every wallet's balances from the journal and
// heals any drift beyond tolerance. Drift is reported, not raised: the job
// exists to converge the cache, and a wallet that fails to heal is retried on
// the next pass.
func (s *ReconciliationServiceImpl) ReconcileAllWallets(ctx context.Context) (*ports.ReconcileReport, error) {
	wallets, err := s.walletRepo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list wallets: %w", err))
	}

	report := &ports.ReconcileReport{}
	for i := range wallets {
		if ctx.Err() != nil {
			break
		}
		w := &wallets[i]
		report.Checked++

		pending, withdrawable, err := s.ledgerRepo.SumByAccount(ctx, w.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("wallet_id", w.ID.String()).Msg("failed to derive wallet balance, skipping")
			continue
		}

		if math.Abs(pending-w.PendingBalance) <= s.tolerance &&
			math.Abs(withdrawable-w.WithdrawableBalance) <= s.tolerance {
			continue
		}

		report.Drifted++
		report.Drifts = append(report.Drifts, ports.WalletDrift{
			WalletID:           w.ID,
			OwnerID:            w.OwnerID,
			Type:               w.Type,
			CachedPending:      w.PendingBalance,
			CachedWithdrawable: w.WithdrawableBalance,
			LedgerPending:      pending,
			LedgerWithdrawable: withdrawable,
		})

		// Gated on the version the sums were derived against: a business
		// operation committing mid-derivation wins, and the wallet is
		// re-derived on the next pass instead of healed with stale sums.
		now := time.Now().UTC()
		if err := s.walletRepo.OverwriteBalances(ctx, w.ID, w.Version, pending, withdrawable, now); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				s.log.Info().Str("wallet_id", w.ID.String()).Msg("wallet changed during reconciliation, deferring heal to next pass")
				continue
			}
			s.log.Warn().Err(err).Str("wallet_id", w.ID.String()).Msg("failed to heal wallet balance")
			continue
		}
		report.Healed++

		before, _ := json.Marshal(map[string]float64{
			"pending_balance":      w.PendingBalance,
			"withdrawable_balance": w.WithdrawableBalance,
		})
		after, _ := json.Marshal(map[string]float64{
			"pending_balance":      pending,
			"withdrawable_balance": withdrawable,
		})
		s.audit.Record(ctx, &domain.AuditLog{
			Action:       domain.AuditActionBalanceReconciled,
			PerformedBy:  domain.SystemActor,
			TargetEntity: "wallet",
			TargetID:     w.ID.String(),
			OwnerID:      w.OwnerID,
			Before:       before,
			After:        after,
			Reason:       "cached balance drifted from ledger",
		})

		s.log.Warn().
			Str("wallet_id", w.ID.String()).
			Str("owner_id", w.OwnerID).
			Float64("cached_pending", w.PendingBalance).
			Float64("cached_withdrawable", w.WithdrawableBalance).
			Float64("ledger_pending", pending).
			Float64("ledger_withdrawable", withdrawable).
			Msg("wallet balance drift healed from ledger")
	}

	report.FinishedAt = time.Now().UTC()
	s.log.Info().
		Int("checked", report.Checked).
		Int("drifted", report.Drifted).
		Int("healed", report.Healed).
		Msg("reconciliation pass finished")

	return report, nil
}

// CheckSystemIntegrity compares total vendor liabilities against the platform
// revenue wallet. A negative platform balance is legal per operation (refund
// commission reversals may overdraw it) but is surfaced here as a shortfall
// for operators to act on.
func (s *ReconciliationServiceImpl) CheckSystemIntegrity(ctx context.Context) (*ports.IntegrityReport, error) {
	vendorPending, vendorWithdrawable, err := s.walletRepo.SumBalancesByType(ctx, domain.WalletTypeVendor)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum vendor balances: %w", err))
	}
	_, platformWithdrawable, err := s.walletRepo.SumBalancesByType(ctx, domain.WalletTypePlatformRevenue)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum platform balances: %w", err))
	}

	report := &ports.IntegrityReport{
		VendorPendingTotal:      vendorPending,
		VendorWithdrawableTotal: vendorWithdrawable,
		VendorLiability:         vendorPending + vendorWithdrawable,
		PlatformWithdrawable:    platformWithdrawable,
		PlatformShortfall:       platformWithdrawable < -s.tolerance,
		CheckedAt:               time.Now().UTC(),
	}

	evt := s.log.Info()
	if report.PlatformShortfall {
		evt = s.log.Warn()
	}
	evt.
		Float64("vendor_liability", report.VendorLiability).
		Float64("platform_withdrawable", report.PlatformWithdrawable).
		Bool("platform_shortfall", report.PlatformShortfall).
		Msg("system integrity checked")

	return report, nil
}

// ComputeBalanceFromLedger is the per-wallet diagnostic behind the drift
// endpoint: ledger-derived versus cached balances for one vendor.
func (s *ReconciliationServiceImpl) ComputeBalanceFromLedger(ctx context.Context, ownerID string) (*ports.BalanceDiagnosis, error) {
	wallet, err := s.walletRepo.GetByOwnerAndType(ctx, ownerID, domain.WalletTypeVendor)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	pending, withdrawable, err := s.ledgerRepo.SumByAccount(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("derive wallet balance: %w", err))
	}

	return &ports.BalanceDiagnosis{
		OwnerID:            ownerID,
		CachedPending:      wallet.PendingBalance,
		CachedWithdrawable: wallet.WithdrawableBalance,
		LedgerPending:      pending,
		LedgerWithdrawable: withdrawable,
		IsDrifted: math.Abs(pending-wallet.PendingBalance) > s.tolerance ||
			math.Abs(withdrawable-wallet.WithdrawableBalance) > s.tolerance,
	}, nil
}
