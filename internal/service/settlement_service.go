package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService: the scheduled
// sweep that matures held vendor funds once their holding window has passed.
type SettlementServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
	batchSize  int
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
	batchSize int,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		transactor: transactor,
		log:        log,
		batchSize:  batchSize,
	}
}

// ClearPendingFunds selects matured PENDING SALE entries and settles each in
// its own transaction, so one poisoned entry cannot block or roll back the
// rest of the batch. Failed entries stay PENDING and are retried next run.
func (s *SettlementServiceImpl) ClearPendingFunds(ctx context.Context) (*ports.SweepReport, error) {
	entries, err := s.ledgerRepo.ListMatured(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list matured entries: %w", err))
	}

	report := &ports.SweepReport{}
	for i := range entries {
		if ctx.Err() != nil {
			break
		}
		if err := s.clearEntry(ctx, &entries[i]); err != nil {
			report.Failed++
			s.log.Warn().Err(err).
				Str("entry_id", entries[i].ID.String()).
				Str("owner_id", entries[i].OwnerID).
				Msg("failed to clear matured entry, will retry next sweep")
			continue
		}
		report.Cleared++
	}

	if report.Cleared > 0 || report.Failed > 0 {
		s.log.Info().
			Int("cleared", report.Cleared).
			Int("failed", report.Failed).
			Msg("pending funds sweep finished")
	}
	return report, nil
}

// clearEntry settles one matured entry: status PENDING to CLEARED, and the
// amount moves from the wallet's pending funds to withdrawable funds. The
// wallet is re-read inside the transaction so the version gate sees the
// current version, not the one from the batch scan.
func (s *SettlementServiceImpl) clearEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	moved, err := s.ledgerRepo.UpdateStatus(ctx, dbTx, entry.ID, domain.EntryStatusPending, domain.EntryStatusCleared)
	if err != nil {
		return fmt.Errorf("clear entry status: %w", err)
	}
	if !moved {
		// Another sweeper instance got here first.
		return nil
	}

	wallet, err := s.walletRepo.GetByIDTx(ctx, dbTx, entry.AccountID)
	if err != nil {
		return fmt.Errorf("get wallet: %w", err)
	}
	if wallet == nil {
		return fmt.Errorf("wallet %s not found for matured entry", entry.AccountID)
	}

	delta := ports.BalanceDelta{Pending: -entry.Amount, Withdrawable: entry.Amount}
	if err := s.walletRepo.ApplyDelta(ctx, dbTx, wallet.ID, wallet.Version, delta); err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
