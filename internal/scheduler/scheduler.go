package scheduler

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// Lock names shared by every instance of the service.
const (
	lockSweep     = "sweep"
	lockReconcile = "reconcile"
)

// Scheduler fires the pending-funds sweep and the reconciliation pass on
// their configured intervals. Each firing takes a distributed lock first, so
// a fleet of instances runs every job exactly once per tick.
type Scheduler struct {
	settlement     ports.SettlementService
	reconciliation ports.ReconciliationService
	lock           ports.JobLock
	log            zerolog.Logger
	sweepEvery     time.Duration
	reconcileEvery time.Duration
	lockTTL        time.Duration
}

// New creates a Scheduler.
func New(
	settlement ports.SettlementService,
	reconciliation ports.ReconciliationService,
	lock ports.JobLock,
	log zerolog.Logger,
	sweepEvery, reconcileEvery, lockTTL time.Duration,
) *Scheduler {
	return &Scheduler{
		settlement:     settlement,
		reconciliation: reconciliation,
		lock:           lock,
		log:            log,
		sweepEvery:     sweepEvery,
		reconcileEvery: reconcileEvery,
		lockTTL:        lockTTL,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(s.sweepEvery)
	defer sweepTicker.Stop()
	reconcileTicker := time.NewTicker(s.reconcileEvery)
	defer reconcileTicker.Stop()

	s.log.Info().
		Dur("sweep_interval", s.sweepEvery).
		Dur("reconcile_interval", s.reconcileEvery).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-sweepTicker.C:
			s.runLocked(ctx, lockSweep, s.runSweep)
		case <-reconcileTicker.C:
			s.runLocked(ctx, lockReconcile, s.runReconcile)
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context) error {
	_, err := s.settlement.ClearPendingFunds(ctx)
	return err
}

func (s *Scheduler) runReconcile(ctx context.Context) error {
	if _, err := s.reconciliation.ReconcileAllWallets(ctx); err != nil {
		return err
	}
	_, err := s.reconciliation.CheckSystemIntegrity(ctx)
	return err
}

func (s *Scheduler) runLocked(ctx context.Context, name string, job func(context.Context) error) {
	ok, err := s.lock.Acquire(ctx, name, s.lockTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("job", name).Msg("failed to acquire job lock")
		return
	}
	if !ok {
		s.log.Debug().Str("job", name).Msg("job lock held by another instance, skipping")
		return
	}
	defer func() {
		// Release with a fresh context so shutdown does not leak the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx, name); err != nil {
			s.log.Warn().Err(err).Str("job", name).Msg("failed to release job lock")
		}
	}()

	if err := job(ctx); err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
	}
}
