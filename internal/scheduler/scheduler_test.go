package scheduler

import (
	"context"
	"testing"
	"time"

	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func TestScheduler_RunsSweepUnderLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	settlement := mocks.NewMockSettlementService(ctrl)
	reconciliation := mocks.NewMockReconciliationService(ctrl)
	lock := mocks.NewMockJobLock(ctrl)

	swept := make(chan struct{}, 1)
	lock.EXPECT().Acquire(gomock.Any(), "sweep", time.Minute).Return(true, nil).MinTimes(1)
	lock.EXPECT().Release(gomock.Any(), "sweep").Return(nil).MinTimes(1)
	settlement.EXPECT().ClearPendingFunds(gomock.Any()).
		DoAndReturn(func(context.Context) (*ports.SweepReport, error) {
			select {
			case swept <- struct{}{}:
			default:
			}
			return &ports.SweepReport{}, nil
		}).MinTimes(1)

	s := New(settlement, reconciliation, lock, zerolog.Nop(),
		10*time.Millisecond, time.Hour, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep was not fired")
	}
	cancel()
	<-done
}

func TestScheduler_RunsReconcilePass(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	settlement := mocks.NewMockSettlementService(ctrl)
	reconciliation := mocks.NewMockReconciliationService(ctrl)
	lock := mocks.NewMockJobLock(ctrl)

	checked := make(chan struct{}, 1)
	lock.EXPECT().Acquire(gomock.Any(), "reconcile", time.Minute).Return(true, nil).MinTimes(1)
	lock.EXPECT().Release(gomock.Any(), "reconcile").Return(nil).MinTimes(1)
	reconciliation.EXPECT().ReconcileAllWallets(gomock.Any()).
		Return(&ports.ReconcileReport{}, nil).MinTimes(1)
	reconciliation.EXPECT().CheckSystemIntegrity(gomock.Any()).
		DoAndReturn(func(context.Context) (*ports.IntegrityReport, error) {
			select {
			case checked <- struct{}{}:
			default:
			}
			return &ports.IntegrityReport{}, nil
		}).MinTimes(1)

	s := New(settlement, reconciliation, lock, zerolog.Nop(),
		time.Hour, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-checked:
	case <-time.After(2 * time.Second):
		t.Fatal("integrity check was not fired")
	}
	cancel()
	<-done
}

func TestScheduler_SkipsWhenLockHeldElsewhere(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	settlement := mocks.NewMockSettlementService(ctrl)
	reconciliation := mocks.NewMockReconciliationService(ctrl)
	lock := mocks.NewMockJobLock(ctrl)

	// The lock is held by another instance; the job and the release must
	// never run.
	acquired := make(chan struct{}, 1)
	lock.EXPECT().Acquire(gomock.Any(), "sweep", time.Minute).
		DoAndReturn(func(context.Context, string, time.Duration) (bool, error) {
			select {
			case acquired <- struct{}{}:
			default:
			}
			return false, nil
		}).MinTimes(1)

	s := New(settlement, reconciliation, lock, zerolog.Nop(),
		10*time.Millisecond, time.Hour, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock acquisition was not attempted")
	}
	cancel()
	<-done
}
