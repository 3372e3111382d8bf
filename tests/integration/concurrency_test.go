package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	redisStorage "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/service"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentPayoutRequests hammers one wallet with concurrent payout
// requests. The version gate serialises the writes: racing requests that read
// the same wallet version lose with a conflict, and the balance can never be
// spent twice or driven below zero.
func TestConcurrentPayoutRequests(t *testing.T) {
	app := newTestApp(t, 0)

	app.recordSale(t, "order-conc", "vendor-a", 10000, 0)
	app.sweep(t)

	concurrency := 20
	payoutAmount := 1000.0

	var wg sync.WaitGroup
	var successCount, conflictCount, exhaustedCount, otherCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			body := fmt.Sprintf(`{"owner_id":"vendor-a","amount":%g,"payout_id":"po-conc-%d"}`, payoutAmount, idx)
			resp, err := http.Post(app.server.URL+"/internal/v1/payouts", "application/json", bytes.NewBufferString(body))
			if err != nil {
				otherCount.Add(1)
				return
			}
			defer resp.Body.Close()
			_, _ = io.ReadAll(resp.Body)

			switch resp.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusConflict:
				conflictCount.Add(1)
			case http.StatusPaymentRequired:
				exhaustedCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	t.Logf("Concurrent payouts: %d succeeded, %d conflicted, %d exhausted (out of %d)",
		successCount.Load(), conflictCount.Load(), exhaustedCount.Load(), concurrency)

	require.Equal(t, int64(concurrency),
		successCount.Load()+conflictCount.Load()+exhaustedCount.Load()+otherCount.Load())
	assert.Equal(t, int64(0), otherCount.Load(), "only 201, 409 or 402 are acceptable outcomes")
	assert.Greater(t, successCount.Load(), int64(0), "at least one payout must win")
	assert.LessOrEqual(t, successCount.Load(), int64(10), "no more than the balance can be reserved")

	// Exactly the winners' funds left the wallet, never more.
	bal := app.balance(t, "vendor-a")
	want := 10000 - payoutAmount*float64(successCount.Load())
	assert.Equal(t, want, bal["withdrawable_balance"])
	assert.GreaterOrEqual(t, bal["withdrawable_balance"].(float64), 0.0)
}

// interceptLedgerRepo delegates to an inner repository and runs a hook before
// each idempotency lookup, to interleave a second operation at a precise
// point inside the first.
type interceptLedgerRepo struct {
	ports.LedgerRepository
	beforeLookup func(et domain.EntryType)
}

func (r *interceptLedgerRepo) GetByTransactionID(ctx context.Context, transactionID string, et domain.EntryType) (*domain.LedgerEntry, error) {
	if r.beforeLookup != nil {
		r.beforeLookup(et)
	}
	return r.LedgerRepository.GetByTransactionID(ctx, transactionID, et)
}

// A bank confirmation that lands between a rejection's status read and its
// write must win: the rejection finds the entry already out of PENDING,
// refuses, and never credits the funds back. The money leaves exactly once.
func TestPayoutRejectLosesToConcurrentCompletion(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	walletRepo := newInMemoryWalletRepo()
	ledgerRepo := newInMemoryLedgerRepo()
	transactor := newInMemoryTransactor()
	cache := redisStorage.NewIdempotencyCache(rdb)
	log := logger.New("error", false)
	auditSvc := service.NewAuditService(newInMemoryAuditRepo(), log)

	completeSvc := service.NewLedgerService(walletRepo, ledgerRepo, cache, transactor, auditSvc, log, "USD", 0)

	ctx := context.Background()
	var once sync.Once
	intercepted := &interceptLedgerRepo{LedgerRepository: ledgerRepo}
	intercepted.beforeLookup = func(et domain.EntryType) {
		// The reversal-existence lookup is the last read before the
		// rejection opens its transaction; sneak the completion in there.
		if et != domain.EntryTypeAdjustment {
			return
		}
		once.Do(func() {
			require.NoError(t, completeSvc.CompletePayout(ctx, "po-race", "bank-tx-77"))
		})
	}
	rejectSvc := service.NewLedgerService(walletRepo, intercepted, cache, transactor, auditSvc, log, "USD", 0)

	_, err := completeSvc.RecordSale(ctx, "order-race", []ports.SaleItem{
		{OwnerID: "vendor-a", VendorEarnings: 1000},
	})
	require.NoError(t, err)
	settlement := service.NewSettlementService(walletRepo, ledgerRepo, transactor, log, 100)
	_, err = settlement.ClearPendingFunds(ctx)
	require.NoError(t, err)
	_, err = completeSvc.RequestPayout(ctx, "vendor-a", 400, "po-race")
	require.NoError(t, err)

	err = rejectSvc.RejectPayout(ctx, "po-race", "vendor-a", 400, "bank account closed")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_004", appErr.Code)

	// The payout stands and no reversal credit was written.
	entry, err := ledgerRepo.GetByReference(ctx,
		domain.Reference{Kind: domain.ReferenceKindPayout, ID: "po-race"}, domain.EntryTypePayout)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.EntryStatusCleared, entry.Status)
	reversal, err := ledgerRepo.GetByTransactionID(ctx,
		domain.BuildTransactionID(domain.OpPayoutReversal, "po-race"), domain.EntryTypeAdjustment)
	require.NoError(t, err)
	assert.Nil(t, reversal)

	wallet, err := walletRepo.GetByOwnerAndType(ctx, "vendor-a", domain.WalletTypeVendor)
	require.NoError(t, err)
	assert.InDelta(t, 600, wallet.WithdrawableBalance, 0.001)
	_, derived, err := ledgerRepo.SumByAccount(ctx, wallet.ID)
	require.NoError(t, err)
	assert.InDelta(t, 600, derived, 0.001)
}
