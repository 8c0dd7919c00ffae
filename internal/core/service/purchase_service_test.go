package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

type fixture struct {
	store     *mockStore
	publisher *mockPublisher
	metrics   *mockMetrics
	svc       *PurchaseService
}

func newFixture(t *testing.T, store *mockStore) *fixture {
	f := &fixture{store: store, publisher: &mockPublisher{}, metrics: &mockMetrics{}}
	f.svc = NewPurchaseService(Dependencies{
		Catalog:   store,
		Customers: store,
		Stock:     store,
		Wallets:   store,
		Journal:   store,
		Locks:     store,
		Events:    f.publisher,
		Metrics:   f.metrics,
	}, DefaultConfig(), zaptest.NewLogger(t))
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func purchase(customer, product string, qty int) domain.PurchaseRequest {
	return domain.PurchaseRequest{CustomerID: customer, ProductID: product, Quantity: qty}
}

func TestPurchase_Success(t *testing.T) {
	f := newFixture(t, newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00"))

	receipt, err := f.svc.Purchase(context.Background(), purchase("C", "P", 3))
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.TransactionID)
	assert.NotEmpty(t, receipt.RequestID)
	assert.Equal(t, 3, receipt.Quantity)
	assert.True(t, receipt.Total.Equal(dec("30.00")))
	assert.True(t, receipt.NewWalletBalance.Equal(dec("70.00")))
	assert.Equal(t, 2, receipt.Product.StockCount)

	assert.Equal(t, 2, f.store.stockOf("P"))
	assert.True(t, f.store.balanceOf("C").Equal(dec("70.00")))
	require.Equal(t, 1, f.store.saleCount())

	record := f.store.sales[0]
	assert.True(t, record.Total.Equal(dec("30.00")))
	assert.True(t, record.UnitPrice.Equal(dec("10.00")))
	assert.Equal(t, domain.SaleStatusCommitted, record.Status)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, domain.SaleEventCommitted, f.publisher.events[0].Type)
	assert.Equal(t, []string{"committed"}, f.metrics.outcomes)
}

func TestPurchase_InsufficientStockAfterSale(t *testing.T) {
	f := newFixture(t, newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00"))
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, purchase("C", "P", 3))
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, purchase("C", "P", 3))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	resource, ok := domain.ResourceOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ResourceNameStock, resource)

	assert.Equal(t, 2, f.store.stockOf("P"))
	assert.True(t, f.store.balanceOf("C").Equal(dec("70.00")))
	assert.Equal(t, 1, f.store.saleCount())
}

func TestPurchase_InsufficientFundsReleasesStock(t *testing.T) {
	f := newFixture(t, newMockStore().withProduct("P", "10.00", 2).withCustomer("D", "5.00"))

	_, err := f.svc.Purchase(context.Background(), purchase("D", "P", 1))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	resource, _ := domain.ResourceOf(err)
	assert.Equal(t, domain.ResourceNameFunds, resource)

	assert.Equal(t, 2, f.store.stockOf("P"))
	assert.True(t, f.store.balanceOf("D").Equal(dec("5.00")))
	assert.Equal(t, 0, f.store.saleCount())
	assert.Equal(t, 1, f.metrics.compensations["stock:true"])
	assert.Empty(t, f.publisher.events)
}

func TestPurchase_ConcurrentSameProduct(t *testing.T) {
	f := newFixture(t, newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00"))

	var successCount, insufficientCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Purchase(context.Background(), purchase("C", "P", 3))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficientCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(1), insufficientCount.Load())
	assert.Equal(t, 2, f.store.stockOf("P"))
}

func TestPurchase_ConcurrentManyBuyers(t *testing.T) {
	store := newMockStore().withProduct("P", "1.00", 20)
	for i := 0; i < 50; i++ {
		store.withCustomer(fmt.Sprintf("user-%d", i), "10.00")
	}
	f := newFixture(t, store)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, err := f.svc.Purchase(context.Background(), purchase(fmt.Sprintf("user-%d", id), "P", 1)); err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(20), successCount.Load())
	assert.Equal(t, 0, f.store.stockOf("P"))
	assert.Equal(t, 20, f.store.saleCount())
}

func TestPurchase_ConcurrentSameCustomerWallet(t *testing.T) {
	f := newFixture(t, newMockStore().withProduct("P", "10.00", 10).withCustomer("C", "25.00"))

	var successCount, declined atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Purchase(context.Background(), purchase("C", "P", 1))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				declined.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), successCount.Load())
	assert.Equal(t, int32(3), declined.Load())
	assert.True(t, f.store.balanceOf("C").Equal(dec("5.00")), "balance %s", f.store.balanceOf("C"))
	assert.Equal(t, 8, f.store.stockOf("P"), "declined attempts give their stock back")
	assert.Equal(t, 2, f.store.saleCount())
}

func TestPurchase_ReplayReturnsOriginalReceipt(t *testing.T) {
	f := newFixture(t, newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00"))
	ctx := context.Background()

	req := purchase("C", "P", 2)
	req.RequestID = "order-42"

	first, err := f.svc.Purchase(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Purchase(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.True(t, second.NewWalletBalance.Equal(dec("80.00")))
	assert.Equal(t, 3, f.store.stockOf("P"))
	assert.Equal(t, 1, f.store.saleCount())
	assert.Equal(t, []string{"committed", "replayed"}, f.metrics.outcomes)
}

func TestPurchase_ReusedRequestIDRejected(t *testing.T) {
	f := newFixture(t, newMockStore().withProduct("P", "10.00", 5).withProduct("Q", "4.00", 5).withCustomer("C", "100.00"))
	ctx := context.Background()

	req := purchase("C", "P", 2)
	req.RequestID = "order-9"
	_, err := f.svc.Purchase(ctx, req)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  domain.PurchaseRequest
	}{
		{"other quantity", purchase("C", "P", 3)},
		{"other product", purchase("C", "Q", 2)},
		{"other customer", purchase("E", "P", 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.RequestID = "order-9"
			_, err := f.svc.Purchase(ctx, tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
			resource, _ := domain.ResourceOf(err)
			assert.Equal(t, domain.ResourceNameRequest, resource)
		})
	}

	assert.Equal(t, 1, f.store.saleCount())
	assert.Equal(t, 3, f.store.stockOf("P"))
	assert.Equal(t, 5, f.store.stockOf("Q"))
	assert.True(t, f.store.balanceOf("C").Equal(dec("80.00")))
}

func TestPurchase_StaleHoldIsReleased(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 4).withCustomer("C", "100.00")
	// An earlier attempt of order-7 held one unit and never reached the journal.
	store.holds[holdKey(domain.ResourceStock, "order-7")] = domain.StockReservation("order-7", "P", 1)
	f := newFixture(t, store)

	req := purchase("C", "P", 3)
	req.RequestID = "order-7"
	_, err := f.svc.Purchase(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	assert.Equal(t, 5, f.store.stockOf("P"))
	assert.True(t, f.store.balanceOf("C").Equal(dec("100.00")))
	assert.Equal(t, 0, f.store.saleCount())
}

func TestPurchase_RequestInProgress(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00")
	store.lockBusy = true
	f := newFixture(t, store)

	_, err := f.svc.Purchase(context.Background(), purchase("C", "P", 1))
	assert.ErrorIs(t, err, domain.ErrRequestInProgress)
	assert.Equal(t, 5, f.store.stockOf("P"))
}

func TestPurchase_Validation(t *testing.T) {
	f := newFixture(t, newMockStore())

	tests := []struct {
		name string
		req  domain.PurchaseRequest
	}{
		{"missing customer", purchase(" ", "P", 1)},
		{"missing product", purchase("C", "", 1)},
		{"zero quantity", purchase("C", "P", 0)},
		{"negative quantity", purchase("C", "P", -2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Purchase(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
			resource, _ := domain.ResourceOf(err)
			assert.Equal(t, domain.ResourceNameRequest, resource)
		})
	}
}

func TestPurchase_UnknownParties(t *testing.T) {
	f := newFixture(t, newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00"))

	_, err := f.svc.Purchase(context.Background(), purchase("ghost", "P", 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	resource, _ := domain.ResourceOf(err)
	assert.Equal(t, domain.ResourceNameCustomer, resource)

	_, err = f.svc.Purchase(context.Background(), purchase("C", "nope", 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	resource, _ = domain.ResourceOf(err)
	assert.Equal(t, domain.ResourceNameProduct, resource)

	assert.Equal(t, 5, f.store.stockOf("P"))
}

func TestPurchase_JournalFailureReleasesBoth(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00")
	store.errAppend = errors.New("disk full")
	f := newFixture(t, store)

	_, err := f.svc.Purchase(context.Background(), purchase("C", "P", 2))
	assert.ErrorIs(t, err, domain.ErrJournalWrite)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, 5, f.store.stockOf("P"))
	assert.True(t, f.store.balanceOf("C").Equal(dec("100.00")))

	// Released newest first
	require.Len(t, f.store.releaseCalls, 2)
	assert.Equal(t, domain.ResourceFunds, f.store.releaseCalls[0].Kind)
	assert.Equal(t, domain.ResourceStock, f.store.releaseCalls[1].Kind)
	assert.Equal(t, []string{"journal_failure"}, f.metrics.outcomes)
}

func TestPurchase_AppendErrorAfterStoreCommits(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00")
	store.errAfterStore = errors.New("connection reset after commit")
	f := newFixture(t, store)

	receipt, err := f.svc.Purchase(context.Background(), purchase("C", "P", 2))
	require.NoError(t, err)
	assert.Equal(t, f.store.sales[0].TransactionID, receipt.TransactionID)
	assert.True(t, receipt.NewWalletBalance.Equal(dec("80.00")))

	assert.Empty(t, f.store.releaseCalls, "a stored sale keeps its holds")
	assert.Equal(t, 3, f.store.stockOf("P"))
	assert.True(t, f.store.balanceOf("C").Equal(dec("80.00")))
	assert.Equal(t, []string{"committed"}, f.metrics.outcomes)
}

func TestPurchase_UnknownJournalOutcomeKeepsHolds(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00")
	store.errAppend = errors.New("timeout")
	store.errLookupAfterAppend = errors.New("journal down")
	f := newFixture(t, store)
	ctx := context.Background()

	req := purchase("C", "P", 2)
	req.RequestID = "order-11"
	_, err := f.svc.Purchase(ctx, req)
	assert.ErrorIs(t, err, domain.ErrJournalWrite)
	assert.NotErrorIs(t, err, domain.ErrReservationRelease)
	assert.Contains(t, err.Error(), "journal down")

	assert.Empty(t, f.store.releaseCalls)
	assert.Equal(t, 3, f.store.stockOf("P"))
	assert.True(t, f.store.balanceOf("C").Equal(dec("80.00")))

	// A retry reuses the holds instead of taking new ones.
	store.mu.Lock()
	store.errAppend = nil
	store.errLookupAfterAppend = nil
	store.mu.Unlock()

	receipt, err := f.svc.Purchase(ctx, req)
	require.NoError(t, err)
	assert.True(t, receipt.NewWalletBalance.Equal(dec("80.00")))
	assert.Equal(t, 3, f.store.stockOf("P"))
	assert.Equal(t, 1, f.store.saleCount())
}

func TestPurchase_ReleaseFailureIsReported(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 5).withCustomer("D", "1.00")
	store.errReleaseStock = errors.New("ledger unreachable")
	f := newFixture(t, store)

	_, err := f.svc.Purchase(context.Background(), purchase("D", "P", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReservationRelease)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "ledger unreachable")

	resource, _ := domain.ResourceOf(err)
	assert.Equal(t, domain.ResourceNameStock, resource)
	assert.Equal(t, 4, f.store.stockOf("P"), "stock stays held until reconciled")
	assert.Equal(t, 1, f.metrics.compensations["stock:false"])
}

func TestPurchase_AmbiguousReserveIsReleased(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00")
	store.errReserveFunds = errors.New("timeout")
	f := newFixture(t, store)

	_, err := f.svc.Purchase(context.Background(), purchase("C", "P", 1))
	require.Error(t, err)

	require.Len(t, f.store.releaseCalls, 2)
	assert.Equal(t, domain.ResourceFunds, f.store.releaseCalls[0].Kind)
	assert.Equal(t, 5, f.store.stockOf("P"))
}

func TestPurchase_CompensatesAfterCallerCancels(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.reserveFundsHook = func(context.Context) { cancel() }
	store.errReserveFunds = context.Canceled
	f := newFixture(t, store)

	_, err := f.svc.Purchase(ctx, purchase("C", "P", 2))
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 5, f.store.stockOf("P"))
	for _, ok := range f.store.releaseCtxOK {
		assert.True(t, ok, "release must not see the caller's cancellation")
	}
}

func TestPurchase_LookupErrorStopsEarly(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00")
	store.errGetRequest = errors.New("journal down")
	f := newFixture(t, store)

	_, err := f.svc.Purchase(context.Background(), purchase("C", "P", 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrJournalWrite)
	assert.Equal(t, 5, f.store.stockOf("P"))
	assert.Empty(t, f.store.releaseCalls)
}

func TestPurchase_PublishFailureDoesNotFailSale(t *testing.T) {
	f := newFixture(t, newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00"))
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.Purchase(context.Background(), purchase("C", "P", 1))
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.saleCount())
}

func TestReverse(t *testing.T) {
	f := newFixture(t, newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00"))
	ctx := context.Background()

	receipt, err := f.svc.Purchase(ctx, purchase("C", "P", 3))
	require.NoError(t, err)

	reversed, err := f.svc.Reverse(ctx, receipt.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusReversed, reversed.Status)
	require.Len(t, f.store.releaseCalls, 2)
	assert.Equal(t, domain.ResourceFunds, f.store.releaseCalls[0].Kind)
	assert.Equal(t, 5, f.store.stockOf("P"))
	assert.True(t, f.store.balanceOf("C").Equal(dec("100.00")))

	again, err := f.svc.Reverse(ctx, receipt.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusReversed, again.Status)
	assert.Equal(t, 5, f.store.stockOf("P"))

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, domain.SaleEventReversed, f.publisher.events[1].Type)
}

func TestReverse_RefusesWhenHoldGone(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00")
	f := newFixture(t, store)
	ctx := context.Background()

	receipt, err := f.svc.Purchase(ctx, purchase("C", "P", 3))
	require.NoError(t, err)

	// The ledgers lost both markers without crediting anything.
	store.mu.Lock()
	clear(store.holds)
	store.mu.Unlock()

	_, err = f.svc.Reverse(ctx, receipt.TransactionID)
	assert.ErrorIs(t, err, domain.ErrReservationNotHeld)
	resource, _ := domain.ResourceOf(err)
	assert.Equal(t, domain.ResourceNameFunds, resource)

	record, err := f.store.GetByID(ctx, receipt.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusCommitted, record.Status)
	assert.Equal(t, 2, f.store.stockOf("P"))
	assert.True(t, f.store.balanceOf("C").Equal(dec("70.00")))
	require.Len(t, f.store.releaseCalls, 1, "stock is not touched once funds are missing")
	assert.Len(t, f.publisher.events, 1)
}

func TestReverse_StockHoldGoneAfterRefund(t *testing.T) {
	store := newMockStore().withProduct("P", "10.00", 5).withCustomer("C", "100.00")
	f := newFixture(t, store)
	ctx := context.Background()

	receipt, err := f.svc.Purchase(ctx, purchase("C", "P", 3))
	require.NoError(t, err)

	store.mu.Lock()
	delete(store.holds, holdKey(domain.ResourceStock, receipt.RequestID))
	store.mu.Unlock()

	_, err = f.svc.Reverse(ctx, receipt.TransactionID)
	assert.ErrorIs(t, err, domain.ErrReservationRelease)
	resource, _ := domain.ResourceOf(err)
	assert.Equal(t, domain.ResourceNameStock, resource)

	record, _ := f.store.GetByID(ctx, receipt.TransactionID)
	assert.Equal(t, domain.SaleStatusCommitted, record.Status)
	assert.True(t, f.store.balanceOf("C").Equal(dec("100.00")))
}

func TestReverse_NotFound(t *testing.T) {
	f := newFixture(t, newMockStore())

	_, err := f.svc.Reverse(context.Background(), "tx-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	resource, _ := domain.ResourceOf(err)
	assert.Equal(t, domain.ResourceNameJournal, resource)
}
