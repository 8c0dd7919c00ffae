package service

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

// mockStore implements every port the services use. Each err* field, when
// set, makes the matching call fail without touching state.
type mockStore struct {
	mu sync.Mutex

	products  map[string]domain.Product
	customers map[string]domain.Customer
	holds     map[string]domain.Reservation // kind:requestID
	released  map[string]bool
	sales     []domain.SaleRecord
	locks     map[string]bool

	errGetRequest    error
	errReserveStock  error
	errReserveFunds  error
	errReleaseStock  error
	errReleaseFunds  error
	errAppend        error
	lockBusy         bool

	// errAfterStore makes Append store the record and still fail.
	errAfterStore error
	// errLookupAfterAppend fails GetByRequestID once Append has been called.
	errLookupAfterAppend error
	appendCalled         bool
	reserveFundsHook func(ctx context.Context)

	releaseCalls []domain.Reservation
	releaseCtxOK []bool
}

func newMockStore() *mockStore {
	return &mockStore{
		products:  make(map[string]domain.Product),
		customers: make(map[string]domain.Customer),
		holds:     make(map[string]domain.Reservation),
		released:  make(map[string]bool),
		locks:     make(map[string]bool),
	}
}

func (m *mockStore) withProduct(id string, price string, stock int) *mockStore {
	m.products[id] = domain.Product{ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price), StockCount: stock}
	return m
}

func (m *mockStore) withCustomer(id string, balance string) *mockStore {
	m.customers[id] = domain.Customer{ID: id, FullName: "Customer " + id, WalletBalance: decimal.RequireFromString(balance)}
	return m
}

func (m *mockStore) stockOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].StockCount
}

func (m *mockStore) balanceOf(id string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customers[id].WalletBalance
}

func (m *mockStore) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

func holdKey(kind domain.ResourceKind, requestID string) string {
	return fmt.Sprintf("%s:%s", kind, requestID)
}

func (m *mockStore) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	return p, nil
}

func (m *mockStore) ListAvailable(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		if p.Available() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockStore) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[customerID]
	if !ok {
		return domain.Customer{}, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}
	return c, nil
}

func (m *mockStore) ReserveStock(ctx context.Context, requestID, productID string, quantity int) (domain.Reservation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errReserveStock != nil {
		return domain.Reservation{}, 0, m.errReserveStock
	}
	if r, ok := m.holds[holdKey(domain.ResourceStock, requestID)]; ok {
		return r, m.products[productID].StockCount, nil
	}
	p, ok := m.products[productID]
	if !ok {
		return domain.Reservation{}, 0, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	if p.StockCount < quantity {
		return domain.Reservation{}, p.StockCount, domain.ErrInsufficientStock
	}
	p.StockCount -= quantity
	m.products[productID] = p
	r := domain.StockReservation(requestID, productID, quantity)
	m.holds[holdKey(domain.ResourceStock, requestID)] = r
	return r, p.StockCount, nil
}

func (m *mockStore) ReleaseStock(ctx context.Context, r domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalls = append(m.releaseCalls, r)
	m.releaseCtxOK = append(m.releaseCtxOK, ctx.Err() == nil)
	if m.errReleaseStock != nil {
		return m.errReleaseStock
	}
	key := holdKey(domain.ResourceStock, r.RequestID)
	held, ok := m.holds[key]
	if !ok {
		if m.released[key] {
			return nil
		}
		return domain.ErrReservationNotHeld
	}
	p := m.products[held.OwnerID]
	p.StockCount += held.Quantity
	m.products[held.OwnerID] = p
	delete(m.holds, key)
	m.released[key] = true
	return nil
}

func (m *mockStore) ReserveFunds(ctx context.Context, requestID, customerID string, amount decimal.Decimal) (domain.Reservation, decimal.Decimal, error) {
	if m.reserveFundsHook != nil {
		m.reserveFundsHook(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errReserveFunds != nil {
		return domain.Reservation{}, decimal.Zero, m.errReserveFunds
	}
	if r, ok := m.holds[holdKey(domain.ResourceFunds, requestID)]; ok {
		return r, m.customers[customerID].WalletBalance, nil
	}
	c, ok := m.customers[customerID]
	if !ok {
		return domain.Reservation{}, decimal.Zero, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}
	if c.WalletBalance.LessThan(amount) {
		return domain.Reservation{}, c.WalletBalance, domain.ErrInsufficientFunds
	}
	c.WalletBalance = c.WalletBalance.Sub(amount)
	m.customers[customerID] = c
	r := domain.FundsReservation(requestID, customerID, amount)
	m.holds[holdKey(domain.ResourceFunds, requestID)] = r
	return r, c.WalletBalance, nil
}

func (m *mockStore) ReleaseFunds(ctx context.Context, r domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalls = append(m.releaseCalls, r)
	m.releaseCtxOK = append(m.releaseCtxOK, ctx.Err() == nil)
	if m.errReleaseFunds != nil {
		return m.errReleaseFunds
	}
	key := holdKey(domain.ResourceFunds, r.RequestID)
	held, ok := m.holds[key]
	if !ok {
		if m.released[key] {
			return nil
		}
		return domain.ErrReservationNotHeld
	}
	c := m.customers[held.OwnerID]
	c.WalletBalance = c.WalletBalance.Add(held.Amount)
	m.customers[held.OwnerID] = c
	delete(m.holds, key)
	m.released[key] = true
	return nil
}

func (m *mockStore) Append(ctx context.Context, record domain.SaleRecord) (domain.SaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalled = true
	if m.errAppend != nil {
		return domain.SaleRecord{}, m.errAppend
	}
	for _, s := range m.sales {
		if s.RequestID == record.RequestID {
			return s, nil
		}
	}
	m.sales = append(m.sales, record)
	if m.errAfterStore != nil {
		return domain.SaleRecord{}, m.errAfterStore
	}
	return record, nil
}

func (m *mockStore) find(match func(domain.SaleRecord) bool) (domain.SaleRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sales {
		if match(s) {
			return s, true
		}
	}
	return domain.SaleRecord{}, false
}

func (m *mockStore) GetByID(ctx context.Context, transactionID string) (domain.SaleRecord, error) {
	if s, ok := m.find(func(s domain.SaleRecord) bool { return s.TransactionID == transactionID }); ok {
		return s, nil
	}
	return domain.SaleRecord{}, domain.ErrNotFound
}

func (m *mockStore) GetByRequestID(ctx context.Context, requestID string) (domain.SaleRecord, error) {
	if m.errGetRequest != nil {
		return domain.SaleRecord{}, m.errGetRequest
	}
	m.mu.Lock()
	lookupErr := m.errLookupAfterAppend
	if !m.appendCalled {
		lookupErr = nil
	}
	m.mu.Unlock()
	if lookupErr != nil {
		return domain.SaleRecord{}, lookupErr
	}
	if s, ok := m.find(func(s domain.SaleRecord) bool { return s.RequestID == requestID }); ok {
		return s, nil
	}
	return domain.SaleRecord{}, domain.ErrNotFound
}

func (m *mockStore) ListByCustomer(ctx context.Context, customerID string) iter.Seq2[domain.SaleRecord, error] {
	return m.list(func(s domain.SaleRecord) bool { return s.CustomerID == customerID })
}

func (m *mockStore) ListByProduct(ctx context.Context, productID string) iter.Seq2[domain.SaleRecord, error] {
	return m.list(func(s domain.SaleRecord) bool { return s.ProductID == productID })
}

func (m *mockStore) list(match func(domain.SaleRecord) bool) iter.Seq2[domain.SaleRecord, error] {
	return func(yield func(domain.SaleRecord, error) bool) {
		m.mu.Lock()
		snapshot := append([]domain.SaleRecord(nil), m.sales...)
		m.mu.Unlock()
		for _, s := range snapshot {
			if match(s) && !yield(s, nil) {
				return
			}
		}
	}
}

func (m *mockStore) MarkReversed(ctx context.Context, transactionID string) (domain.SaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sales {
		if m.sales[i].TransactionID == transactionID {
			m.sales[i].Status = domain.SaleStatusReversed
			return m.sales[i], nil
		}
	}
	return domain.SaleRecord{}, domain.ErrNotFound
}

func (m *mockStore) Acquire(ctx context.Context, requestID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockBusy || m.locks[requestID] {
		return false, nil
	}
	m.locks[requestID] = true
	return true, nil
}

func (m *mockStore) Release(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, requestID)
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.SaleEvent
	err    error
}

func (p *mockPublisher) Publish(ctx context.Context, event domain.SaleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type mockMetrics struct {
	mu            sync.Mutex
	outcomes      []string
	compensations map[string]int
}

func (m *mockMetrics) ObservePurchase(outcome string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockMetrics) ObserveCompensation(resource string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.compensations == nil {
		m.compensations = make(map[string]int)
	}
	m.compensations[fmt.Sprintf("%s:%t", resource, ok)]++
}

func (m *mockMetrics) ObserveEventPublish(ok bool) {}
