package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

type markerKey struct {
	kind      domain.ResourceKind
	requestID string
}

type marker struct {
	reservation domain.Reservation
	status      domain.ReservationStatus
}

// MemoryAdapter keeps every ledger, the journal and the request locks in
// process memory behind one mutex. It backs the memory storage mode and the
// stress tool.
type MemoryAdapter struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	customers map[string]domain.Customer
	markers   map[markerKey]marker
	sales     []domain.SaleRecord
	byTxID    map[string]int
	byReqID   map[string]int
	locks     map[string]time.Time
	now       func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products:  make(map[string]domain.Product),
		customers: make(map[string]domain.Customer),
		markers:   make(map[markerKey]marker),
		byTxID:    make(map[string]int),
		byReqID:   make(map[string]int),
		locks:     make(map[string]time.Time),
		now:       time.Now,
	}
}

func (m *MemoryAdapter) PutProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MemoryAdapter) PutCustomer(c domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	return p, nil
}

func (m *MemoryAdapter) ListAvailable(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Product
	for _, p := range m.products {
		if p.Available() {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *MemoryAdapter) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[customerID]
	if !ok {
		return domain.Customer{}, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}
	return c, nil
}

func (m *MemoryAdapter) ReserveStock(ctx context.Context, requestID, productID string, quantity int) (domain.Reservation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := markerKey{kind: domain.ResourceStock, requestID: requestID}
	if held, ok := m.markers[key]; ok && held.status == domain.ReservationHeld {
		return held.reservation, m.products[held.reservation.OwnerID].StockCount, nil
	}

	p, ok := m.products[productID]
	if !ok {
		return domain.Reservation{}, 0, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	if p.StockCount < quantity {
		return domain.Reservation{}, p.StockCount, fmt.Errorf("product %s has %d left, %d requested: %w",
			productID, p.StockCount, quantity, domain.ErrInsufficientStock)
	}

	p.StockCount -= quantity
	m.products[productID] = p

	r := domain.StockReservation(requestID, productID, quantity)
	m.markers[key] = marker{reservation: r, status: domain.ReservationHeld}
	return r, p.StockCount, nil
}

func (m *MemoryAdapter) ReleaseStock(ctx context.Context, r domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := markerKey{kind: domain.ResourceStock, requestID: r.RequestID}
	held, ok := m.markers[key]
	if !ok {
		return fmt.Errorf("stock reservation for request %s: %w", r.RequestID, domain.ErrReservationNotHeld)
	}
	if held.status != domain.ReservationHeld {
		return nil
	}
	if p, ok := m.products[held.reservation.OwnerID]; ok {
		p.StockCount += held.reservation.Quantity
		m.products[p.ID] = p
	}
	held.status = domain.ReservationReleased
	m.markers[key] = held
	return nil
}

func (m *MemoryAdapter) ReserveFunds(ctx context.Context, requestID, customerID string, amount decimal.Decimal) (domain.Reservation, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := markerKey{kind: domain.ResourceFunds, requestID: requestID}
	if held, ok := m.markers[key]; ok && held.status == domain.ReservationHeld {
		return held.reservation, m.customers[held.reservation.OwnerID].WalletBalance, nil
	}

	c, ok := m.customers[customerID]
	if !ok {
		return domain.Reservation{}, decimal.Zero, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}
	if c.WalletBalance.LessThan(amount) {
		return domain.Reservation{}, c.WalletBalance, fmt.Errorf("customer %s has %s, %s requested: %w",
			customerID, c.WalletBalance, amount, domain.ErrInsufficientFunds)
	}

	c.WalletBalance = c.WalletBalance.Sub(amount)
	m.customers[customerID] = c

	r := domain.FundsReservation(requestID, customerID, amount)
	m.markers[key] = marker{reservation: r, status: domain.ReservationHeld}
	return r, c.WalletBalance, nil
}

func (m *MemoryAdapter) ReleaseFunds(ctx context.Context, r domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := markerKey{kind: domain.ResourceFunds, requestID: r.RequestID}
	held, ok := m.markers[key]
	if !ok {
		return fmt.Errorf("funds reservation for request %s: %w", r.RequestID, domain.ErrReservationNotHeld)
	}
	if held.status != domain.ReservationHeld {
		return nil
	}
	if c, ok := m.customers[held.reservation.OwnerID]; ok {
		c.WalletBalance = c.WalletBalance.Add(held.reservation.Amount)
		m.customers[c.ID] = c
	}
	held.status = domain.ReservationReleased
	m.markers[key] = held
	return nil
}

func (m *MemoryAdapter) Append(ctx context.Context, record domain.SaleRecord) (domain.SaleRecord, error) {
	if record.TransactionID == "" || record.RequestID == "" {
		return domain.SaleRecord{}, errors.New("sale record needs transaction and request id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.byReqID[record.RequestID]; ok {
		return m.sales[i], nil
	}
	if _, ok := m.byTxID[record.TransactionID]; ok {
		return domain.SaleRecord{}, fmt.Errorf("transaction %s already recorded", record.TransactionID)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = m.now().UTC()
	}

	m.sales = append(m.sales, record)
	m.byTxID[record.TransactionID] = len(m.sales) - 1
	m.byReqID[record.RequestID] = len(m.sales) - 1
	return record, nil
}

func (m *MemoryAdapter) GetByID(ctx context.Context, transactionID string) (domain.SaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byTxID[transactionID]
	if !ok {
		return domain.SaleRecord{}, fmt.Errorf("sale %s: %w", transactionID, domain.ErrNotFound)
	}
	return m.sales[i], nil
}

func (m *MemoryAdapter) GetByRequestID(ctx context.Context, requestID string) (domain.SaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byReqID[requestID]
	if !ok {
		return domain.SaleRecord{}, fmt.Errorf("sale for request %s: %w", requestID, domain.ErrNotFound)
	}
	return m.sales[i], nil
}

func (m *MemoryAdapter) ListByCustomer(ctx context.Context, customerID string) iter.Seq2[domain.SaleRecord, error] {
	return m.list(ctx, func(r domain.SaleRecord) bool { return r.CustomerID == customerID })
}

func (m *MemoryAdapter) ListByProduct(ctx context.Context, productID string) iter.Seq2[domain.SaleRecord, error] {
	return m.list(ctx, func(r domain.SaleRecord) bool { return r.ProductID == productID })
}

func (m *MemoryAdapter) list(ctx context.Context, match func(domain.SaleRecord) bool) iter.Seq2[domain.SaleRecord, error] {
	return func(yield func(domain.SaleRecord, error) bool) {
		m.mu.Lock()
		var matched []domain.SaleRecord
		for _, r := range m.sales {
			if match(r) {
				matched = append(matched, r)
			}
		}
		m.mu.Unlock()

		slices.SortStableFunc(matched, func(a, b domain.SaleRecord) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
		for _, r := range matched {
			if err := ctx.Err(); err != nil {
				yield(domain.SaleRecord{}, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (m *MemoryAdapter) MarkReversed(ctx context.Context, transactionID string) (domain.SaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byTxID[transactionID]
	if !ok {
		return domain.SaleRecord{}, fmt.Errorf("sale %s: %w", transactionID, domain.ErrNotFound)
	}
	m.sales[i].Status = domain.SaleStatusReversed
	return m.sales[i], nil
}

func (m *MemoryAdapter) Acquire(ctx context.Context, requestID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expires, ok := m.locks[requestID]; ok && now.Before(expires) {
		return false, nil
	}
	m.locks[requestID] = now.Add(ttl)
	return true, nil
}

func (m *MemoryAdapter) Release(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, requestID)
	return nil
}
