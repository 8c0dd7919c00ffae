package handler

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/sales-orchestrator/internal/adapter/storage"
	"github.com/rl1809/sales-orchestrator/internal/core/domain"
	"github.com/rl1809/sales-orchestrator/internal/core/service"
)

func newServices(t *testing.T) (*storage.MemoryAdapter, *service.PurchaseService, *service.QueryService) {
	t.Helper()

	store := storage.NewMemoryAdapter()
	store.PutProduct(domain.Product{ID: "P", Name: "Lamp", Category: "home", Price: decimal.RequireFromString("10.00"), StockCount: 5})
	store.PutProduct(domain.Product{ID: "Z", Name: "Zero", Category: "home", Price: decimal.RequireFromString("1.00"), StockCount: 0})
	store.PutCustomer(domain.Customer{ID: "C", FullName: "Carol", WalletBalance: decimal.RequireFromString("100.00")})
	store.PutCustomer(domain.Customer{ID: "D", FullName: "Dan", WalletBalance: decimal.RequireFromString("5.00")})

	purchases := service.NewPurchaseService(service.Dependencies{
		Catalog:   store,
		Customers: store,
		Stock:     store,
		Wallets:   store,
		Journal:   store,
		Locks:     store,
	}, service.DefaultConfig(), zap.NewNop())
	return store, purchases, service.NewQueryService(store, store, store)
}
