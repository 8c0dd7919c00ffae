package port

import (
	"context"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

type ProductCatalog interface {
	// GetProduct returns domain.ErrNotFound when the product does not exist
	GetProduct(ctx context.Context, productID string) (domain.Product, error)

	// ListAvailable returns products with a positive stock count
	ListAvailable(ctx context.Context) ([]domain.Product, error)
}

type CustomerDirectory interface {
	// GetCustomer returns domain.ErrNotFound when the customer does not exist
	GetCustomer(ctx context.Context, customerID string) (domain.Customer, error)
}
