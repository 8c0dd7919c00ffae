package service

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
	"github.com/rl1809/sales-orchestrator/internal/port"
)

// QueryService serves the read side of the sales API.
type QueryService struct {
	catalog   port.ProductCatalog
	customers port.CustomerDirectory
	journal   port.SalesJournal
}

func NewQueryService(catalog port.ProductCatalog, customers port.CustomerDirectory, journal port.SalesJournal) *QueryService {
	return &QueryService{catalog: catalog, customers: customers, journal: journal}
}

func (s *QueryService) DisplayAvailable(ctx context.Context) ([]domain.Product, error) {
	products, err := s.catalog.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available products: %w", err)
	}
	return products, nil
}

func (s *QueryService) ProductDetails(ctx context.Context, productID string) (domain.Product, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, lookupFailure(domain.ResourceNameProduct, err)
	}
	return product, nil
}

// History returns every sale of a customer, oldest first.
func (s *QueryService) History(ctx context.Context, customerID string) ([]domain.SaleRecord, error) {
	if _, err := s.customers.GetCustomer(ctx, customerID); err != nil {
		return nil, lookupFailure(domain.ResourceNameCustomer, err)
	}
	return collect(s.journal.ListByCustomer(ctx, customerID))
}

func (s *QueryService) ProductSales(ctx context.Context, productID string) ([]domain.SaleRecord, error) {
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return nil, lookupFailure(domain.ResourceNameProduct, err)
	}
	return collect(s.journal.ListByProduct(ctx, productID))
}

func (s *QueryService) Transaction(ctx context.Context, transactionID string) (domain.SaleRecord, error) {
	record, err := s.journal.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.SaleRecord{}, domain.NewPurchaseError(domain.ResourceNameJournal, domain.ErrNotFound, err)
		}
		return domain.SaleRecord{}, fmt.Errorf("get sale %s: %w", transactionID, err)
	}
	return record, nil
}

func collect(seq iter.Seq2[domain.SaleRecord, error]) ([]domain.SaleRecord, error) {
	records := []domain.SaleRecord{}
	for record, err := range seq {
		if err != nil {
			return nil, fmt.Errorf("read sales journal: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}
