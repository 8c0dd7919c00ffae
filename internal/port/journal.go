package port

import (
	"context"
	"iter"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

type SalesJournal interface {
	// Append stores a committed sale once per request ID. Appending a record
	// whose request ID is already stored returns the stored record.
	Append(ctx context.Context, record domain.SaleRecord) (domain.SaleRecord, error)

	GetByID(ctx context.Context, transactionID string) (domain.SaleRecord, error)
	GetByRequestID(ctx context.Context, requestID string) (domain.SaleRecord, error)

	// ListByCustomer and ListByProduct yield records oldest first. Each range
	// over the returned sequence starts again from the beginning.
	ListByCustomer(ctx context.Context, customerID string) iter.Seq2[domain.SaleRecord, error]
	ListByProduct(ctx context.Context, productID string) iter.Seq2[domain.SaleRecord, error]

	// MarkReversed moves a committed record to REVERSED.
	MarkReversed(ctx context.Context, transactionID string) (domain.SaleRecord, error)
}
