package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

// ProductLedger owns stock counts. Reserve and release are atomic per
// product and idempotent per request ID.
type ProductLedger interface {
	// ReserveStock decrements stock if at least quantity units remain and
	// returns the stock left after the hold.
	// Returns domain.ErrNotFound or domain.ErrInsufficientStock otherwise.
	// A request that already holds gets its existing reservation back.
	ReserveStock(ctx context.Context, requestID, productID string, quantity int) (domain.Reservation, int, error)

	// ReleaseStock gives a held reservation back. Releasing twice is a no-op;
	// a request with no reservation at all yields domain.ErrReservationNotHeld.
	ReleaseStock(ctx context.Context, reservation domain.Reservation) error
}

// WalletLedger owns wallet balances under the same discipline as ProductLedger.
type WalletLedger interface {
	// ReserveFunds debits amount and returns the balance left after the hold.
	// Returns domain.ErrNotFound or domain.ErrInsufficientFunds otherwise.
	ReserveFunds(ctx context.Context, requestID, customerID string, amount decimal.Decimal) (domain.Reservation, decimal.Decimal, error)

	// ReleaseFunds credits a held reservation back, with the same contract as
	// ReleaseStock.
	ReleaseFunds(ctx context.Context, reservation domain.Reservation) error
}
