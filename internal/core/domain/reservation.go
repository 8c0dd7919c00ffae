package domain

import "github.com/shopspring/decimal"

type ResourceKind string

const (
	ResourceStock ResourceKind = "STOCK"
	ResourceFunds ResourceKind = "FUNDS"
)

type ReservationStatus string

const (
	ReservationHeld     ReservationStatus = "HELD"
	ReservationReleased ReservationStatus = "RELEASED"
)

// Reservation is a hold taken against one ledger on behalf of one purchase
// request. Quantity is set for stock holds, Amount for funds holds.
type Reservation struct {
	Kind      ResourceKind
	OwnerID   string
	Quantity  int
	Amount    decimal.Decimal
	RequestID string
}

func StockReservation(requestID, productID string, quantity int) Reservation {
	return Reservation{
		Kind:      ResourceStock,
		OwnerID:   productID,
		Quantity:  quantity,
		Amount:    decimal.NewFromInt(int64(quantity)),
		RequestID: requestID,
	}
}

func FundsReservation(requestID, customerID string, amount decimal.Decimal) Reservation {
	return Reservation{
		Kind:      ResourceFunds,
		OwnerID:   customerID,
		Amount:    amount,
		RequestID: requestID,
	}
}
