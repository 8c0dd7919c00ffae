package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleStatusCommitted SaleStatus = "COMMITTED"
	SaleStatusReversed  SaleStatus = "REVERSED"
)

type SaleRecord struct {
	TransactionID string
	RequestID     string
	CustomerID    string
	ProductID     string
	ProductName   string
	Quantity      int
	UnitPrice     decimal.Decimal // price snapshot taken before any reservation
	Total         decimal.Decimal
	BalanceAfter  decimal.Decimal
	Status        SaleStatus
	CreatedAt     time.Time
}

type PurchaseRequest struct {
	RequestID  string
	CustomerID string
	ProductID  string
	Quantity   int
}

type Receipt struct {
	TransactionID    string
	RequestID        string
	Product          Product
	Quantity         int
	Total            decimal.Decimal
	NewWalletBalance decimal.Decimal
	CreatedAt        time.Time
}

type SaleEventType string

const (
	SaleEventCommitted SaleEventType = "sale.committed"
	SaleEventReversed  SaleEventType = "sale.reversed"
)

type SaleEvent struct {
	Type       SaleEventType
	Record     SaleRecord
	OccurredAt time.Time
}
