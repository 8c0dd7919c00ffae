package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          string
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
	StockCount  int
}

func (p Product) Available() bool {
	return p.StockCount > 0
}

type Customer struct {
	ID            string // username
	FullName      string
	WalletBalance decimal.Decimal
}
