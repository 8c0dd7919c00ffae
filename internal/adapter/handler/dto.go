package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

type PurchaseHTTPRequest struct {
	RequestID string `json:"request_id"`
	Username  string `json:"username"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ErrorResponse struct {
	Error    string `json:"error"`
	Resource string `json:"resource,omitempty"`
}

type ProductResponse struct {
	ID          string `json:"product_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Description string `json:"description,omitempty"`
	StockCount  int    `json:"stock_count"`
}

// PurchaseHTTPResponse is the receipt body. Unlike the query routes it uses
// camelCase keys.
type PurchaseHTTPResponse struct {
	TransactionID    string          `json:"transactionId"`
	RequestID        string          `json:"requestId"`
	Product          ProductResponse `json:"product"`
	Quantity         int             `json:"quantity"`
	Total            string          `json:"total"`
	NewWalletBalance string          `json:"newWalletBalance"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type SaleRecordResponse struct {
	TransactionID string    `json:"transaction_id"`
	RequestID     string    `json:"request_id"`
	Username      string    `json:"username"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Quantity      int       `json:"quantity"`
	UnitPrice     string    `json:"unit_price"`
	Total         string    `json:"total"`
	BalanceAfter  string    `json:"balance_after"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Price:       money(p.Price),
		Description: p.Description,
		StockCount:  p.StockCount,
	}
}

func toSaleRecordResponse(r domain.SaleRecord) SaleRecordResponse {
	return SaleRecordResponse{
		TransactionID: r.TransactionID,
		RequestID:     r.RequestID,
		Username:      r.CustomerID,
		ProductID:     r.ProductID,
		ProductName:   r.ProductName,
		Quantity:      r.Quantity,
		UnitPrice:     money(r.UnitPrice),
		Total:         money(r.Total),
		BalanceAfter:  money(r.BalanceAfter),
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
	}
}

func toSaleRecordResponses(records []domain.SaleRecord) []SaleRecordResponse {
	out := make([]SaleRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toSaleRecordResponse(r))
	}
	return out
}
