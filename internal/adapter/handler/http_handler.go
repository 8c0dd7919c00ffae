package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
	"github.com/rl1809/sales-orchestrator/internal/core/service"
)

type HTTPHandler struct {
	purchases *service.PurchaseService
	queries   *service.QueryService
	logger    *zap.Logger
}

func NewHTTPHandler(purchases *service.PurchaseService, queries *service.QueryService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{purchases: purchases, queries: queries, logger: logger.Named("http")}
}

func (h *HTTPHandler) Purchase(c *gin.Context) {
	var req PurchaseHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:    "invalid request body",
			Resource: string(domain.ResourceNameRequest),
		})
		return
	}

	receipt, err := h.purchases.Purchase(c.Request.Context(), domain.PurchaseRequest{
		RequestID:  req.RequestID,
		CustomerID: req.Username,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, PurchaseHTTPResponse{
		TransactionID:    receipt.TransactionID,
		RequestID:        receipt.RequestID,
		Product:          toProductResponse(receipt.Product),
		Quantity:         receipt.Quantity,
		Total:            money(receipt.Total),
		NewWalletBalance: money(receipt.NewWalletBalance),
		CreatedAt:        receipt.CreatedAt,
	})
}

func (h *HTTPHandler) History(c *gin.Context) {
	records, err := h.queries.History(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSaleRecordResponses(records))
}

func (h *HTTPHandler) Display(c *gin.Context) {
	products, err := h.queries.DisplayAvailable(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) Product(c *gin.Context) {
	product, err := h.queries.ProductDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (h *HTTPHandler) ProductSales(c *gin.Context) {
	records, err := h.queries.ProductSales(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSaleRecordResponses(records))
}

func (h *HTTPHandler) Transaction(c *gin.Context) {
	record, err := h.queries.Transaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSaleRecordResponse(record))
}

func (h *HTTPHandler) Reverse(c *gin.Context) {
	record, err := h.purchases.Reverse(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSaleRecordResponse(record))
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	f := classify(err)
	if f.httpStatus >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", f.httpStatus),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(f.httpStatus, ErrorResponse{Error: f.message, Resource: resourceName(err)})
}
