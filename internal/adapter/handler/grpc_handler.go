package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/sales-orchestrator/internal/adapter/handler/pb"
	"github.com/rl1809/sales-orchestrator/internal/core/domain"
	"github.com/rl1809/sales-orchestrator/internal/core/service"
)

type GRPCHandler struct {
	pb.UnimplementedPurchaseServiceServer
	purchases *service.PurchaseService
	logger    *zap.Logger
}

func NewGRPCHandler(purchases *service.PurchaseService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{purchases: purchases, logger: logger.Named("grpc")}
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *pb.PurchaseRequest) (*pb.PurchaseResponse, error) {
	receipt, err := h.purchases.Purchase(ctx, domain.PurchaseRequest{
		RequestID:  req.GetRequestId(),
		CustomerID: req.GetUsername(),
		ProductID:  req.GetProductId(),
		Quantity:   int(req.GetQuantity()),
	})
	if err != nil {
		f := classify(err)
		if f.grpcCode == codes.Internal {
			h.logger.Error("purchase failed", zap.Error(err))
		}
		return nil, status.Error(f.grpcCode, f.message)
	}

	return &pb.PurchaseResponse{
		TransactionId:    receipt.TransactionID,
		RequestId:        receipt.RequestID,
		ProductId:        receipt.Product.ID,
		ProductName:      receipt.Product.Name,
		Quantity:         int32(receipt.Quantity),
		UnitPrice:        money(receipt.Product.Price),
		Total:            money(receipt.Total),
		NewWalletBalance: money(receipt.NewWalletBalance),
		StockLeft:        int32(receipt.Product.StockCount),
	}, nil
}
