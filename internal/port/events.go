package port

import (
	"context"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

type SaleEventPublisher interface {
	Publish(ctx context.Context, event domain.SaleEvent) error
}
