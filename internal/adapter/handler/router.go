package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/rl1809/sales-orchestrator/internal/logger"
)

type RouterConfig struct {
	ServiceName string
	Logger      *zap.Logger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(h *HTTPHandler, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(
		otelgin.Middleware(cfg.ServiceName),
		logger.GinMiddleware(log.Named("access")),
		logger.Recovery(log),
	)

	router.GET("/health", h.HealthCheck)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	sales := router.Group("/sales")
	{
		sales.POST("/purchase", h.Purchase)
		sales.GET("/history/:username", h.History)
		sales.GET("/display", h.Display)
		sales.GET("/product/:id", h.Product)
		sales.GET("/product/:id/sales", h.ProductSales)
		sales.GET("/transactions/:id", h.Transaction)
		sales.POST("/transactions/:id/reverse", h.Reverse)
	}
	return router
}
