package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/rl1809/sales-orchestrator/internal/adapter/handler"
	"github.com/rl1809/sales-orchestrator/internal/adapter/handler/pb"
	"github.com/rl1809/sales-orchestrator/internal/adapter/messaging"
	"github.com/rl1809/sales-orchestrator/internal/adapter/metrics"
	"github.com/rl1809/sales-orchestrator/internal/config"
	"github.com/rl1809/sales-orchestrator/internal/core/service"
	"github.com/rl1809/sales-orchestrator/internal/logger"
	"github.com/rl1809/sales-orchestrator/internal/port"
	"github.com/rl1809/sales-orchestrator/internal/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SamplingRatio:  cfg.Telemetry.SamplingRatio,
		ServiceName:    cfg.App.Name,
		ServiceVersion: version,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer provider shutdown failed", zap.Error(err))
		}
	}()

	store, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close(log)

	if cfg.Storage.Seed {
		if err := store.seed(ctx); err != nil {
			return fmt.Errorf("seed demo catalog: %w", err)
		}
		log.Info("demo catalog seeded",
			zap.Int("products", len(demoProducts)),
			zap.Int("customers", len(demoCustomers)))
	}

	purchaseMetrics := metrics.NewPurchaseMetrics()

	var events port.SaleEventPublisher
	if cfg.Kafka.Enabled {
		publisher := messaging.NewKafkaPublisher(messaging.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn("failed to close kafka publisher", zap.Error(err))
			}
		}()
		events = publisher
		log.Info("publishing sale events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	purchases := service.NewPurchaseService(service.Dependencies{
		Catalog:   store.catalog,
		Customers: store.customers,
		Stock:     store.stock,
		Wallets:   store.wallets,
		Journal:   store.journal,
		Locks:     store.locks,
		Events:    events,
		Metrics:   purchaseMetrics,
	}, service.Config{
		RequestLockTTL:      cfg.Purchase.RequestLockTTL,
		CompensationTimeout: cfg.Purchase.CompensationTimeout,
	}, log)
	queries := service.NewQueryService(store.catalog, store.customers, store.journal)

	router := handler.NewRouter(handler.NewHTTPHandler(purchases, queries, log), handler.RouterConfig{
		ServiceName: cfg.App.Name,
		Logger:      log,
		Metrics:     purchaseMetrics.Handler(),
	})
	httpServer := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	pb.RegisterPurchaseServiceServer(grpcServer, handler.NewGRPCHandler(purchases, log))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.App.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.App.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", cfg.App.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("addr", cfg.App.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		log.Info("HTTP server stopped")

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		log.Info("gRPC server stopped")
		return err
	})

	return g.Wait()
}
