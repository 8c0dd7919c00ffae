package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/sales-orchestrator/internal/adapter/storage"
	"github.com/rl1809/sales-orchestrator/internal/config"
	"github.com/rl1809/sales-orchestrator/internal/core/domain"
	"github.com/rl1809/sales-orchestrator/internal/port"
)

var demoProducts = []domain.Product{
	{ID: "bed-01", Name: "Oak Bed Frame", Category: "bedroom", Price: decimal.RequireFromString("349.00"), Description: "Queen size, solid oak", StockCount: 12},
	{ID: "sofa-01", Name: "Linen Sofa", Category: "living", Price: decimal.RequireFromString("799.99"), Description: "Three seater", StockCount: 5},
	{ID: "lamp-01", Name: "Desk Lamp", Category: "office", Price: decimal.RequireFromString("24.50"), StockCount: 100},
	{ID: "chair-01", Name: "Task Chair", Category: "office", Price: decimal.RequireFromString("129.00"), Description: "Adjustable height", StockCount: 40},
	{ID: "rug-01", Name: "Wool Rug", Category: "living", Price: decimal.RequireFromString("210.00"), StockCount: 0},
}

var demoCustomers = []domain.Customer{
	{ID: "alice", FullName: "Alice Nguyen", WalletBalance: decimal.RequireFromString("1500.00")},
	{ID: "bob", FullName: "Bob Tran", WalletBalance: decimal.RequireFromString("200.00")},
	{ID: "carol", FullName: "Carol Le", WalletBalance: decimal.RequireFromString("50.00")},
}

// backend is the set of ports the selected storage mode provides.
type backend struct {
	catalog   port.ProductCatalog
	customers port.CustomerDirectory
	stock     port.ProductLedger
	wallets   port.WalletLedger
	journal   port.SalesJournal
	locks     port.RequestLock

	seed    func(ctx context.Context) error
	closers []func() error
}

func (b *backend) close(log *zap.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Warn("failed to close storage connection", zap.Error(err))
		}
	}
}

func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return memoryBackend(), nil
	case "mysql":
		return mysqlBackend(ctx, cfg, log)
	case "redis":
		return redisBackend(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func memoryBackend() *backend {
	mem := storage.NewMemoryAdapter()
	return &backend{
		catalog:   mem,
		customers: mem,
		stock:     mem,
		wallets:   mem,
		journal:   mem,
		locks:     mem,
		seed: func(context.Context) error {
			for _, p := range demoProducts {
				mem.PutProduct(p)
			}
			for _, c := range demoCustomers {
				mem.PutCustomer(c)
			}
			return nil
		},
	}
}

func mysqlBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	db, err := openMySQL(ctx, cfg.MySQL, log)
	if err != nil {
		return nil, err
	}
	adapter := storage.NewMySQLAdapter(db)
	b := &backend{
		catalog:   adapter,
		customers: adapter,
		stock:     adapter,
		wallets:   adapter,
		journal:   storage.NewMySQLJournal(db, cfg.Purchase.JournalPageSize),
		seed:      seedMySQL(adapter),
		closers:   []func() error{db.Close},
	}

	// Request locks go to Redis when it answers, otherwise they stay in process.
	rdb, err := openRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("redis unavailable, request locks are process local", zap.Error(err))
		b.locks = storage.NewMemoryAdapter()
		return b, nil
	}
	b.locks = storage.NewRedisAdapter(rdb, cfg.Redis.MarkerTTL)
	b.closers = append(b.closers, rdb.Close)
	return b, nil
}

func redisBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	db, err := openMySQL(ctx, cfg.MySQL, log)
	if err != nil {
		return nil, err
	}
	rdb, err := openRedis(ctx, cfg.Redis, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	catalog := storage.NewMySQLAdapter(db)
	cache := storage.NewRedisAdapter(rdb, cfg.Redis.MarkerTTL)
	seedCatalog := seedMySQL(catalog)

	return &backend{
		catalog:   catalog,
		customers: catalog,
		stock:     cache,
		wallets:   cache,
		journal:   storage.NewMySQLJournal(db, cfg.Purchase.JournalPageSize),
		locks:     cache,
		seed: func(ctx context.Context) error {
			if err := seedCatalog(ctx); err != nil {
				return err
			}
			for _, p := range demoProducts {
				if err := cache.SeedStock(ctx, p.ID, p.StockCount); err != nil {
					return fmt.Errorf("seed stock %s: %w", p.ID, err)
				}
			}
			for _, c := range demoCustomers {
				if err := cache.SeedBalance(ctx, c.ID, c.WalletBalance); err != nil {
					return fmt.Errorf("seed balance %s: %w", c.ID, err)
				}
			}
			return nil
		},
		closers: []func() error{db.Close, rdb.Close},
	}, nil
}

func seedMySQL(adapter *storage.MySQLAdapter) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, p := range demoProducts {
			if err := adapter.SeedProduct(ctx, p); err != nil {
				return err
			}
		}
		for _, c := range demoCustomers {
			if err := adapter.SeedCustomer(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}
}

func openMySQL(ctx context.Context, cfg config.MySQLConfig, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	log.Info("connected to mysql")

	if cfg.Migrate {
		if err := storage.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("mysql schema up to date")
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to redis", zap.String("addr", cfg.Addr))
	return rdb, nil
}
