package main

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/sales-orchestrator/internal/adapter/storage"
	"github.com/rl1809/sales-orchestrator/internal/core/domain"
	"github.com/rl1809/sales-orchestrator/internal/core/service"
	"github.com/rl1809/sales-orchestrator/internal/logger"
	"github.com/rl1809/sales-orchestrator/internal/port"
)

const (
	productID     = "stress-item"
	initialStock  = 20
	totalRequests = 50

	// A single wallet that can pay for walletItems of walletRequests attempts.
	walletProduct  = "stress-wallet-item"
	walletCustomer = "stress-wallet-user"
	walletItems    = 5
	walletRequests = 10
)

var unitPrice = decimal.RequireFromString("10.00")

// ledgers is where stock and balances live for one run.
type ledgers interface {
	port.ProductLedger
	port.WalletLedger
	port.RequestLock
	setStock(ctx context.Context, productID string, quantity int) error
	setBalance(ctx context.Context, customerID string, balance decimal.Decimal) error
	stockOf(ctx context.Context, productID string) (int, error)
}

func main() {
	ctx := context.Background()

	log, err := logger.New(logger.Config{Level: "warn", Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	catalog := storage.NewMemoryAdapter()
	var store ledgers = memoryLedgers{catalog}

	backend := "memory"
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, PoolSize: totalRequests})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		rdb.Del(ctx, "stock:"+productID, "stock:"+walletProduct, "wallet:"+walletCustomer)
		store = redisLedgers{storage.NewRedisAdapter(rdb, time.Hour), rdb}
		backend = "redis " + addr
	}

	catalog.PutProduct(domain.Product{ID: productID, Name: "Stress Item", Price: unitPrice, StockCount: initialStock})
	catalog.PutProduct(domain.Product{ID: walletProduct, Name: "Wallet Item", Price: unitPrice, StockCount: walletRequests})
	if err := store.setStock(ctx, productID, initialStock); err != nil {
		log.Fatal("failed to set stock", zap.Error(err))
	}
	if err := store.setStock(ctx, walletProduct, walletRequests); err != nil {
		log.Fatal("failed to set stock", zap.Error(err))
	}
	for i := 0; i < totalRequests; i++ {
		id := fmt.Sprintf("user-%d", i)
		catalog.PutCustomer(domain.Customer{ID: id, FullName: id, WalletBalance: unitPrice})
		if err := store.setBalance(ctx, id, unitPrice); err != nil {
			log.Fatal("failed to set balance", zap.Error(err))
		}
	}
	walletBalance := unitPrice.Mul(decimal.NewFromInt(walletItems))
	catalog.PutCustomer(domain.Customer{ID: walletCustomer, FullName: walletCustomer, WalletBalance: walletBalance})
	if err := store.setBalance(ctx, walletCustomer, walletBalance); err != nil {
		log.Fatal("failed to set balance", zap.Error(err))
	}

	purchases := service.NewPurchaseService(service.Dependencies{
		Catalog:   catalog,
		Customers: catalog,
		Stock:     store,
		Wallets:   store,
		Journal:   catalog,
		Locks:     store,
	}, service.DefaultConfig(), log)

	passed := true
	check := func(ok bool, pass, fail string) {
		if ok {
			fmt.Println("PASS: " + pass)
			return
		}
		fmt.Println("FAIL: " + fail)
		passed = false
	}

	// Many buyers, one product.
	start := time.Now()
	success, soldOut, other := fire(totalRequests, func(i int) error {
		_, err := purchases.Purchase(ctx, domain.PurchaseRequest{
			CustomerID: fmt.Sprintf("user-%d", i),
			ProductID:  productID,
			Quantity:   1,
		})
		return err
	}, domain.ErrInsufficientStock)
	elapsed := time.Since(start)
	finalStock, _ := store.stockOf(ctx, productID)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Backend:          %s\n", backend)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of Stock:     %d\n", soldOut)
	fmt.Printf("Other Errors:     %d\n", other)
	fmt.Printf("Final Stock:      %d\n", finalStock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	check(success == initialStock && soldOut == totalRequests-initialStock && other == 0,
		fmt.Sprintf("exactly %d purchases succeeded, %d sold out", initialStock, totalRequests-initialStock),
		fmt.Sprintf("expected %d/%d/0 success/sold out/other, got %d/%d/%d",
			initialStock, totalRequests-initialStock, success, soldOut, other))
	check(finalStock == 0, "stock depleted to 0", fmt.Sprintf("expected stock 0, got %d", finalStock))
	check(count(catalog.ListByProduct(ctx, productID)) == initialStock,
		"journal holds one record per sale", "journal record count does not match sales")

	// One wallet, many attempts: declined attempts must hand their stock back.
	success, broke, other := fire(walletRequests, func(i int) error {
		_, err := purchases.Purchase(ctx, domain.PurchaseRequest{
			CustomerID: walletCustomer,
			ProductID:  walletProduct,
			Quantity:   1,
		})
		return err
	}, domain.ErrInsufficientFunds)
	walletStock, _ := store.stockOf(ctx, walletProduct)

	fmt.Printf("Wallet Purchases: %d ok, %d declined, %d other\n", success, broke, other)
	check(success == walletItems && broke == walletRequests-walletItems && other == 0,
		fmt.Sprintf("wallet paid for exactly %d items", walletItems),
		fmt.Sprintf("expected %d paid, got %d (%d declined, %d other)", walletItems, success, broke, other))
	check(walletStock == walletRequests-walletItems,
		"declined purchases released their stock",
		fmt.Sprintf("expected stock %d, got %d", walletRequests-walletItems, walletStock))

	if !passed {
		os.Exit(1)
	}
}

// fire runs n purchases at once and counts successes, the expected
// rejection and anything else.
func fire(n int, purchase func(i int) error, rejection error) (success, rejected, other int) {
	var successCount, rejectedCount, otherCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch err := purchase(i); {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, rejection):
				rejectedCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(i)
	}
	wg.Wait()
	return int(successCount.Load()), int(rejectedCount.Load()), int(otherCount.Load())
}

func count(records iter.Seq2[domain.SaleRecord, error]) int {
	n := 0
	for _, err := range records {
		if err != nil {
			return -1
		}
		n++
	}
	return n
}

type memoryLedgers struct {
	*storage.MemoryAdapter
}

// PutProduct already carries the stock and PutCustomer the balance.
func (m memoryLedgers) setStock(context.Context, string, int) error {
	return nil
}

func (m memoryLedgers) setBalance(context.Context, string, decimal.Decimal) error {
	return nil
}

func (m memoryLedgers) stockOf(ctx context.Context, productID string) (int, error) {
	p, err := m.GetProduct(ctx, productID)
	return p.StockCount, err
}

type redisLedgers struct {
	*storage.RedisAdapter
	client *redis.Client
}

func (r redisLedgers) setStock(ctx context.Context, productID string, quantity int) error {
	return r.SetStock(ctx, productID, quantity)
}

func (r redisLedgers) setBalance(ctx context.Context, customerID string, balance decimal.Decimal) error {
	return r.SetBalance(ctx, customerID, balance)
}

func (r redisLedgers) stockOf(ctx context.Context, productID string) (int, error) {
	return r.client.Get(ctx, "stock:"+productID).Int()
}
