package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
)

const (
	stockKeyPrefix       = "stock:"
	walletKeyPrefix      = "wallet:"
	reservationKeyPrefix = "reservation:"
	requestLockPrefix    = "purchase:lock:"
	defaultMarkerTTL     = 7 * 24 * time.Hour

	// Balances are kept in cents so the scripts only deal with integers.
	walletScale = 2
)

// reserveScript returns {code, left, amount}: code 1 held, 0 insufficient,
// -1 unknown counter, 2 held for another owner. A request that already holds
// is answered from its marker without touching the counter. HELD markers
// never expire.
var reserveScript = redis.NewScript(`
local counter = KEYS[1]
local marker = KEYS[2]
local amount = tonumber(ARGV[1])

if redis.call('HGET', marker, 'status') == 'HELD' then
	if redis.call('HGET', marker, 'owner') ~= ARGV[2] then
		return {2, 0, 0}
	end
	local left = tonumber(redis.call('GET', counter) or '0')
	return {1, left, tonumber(redis.call('HGET', marker, 'amount'))}
end

local current = redis.call('GET', counter)
if not current then
	return {-1, 0, 0}
end

current = tonumber(current)
if current < amount then
	return {0, current, 0}
end

local left = redis.call('DECRBY', counter, amount)
redis.call('HSET', marker, 'status', 'HELD', 'owner', ARGV[2], 'amount', amount)
redis.call('PERSIST', marker)
return {1, left, amount}
`)

// releaseScript returns 1 released, 0 already released, -1 no marker and
// -2 held for another owner. Only RELEASED markers get a TTL.
var releaseScript = redis.NewScript(`
local counter = KEYS[1]
local marker = KEYS[2]

local status = redis.call('HGET', marker, 'status')
if not status then
	return -1
end
if redis.call('HGET', marker, 'owner') ~= ARGV[1] then
	return -2
end
if status ~= 'HELD' then
	return 0
end

redis.call('INCRBY', counter, redis.call('HGET', marker, 'amount'))
redis.call('HSET', marker, 'status', 'RELEASED')
redis.call('EXPIRE', marker, ARGV[2])
return 1
`)

// RedisAdapter keeps stock and wallet counters in Redis and implements
// both ledgers and the request lock.
type RedisAdapter struct {
	client    *redis.Client
	markerTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, markerTTL time.Duration) *RedisAdapter {
	if markerTTL <= 0 {
		markerTTL = defaultMarkerTTL
	}
	return &RedisAdapter{client: client, markerTTL: markerTTL}
}

func (r *RedisAdapter) ReserveStock(ctx context.Context, requestID, productID string, quantity int) (domain.Reservation, int, error) {
	code, left, held, err := r.reserve(ctx, stockKeyPrefix+productID, domain.ResourceStock, requestID, productID, int64(quantity))
	if err != nil {
		return domain.Reservation{}, 0, fmt.Errorf("reserve stock: %w", err)
	}

	switch code {
	case 1:
		return domain.StockReservation(requestID, productID, int(held)), int(left), nil
	case 0:
		return domain.Reservation{}, int(left), fmt.Errorf("product %s has %d left, %d requested: %w",
			productID, left, quantity, domain.ErrInsufficientStock)
	case 2:
		return domain.Reservation{}, 0, fmt.Errorf("request %s holds stock of another product: %w", requestID, domain.ErrInvalidRequest)
	default:
		return domain.Reservation{}, 0, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
}

func (r *RedisAdapter) ReleaseStock(ctx context.Context, res domain.Reservation) error {
	return r.release(ctx, stockKeyPrefix+res.OwnerID, res)
}

func (r *RedisAdapter) ReserveFunds(ctx context.Context, requestID, customerID string, amount decimal.Decimal) (domain.Reservation, decimal.Decimal, error) {
	code, left, held, err := r.reserve(ctx, walletKeyPrefix+customerID, domain.ResourceFunds, requestID, customerID, toMinorUnits(amount))
	if err != nil {
		return domain.Reservation{}, decimal.Zero, fmt.Errorf("reserve funds: %w", err)
	}

	balance := fromMinorUnits(left)
	switch code {
	case 1:
		return domain.FundsReservation(requestID, customerID, fromMinorUnits(held)), balance, nil
	case 0:
		return domain.Reservation{}, balance, fmt.Errorf("customer %s has %s, %s requested: %w",
			customerID, balance, amount, domain.ErrInsufficientFunds)
	case 2:
		return domain.Reservation{}, decimal.Zero, fmt.Errorf("request %s holds funds of another customer: %w", requestID, domain.ErrInvalidRequest)
	default:
		return domain.Reservation{}, decimal.Zero, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}
}

func (r *RedisAdapter) ReleaseFunds(ctx context.Context, res domain.Reservation) error {
	return r.release(ctx, walletKeyPrefix+res.OwnerID, res)
}

func (r *RedisAdapter) reserve(ctx context.Context, counterKey string, kind domain.ResourceKind, requestID, ownerID string, amount int64) (code, left, held int64, err error) {
	keys := []string{counterKey, markerKeyFor(kind, requestID)}
	values, err := reserveScript.Run(ctx, r.client, keys, amount, ownerID).Int64Slice()
	if err != nil {
		return 0, 0, 0, err
	}
	if len(values) != 3 {
		return 0, 0, 0, fmt.Errorf("unexpected reserve script result %v", values)
	}
	return values[0], values[1], values[2], nil
}

func (r *RedisAdapter) release(ctx context.Context, counterKey string, res domain.Reservation) error {
	keys := []string{counterKey, markerKeyFor(res.Kind, res.RequestID)}
	code, err := releaseScript.Run(ctx, r.client, keys, res.OwnerID, int64(r.markerTTL.Seconds())).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", res.Kind, err)
	}

	switch code {
	case -1:
		return fmt.Errorf("%s reservation for request %s: %w", res.Kind, res.RequestID, domain.ErrReservationNotHeld)
	case -2:
		return fmt.Errorf("%s reservation for request %s belongs to another owner: %w", res.Kind, res.RequestID, domain.ErrReservationNotHeld)
	}
	return nil
}

func (r *RedisAdapter) Acquire(ctx context.Context, requestID string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, requestLockPrefix+requestID, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire request lock: %w", err)
	}
	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, requestID string) error {
	return r.client.Del(ctx, requestLockPrefix+requestID).Err()
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+productID, quantity, 0).Err()
}

func (r *RedisAdapter) SetBalance(ctx context.Context, customerID string, balance decimal.Decimal) error {
	return r.client.Set(ctx, walletKeyPrefix+customerID, toMinorUnits(balance), 0).Err()
}

// SeedStock and SeedBalance only write counters that do not exist yet, so
// restarting the server never resets live counters.
func (r *RedisAdapter) SeedStock(ctx context.Context, productID string, quantity int) error {
	return r.client.SetNX(ctx, stockKeyPrefix+productID, quantity, 0).Err()
}

func (r *RedisAdapter) SeedBalance(ctx context.Context, customerID string, balance decimal.Decimal) error {
	return r.client.SetNX(ctx, walletKeyPrefix+customerID, toMinorUnits(balance), 0).Err()
}

func markerKeyFor(kind domain.ResourceKind, requestID string) string {
	return fmt.Sprintf("%s%s:%s", reservationKeyPrefix, kind, requestID)
}

func toMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(walletScale).Round(0).IntPart()
}

func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -walletScale)
}
