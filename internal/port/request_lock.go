package port

import (
	"context"
	"time"
)

// RequestLock keeps two attempts of the same purchase request from running
// at the same time.
type RequestLock interface {
	// Acquire returns false if another attempt holds the request
	Acquire(ctx context.Context, requestID string, ttl time.Duration) (bool, error)

	Release(ctx context.Context, requestID string) error
}
