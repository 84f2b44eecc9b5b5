package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market lookups keyed by external market ID.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, marketID string) (Market, error)
	Invalidate(ctx context.Context, marketID string) error
}

// LockManager provides distributed locking, used to serialize concurrent
// declarations for the same market.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of market events to live consumers
// such as the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
