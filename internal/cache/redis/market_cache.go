package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matkalabs/matkad/internal/domain"
)

// marketTTL keeps cached markets fresh relative to the per-minute
// scheduler tick; a stale window flag lives at most this long.
const marketTTL = 2 * time.Minute

// MarketCache implements domain.MarketCache using JSON-serialized markets
// keyed by external market ID.
//
// Key schema:
//
//	market:{marketID} - string value containing JSON
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(marketID string) string { return "market:" + marketID }

// Set stores a Market in the cache with a short TTL.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.MarketID, err)
	}

	if err := mc.rdb.Set(ctx, marketKey(market.MarketID), data, marketTTL).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.MarketID, err)
	}
	return nil
}

// Get retrieves a Market by its external ID. It returns domain.ErrNotFound
// when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, marketID string) (domain.Market, error) {
	data, err := mc.rdb.Get(ctx, marketKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", marketID, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", marketID, err)
	}
	return market, nil
}

// Invalidate removes a Market from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, marketID string) error {
	if err := mc.rdb.Del(ctx, marketKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
