// Package cache keeps market and stall listings in Redis in front of the
// persistence collaborator.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/metrics"
)

const (
	marketsKey      = "markets:all"
	stallsKeyPrefix = "stalls:market:"
)

// Connect opens a client and verifies the server answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// MarketCache stores JSON-encoded listings with a fixed TTL.
type MarketCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMarketCache(client *redis.Client, ttl time.Duration) *MarketCache {
	return &MarketCache{client: client, ttl: ttl}
}

func stallsKey(marketID string) string {
	return stallsKeyPrefix + marketID
}

// GetMarkets returns the cached market list; ok is false on a miss.
func (c *MarketCache) GetMarkets(ctx context.Context) (markets []domain.Market, ok bool, err error) {
	ok, err = c.get(ctx, marketsKey, "markets", &markets)
	return markets, ok, err
}

func (c *MarketCache) SetMarkets(ctx context.Context, markets []domain.Market) error {
	return c.set(ctx, marketsKey, markets)
}

// GetStalls returns the cached stalls of one market; ok is false on a miss.
func (c *MarketCache) GetStalls(ctx context.Context, marketID string) (stalls []domain.Stall, ok bool, err error) {
	ok, err = c.get(ctx, stallsKey(marketID), "stalls", &stalls)
	return stalls, ok, err
}

func (c *MarketCache) SetStalls(ctx context.Context, marketID string, stalls []domain.Stall) error {
	return c.set(ctx, stallsKey(marketID), stalls)
}

// InvalidateMarkets drops the market list.
func (c *MarketCache) InvalidateMarkets(ctx context.Context) error {
	return c.del(ctx, marketsKey)
}

// InvalidateStalls drops one market's stall list.
func (c *MarketCache) InvalidateStalls(ctx context.Context, marketID string) error {
	return c.del(ctx, stallsKey(marketID))
}

func (c *MarketCache) get(ctx context.Context, key, prefix string, out any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheMisses.WithLabelValues(prefix).Inc()
			return false, nil
		}
		metrics.CacheErrors.WithLabelValues("get").Inc()
		return false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		metrics.CacheErrors.WithLabelValues("unmarshal").Inc()
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	metrics.CacheHits.WithLabelValues(prefix).Inc()
	return true, nil
}

func (c *MarketCache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("failed to set %s in cache: %w", key, err)
	}
	return nil
}

func (c *MarketCache) del(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		metrics.CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("failed to delete %s from cache: %w", key, err)
	}
	return nil
}
