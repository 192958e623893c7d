package cache

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

// CachedCatalog serves listings from the cache and falls back to the
// wrapped catalog. Cache failures are logged and never fail a call.
type CachedCatalog struct {
	next   domain.MarketCatalog
	cache  *MarketCache
	logger zerolog.Logger
}

func NewCachedCatalog(next domain.MarketCatalog, cache *MarketCache, logger zerolog.Logger) *CachedCatalog {
	return &CachedCatalog{next: next, cache: cache, logger: logger}
}

func (c *CachedCatalog) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	markets, ok, err := c.cache.GetMarkets(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("market cache read failed")
	}
	if ok {
		return markets, nil
	}

	markets, err = c.next.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetMarkets(ctx, markets); err != nil {
		c.logger.Warn().Err(err).Msg("failed to cache markets")
	}
	return markets, nil
}

// Refresh reloads the market list from the source and replaces the cached
// copy.
func (c *CachedCatalog) Refresh(ctx context.Context) ([]domain.Market, error) {
	markets, err := c.next.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetMarkets(ctx, markets); err != nil {
		c.logger.Warn().Err(err).Msg("failed to cache markets")
	}
	return markets, nil
}

func (c *CachedCatalog) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	return c.next.GetMarket(ctx, id)
}

func (c *CachedCatalog) CreateMarket(ctx context.Context, draft domain.MarketDraft) (domain.Market, error) {
	market, err := c.next.CreateMarket(ctx, draft)
	if err != nil {
		return domain.Market{}, err
	}
	if err := c.cache.InvalidateMarkets(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate market cache")
	}
	return market, nil
}

func (c *CachedCatalog) ListStalls(ctx context.Context, marketID string) ([]domain.Stall, error) {
	stalls, ok, err := c.cache.GetStalls(ctx, marketID)
	if err != nil {
		c.logger.Warn().Err(err).Str("market_id", marketID).Msg("stall cache read failed")
	}
	if ok {
		return stalls, nil
	}

	stalls, err = c.next.ListStalls(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetStalls(ctx, marketID, stalls); err != nil {
		c.logger.Warn().Err(err).Str("market_id", marketID).Msg("failed to cache stalls")
	}
	return stalls, nil
}

func (c *CachedCatalog) CreateStall(ctx context.Context, payload domain.StallPayload) (domain.Stall, error) {
	stall, err := c.next.CreateStall(ctx, payload)
	if err != nil {
		return domain.Stall{}, err
	}
	if err := c.cache.InvalidateStalls(ctx, payload.MarketID); err != nil {
		c.logger.Warn().Err(err).Str("market_id", payload.MarketID).Msg("failed to invalidate stall cache")
	}
	return stall, nil
}

var _ domain.MarketCatalog = (*CachedCatalog)(nil)
