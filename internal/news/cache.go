package news

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/optrank/optrank/internal/domain"
	"github.com/optrank/optrank/internal/metrics"
)

// CacheConfig configures the headline cache.
type CacheConfig struct {
	Addr    string `yaml:"addr"`
	TTLSecs int    `yaml:"ttl_secs"`
}

// TTL returns the configured cache TTL, defaulting to 24h.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSecs > 0 {
		return time.Duration(c.TTLSecs) * time.Second
	}
	return defaultCacheTTL
}

const defaultCacheTTL = 24 * time.Hour

// CachedSource wraps a Source with a Redis cache keyed by source name and
// request, mirroring the upstream credit budget: a repeated request within
// the TTL never hits the live endpoint. Redis being down is not an error;
// the wrapper falls through to the live source and keeps going.
type CachedSource struct {
	inner   Source
	rdb     redis.Cmdable
	ttl     time.Duration
	metrics *metrics.Registry
}

// NewCachedSource wraps inner with the given Redis client. reg may be nil
// when cache hit/miss accounting is not wanted.
func NewCachedSource(inner Source, rdb redis.Cmdable, ttl time.Duration, reg *metrics.Registry) *CachedSource {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedSource{inner: inner, rdb: rdb, ttl: ttl, metrics: reg}
}

func (c *CachedSource) Name() string { return c.inner.Name() }

func (c *CachedSource) Fetch(ctx context.Context, req Request) ([]domain.Headline, error) {
	key := c.cacheKey(req)

	if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var headlines []domain.Headline
		if err := json.Unmarshal(cached, &headlines); err == nil {
			if c.metrics != nil {
				c.metrics.HeadlineCacheHits.Inc()
			}
			return headlines, nil
		}
		// Corrupt entry: drop it and refetch.
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		log.Warn().Err(err).Str("key", key).Msg("headline cache unavailable, fetching live")
	}

	// Every path that reaches the live source counts as a miss.
	if c.metrics != nil {
		c.metrics.HeadlineCacheMisses.Inc()
	}

	headlines, err := c.inner.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(headlines); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("headline cache write failed")
		}
	}
	return headlines, nil
}

func (c *CachedSource) cacheKey(req Request) string {
	return fmt.Sprintf("news:%s:%s:%d", c.inner.Name(), req.Key(), limitOrDefault(req.Limit))
}
