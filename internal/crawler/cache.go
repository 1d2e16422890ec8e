package crawler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"mindradix-similarity/internal/logger"
	"mindradix-similarity/utils"
)

// PageCache stores scraped text by URL.
type PageCache interface {
	Get(ctx context.Context, url string) (string, bool)
	Set(ctx context.Context, url, text string)
}

const pageCachePrefix = "scrape:"

// RedisPageCache keeps compressed page text in Redis with a TTL.
// Cache errors are logged and treated as misses.
type RedisPageCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPageCache(client *redis.Client, ttl time.Duration) *RedisPageCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPageCache{client: client, ttl: ttl}
}

func pageCacheKey(url string) string {
	return pageCachePrefix + utils.Fingerprint(url, 32)
}

func (c *RedisPageCache) Get(ctx context.Context, url string) (string, bool) {
	ctx, cancel := utils.WithShortTimeout(ctx)
	defer cancel()

	packed, err := c.client.Get(ctx, pageCacheKey(url)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("Page cache read failed", "url", url, "error", err)
		}
		return "", false
	}
	text, err := utils.UnpackText(packed)
	if err != nil {
		logger.Debug("Page cache entry unreadable", "url", url, "error", err)
		return "", false
	}
	return text, true
}

func (c *RedisPageCache) Set(ctx context.Context, url, text string) {
	packed, err := utils.PackText(text)
	if err != nil {
		return
	}
	ctx, cancel := utils.WithShortTimeout(ctx)
	defer cancel()

	if err := c.client.Set(ctx, pageCacheKey(url), packed, c.ttl).Err(); err != nil {
		logger.Debug("Page cache write failed", "url", url, "error", err)
	}
}
