package scrapfly

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// PageCache stores fetched page content in Redis, keyed by request URL.
// Cache misses and Redis failures both fall through to a live fetch.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type cachedPage struct {
	Content     string `json:"content"`
	ResolvedURL string `json:"resolved_url"`
}

func NewPageCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *PageCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &PageCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "page_cache"),
	}
}

func (p *PageCache) Get(ctx context.Context, url string) (content, resolvedURL string, ok bool) {
	raw, err := p.client.Get(ctx, p.key(url)).Result()
	if err != nil {
		if err != redis.Nil {
			p.logger.Warn("cache read failed", "url", url, "error", err)
		}
		return "", "", false
	}

	var page cachedPage
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		p.logger.Warn("cache entry corrupt", "url", url, "error", err)
		return "", "", false
	}
	return page.Content, page.ResolvedURL, true
}

func (p *PageCache) Set(ctx context.Context, url, content, resolvedURL string) {
	raw, err := json.Marshal(cachedPage{Content: content, ResolvedURL: resolvedURL})
	if err != nil {
		return
	}
	if err := p.client.Set(ctx, p.key(url), raw, p.ttl).Err(); err != nil {
		p.logger.Warn("cache write failed", "url", url, "error", err)
	}
}

func (p *PageCache) key(url string) string {
	return "cache:page:" + url
}
