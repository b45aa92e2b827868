package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"product-catalog/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	versionKey = "catalog:products:version"
	keyPrefix  = "catalog:products:list"
)

// ListCache caches product listings in redis. Entries are keyed by the
// current version, so a Bump makes every cached listing unreachable and
// the old entries simply expire.
//
// A nil *ListCache, or one without a client, always calls the loader.
type ListCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewListCache instantiates the cache helper.
func NewListCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ListCache {
	return &ListCache{client: client, ttl: ttl, logger: logger}
}

func (c *ListCache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache version, initialising when missing.
func (c *ListCache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Key composes the cache key of a listing query at the given version.
func Key(q domain.ProductQuery, version int64) string {
	parts := []string{
		keyPrefix,
		strconv.FormatInt(version, 10),
		strconv.Itoa(q.Page),
		strconv.Itoa(q.Limit),
		q.SortBy,
		string(q.SortOrder),
		formatBound(q.MinPrice),
		formatBound(q.MaxPrice),
		strconv.Quote(strings.TrimSpace(q.Search)),
	}
	return strings.Join(parts, ":")
}

func formatBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// FetchPage returns the cached listing for q or populates it using the loader.
// Redis failures are logged and the loader result is returned uncached.
func (c *ListCache) FetchPage(ctx context.Context, q domain.ProductQuery, loader func(context.Context) (*domain.ProductPage, error)) (*domain.ProductPage, error) {
	if loader == nil {
		return nil, errors.New("cache: loader required")
	}
	if !c.enabled() {
		return loader(ctx)
	}

	version, err := c.Version(ctx)
	if err != nil {
		c.warn("failed to read list cache version", err)
		return loader(ctx)
	}
	key := Key(q, version)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var page domain.ProductPage
		if err := json.Unmarshal(payload, &page); err == nil {
			return &page, nil
		}
		c.warn("discarding corrupt list cache entry", err)
	} else if !errors.Is(err, redis.Nil) {
		c.warn("failed to read list cache", err)
	}

	page, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(page)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to encode page: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.warn("failed to write list cache", err)
	}
	return page, nil
}

// Bump invalidates every cached listing by incrementing the version.
func (c *ListCache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, versionKey).Err()
}

func (c *ListCache) warn(msg string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, zap.Error(err))
	}
}
