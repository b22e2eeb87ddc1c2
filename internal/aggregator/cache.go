package aggregator

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/justinsudev/wikisearch/pkg/config"
	pkgredis "github.com/justinsudev/wikisearch/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "search:"

// QueryCache caches merged search results in Redis, keyed on the normalized
// query, weight, and mode. Concurrent identical misses are collapsed into a
// single fan-out with singleflight.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func NewQueryCache(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, weight float64, mode string) (*Result, bool) {
	key := c.buildKey(query, weight, mode)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, query string, weight float64, mode string, result *Result) {
	key := c.buildKey(query, weight, mode)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for the query, or runs computeFn
// exactly once across concurrent callers and caches its result. The boolean
// reports whether the result came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	weight float64,
	mode string,
	computeFn func() (*Result, error),
) (*Result, bool, error) {
	if result, ok := c.Get(ctx, query, weight, mode); ok {
		return result, true, nil
	}
	key := c.buildKey(query, weight, mode)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, query, weight, mode); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, weight, mode, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Result), false, nil
}

// Invalidate drops every cached search result. Called when shards reload a
// new index generation.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(query string, weight float64, mode string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	raw := normalized + "|w=" + strconv.FormatFloat(weight, 'g', -1, 64) + "|mode=" + mode
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", cacheKeyPrefix, hash[:16])
}
