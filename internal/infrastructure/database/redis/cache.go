package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// AnalysisCache stores finished analyses as JSON under a key prefix.
type AnalysisCache struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	defaultTTL time.Duration
}

type CacheOption func(*AnalysisCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *AnalysisCache) { c.prefix = prefix }
}

// WithDefaultTTL sets the expiry used when Set is called with ttl 0.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *AnalysisCache) { c.defaultTTL = ttl }
}

func NewAnalysisCache(client *Client, log logging.Logger, opts ...CacheOption) *AnalysisCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &AnalysisCache{
		client:     client,
		logger:     log,
		prefix:     "cureanalytics:",
		defaultTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AnalysisCache) fullKey(key string) string { return c.prefix + key }

// Get returns ErrCodeCacheMiss for absent keys and for entries that no longer
// decode.
func (c *AnalysisCache) Get(ctx context.Context, key string) (*pharma.PharmaceuticalAnalysis, error) {
	rdb := c.client.Raw()
	if rdb == nil {
		return nil, ErrClientClosed
	}
	data, err := rdb.Get(ctx, c.fullKey(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.New(errors.ErrCodeCacheMiss, "cache miss")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "cache get failed")
	}
	var a pharma.PharmaceuticalAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		c.logger.Warn("dropping undecodable cache entry", logging.String("key", key), logging.Err(err))
		_ = rdb.Del(ctx, c.fullKey(key)).Err()
		return nil, errors.New(errors.ErrCodeCacheMiss, "cache miss")
	}
	return &a, nil
}

func (c *AnalysisCache) Set(ctx context.Context, key string, a *pharma.PharmaceuticalAnalysis, ttl time.Duration) error {
	if a == nil {
		return errors.InvalidParam("analysis is nil")
	}
	rdb := c.client.Raw()
	if rdb == nil {
		return ErrClientClosed
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	data, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode analysis")
	}
	if err := rdb.Set(ctx, c.fullKey(key), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache set failed")
	}
	return nil
}

func (c *AnalysisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	rdb := c.client.Raw()
	if rdb == nil {
		return ErrClientClosed
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.fullKey(k)
	}
	if err := rdb.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache delete failed")
	}
	return nil
}
